package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/record365/sign-server-go/internal/middleware"
	"github.com/record365/sign-server-go/internal/model"
	"github.com/record365/sign-server-go/internal/repository"
	"github.com/record365/sign-server-go/internal/service"
	"github.com/record365/sign-server-go/internal/sms"
)

// In-memory doubles standing in for Postgres, Redis, and the carrier.
// The full stack above them is real, so these tests exercise the same
// wiring main builds.

type fakeRequestRepo struct {
	mu      sync.Mutex
	reqs    map[string]*model.SignatureRequest
	rentals *fakeRentalRepo
}

func newFakeRequestRepo(rentals *fakeRentalRepo) *fakeRequestRepo {
	return &fakeRequestRepo{reqs: make(map[string]*model.SignatureRequest), rentals: rentals}
}

func (f *fakeRequestRepo) Create(ctx context.Context, params model.CreateSignatureRequestParams) (*model.SignatureRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req := &model.SignatureRequest{
		ID:             params.ID,
		RentalID:       params.RentalID,
		RentalTitle:    params.RentalTitle,
		RentalType:     params.RentalType,
		RequesterID:    params.RequesterID,
		RequesterName:  params.RequesterName,
		SignerName:     params.SignerName,
		SignerPhone:    params.SignerPhone,
		Method:         params.Method,
		SignURL:        params.SignURL,
		IsExistingUser: params.IsExistingUser,
		Status:         model.StatusPending,
		RequestedAt:    time.Now(),
		ExpiresAt:      params.ExpiresAt,
	}
	f.reqs[req.ID] = req
	out := *req
	return &out, nil
}

func (f *fakeRequestRepo) FindByID(ctx context.Context, id string) (*model.SignatureRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.reqs[id]
	if !ok {
		return nil, nil
	}
	out := *req
	return &out, nil
}

func (f *fakeRequestRepo) FindByRequesterID(ctx context.Context, requesterID string) ([]model.SignatureRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.SignatureRequest
	for _, req := range f.reqs {
		if req.RequesterID == requesterID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) CompleteAndMirror(ctx context.Context, id string, sig model.Signature, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.reqs[id]
	if !ok || req.Status != model.StatusPending || !req.ExpiresAt.After(completedAt) {
		return repository.ErrNotPending
	}

	sigJSON, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	req.Status = model.StatusCompleted
	req.Signature = sigJSON
	req.CompletedAt = &completedAt
	req.MirroredAt = &completedAt

	summaryJSON, err := json.Marshal(req.Summary(completedAt))
	if err != nil {
		return err
	}
	return f.rentals.MirrorSignature(ctx, req.RentalID, sigJSON, summaryJSON)
}

func (f *fakeRequestRepo) FindUnmirrored(ctx context.Context, limit int) ([]model.SignatureRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.SignatureRequest
	for _, req := range f.reqs {
		if req.Status == model.StatusCompleted && req.MirroredAt == nil {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) MarkMirrored(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req, ok := f.reqs[id]; ok {
		now := time.Now()
		req.MirroredAt = &now
	}
	return nil
}

type fakeRentalRepo struct {
	mu      sync.Mutex
	rentals map[string]*model.Rental
}

func newFakeRentalRepo() *fakeRentalRepo {
	return &fakeRentalRepo{rentals: make(map[string]*model.Rental)}
}

func (f *fakeRentalRepo) FindByID(ctx context.Context, id string) (*model.Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rental, ok := f.rentals[id]
	if !ok {
		return nil, nil
	}
	out := *rental
	return &out, nil
}

func (f *fakeRentalRepo) MirrorSignature(ctx context.Context, rentalID string, partnerSignature, signatureRequest json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rental, ok := f.rentals[rentalID]
	if !ok {
		return nil
	}
	rental.CheckInPartnerSignature = partnerSignature
	rental.CheckInSignatureRequest = signatureRequest
	return nil
}

type fakeUserRepo struct {
	usersByTokenHash map[string]*model.User
	phones           map[string]bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		usersByTokenHash: make(map[string]*model.User),
		phones:           make(map[string]bool),
	}
}

func (f *fakeUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	return f.usersByTokenHash[tokenHash], nil
}

func (f *fakeUserRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return f.phones[phone], nil
}

type fakeGateway struct {
	mu       sync.Mutex
	codes    map[string]string // phone -> last dispatched code
	texts    []string
	channels []sms.Channel
	sendErr  error
	codeErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{codes: make(map[string]string)}
}

func (f *fakeGateway) SendCode(ctx context.Context, phone, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.codeErr != nil {
		return f.codeErr
	}
	f.codes[phone] = code
	return nil
}

func (f *fakeGateway) SendText(ctx context.Context, phone, text string, channel sms.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	f.channels = append(f.channels, channel)
	return nil
}

func (f *fakeGateway) lastCode(phone string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[phone]
}

type fakeCodeStore struct {
	mu      sync.Mutex
	entries map[string]service.CodeEntry
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{entries: make(map[string]service.CodeEntry)}
}

func (f *fakeCodeStore) Put(ctx context.Context, phone string, entry service.CodeEntry, retention time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[phone] = entry
	return nil
}

func (f *fakeCodeStore) Get(ctx context.Context, phone string) (*service.CodeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[phone]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeCodeStore) Delete(ctx context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, phone)
	return nil
}

func passThrough(next http.Handler) http.Handler { return next }

// env wires the real services and router over the in-memory doubles.
type env struct {
	router   chi.Router
	requests *fakeRequestRepo
	rentals  *fakeRentalRepo
	users    *fakeUserRepo
	gateway  *fakeGateway
	codes    *fakeCodeStore
}

func newEnv() *env {
	rentals := newFakeRentalRepo()
	requests := newFakeRequestRepo(rentals)
	users := newFakeUserRepo()
	gateway := newFakeGateway()
	codes := newFakeCodeStore()

	verification := service.NewVerificationService(codes, gateway, 5*time.Minute)
	notifier := service.NewNotificationService(gateway)
	signatures := service.NewSignatureRequestService(
		requests, rentals, users, verification, notifier,
		"https://record365.kr", 72*time.Hour,
	)

	authMiddleware := middleware.NewAuthMiddleware(users)
	signatureHandler := NewSignatureHandler(signatures, authMiddleware.Handler, passThrough)
	sendSMSHandler := NewSendSMSHandler(verification, passThrough)

	r := chi.NewRouter()
	r.Mount("/signature", signatureHandler.Routes())
	r.Mount("/send-sms", sendSMSHandler.Routes())

	return &env{
		router:   r,
		requests: requests,
		rentals:  rentals,
		users:    users,
		gateway:  gateway,
		codes:    codes,
	}
}
