package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/record365/sign-server-go/internal/audit"
	apperrors "github.com/record365/sign-server-go/internal/errors"
	"github.com/record365/sign-server-go/internal/model"
	"github.com/record365/sign-server-go/internal/repository"
	"github.com/record365/sign-server-go/internal/util"
)

type CreateRequestParams struct {
	RentalID    string
	SignerName  string
	SignerPhone string
	Method      string
}

type SubmitParams struct {
	SignID         string
	SignerName     string
	SignerAddress  string
	SignatureImage string
	IPAddress      string
	UserAgent      string
}

// SignatureRequestService owns the countersign workflow: request
// creation, the phone verification gate, and final submission.
type SignatureRequestService struct {
	requests     repository.SignatureRequestRepository
	rentals      repository.RentalRepository
	users        repository.UserRepository
	verification *VerificationService
	notifier     *NotificationService
	signBaseURL  string
	requestTTL   time.Duration
}

func NewSignatureRequestService(
	requests repository.SignatureRequestRepository,
	rentals repository.RentalRepository,
	users repository.UserRepository,
	verification *VerificationService,
	notifier *NotificationService,
	signBaseURL string,
	requestTTL time.Duration,
) *SignatureRequestService {
	return &SignatureRequestService{
		requests:     requests,
		rentals:      rentals,
		users:        users,
		verification: verification,
		notifier:     notifier,
		signBaseURL:  signBaseURL,
		requestTTL:   requestTTL,
	}
}

// Create registers a new signature request for a rental the requester
// owns and dispatches the signing link. Delivery failure does not fail
// creation; the caller sees it in the returned delivery status.
func (s *SignatureRequestService) Create(ctx context.Context, requester *model.User, params CreateRequestParams) (*model.SignatureRequest, model.DeliveryStatus, error) {
	rentalID := strings.TrimSpace(params.RentalID)
	signerName := strings.TrimSpace(params.SignerName)
	signerPhone := strings.TrimSpace(params.SignerPhone)
	method := strings.TrimSpace(params.Method)

	switch {
	case rentalID == "":
		return nil, "", apperrors.MissingRequired("rentalId")
	case signerName == "":
		return nil, "", apperrors.MissingRequired("signerName")
	case signerPhone == "":
		return nil, "", apperrors.MissingRequired("signerPhone")
	}

	if !util.IsValidPhone(signerPhone) {
		return nil, "", apperrors.InvalidInput("signerPhone", "must match 010-XXXX-XXXX")
	}
	if !util.IsValidEnum(method, model.ValidDeliveryMethods()) {
		return nil, "", apperrors.InvalidInput("method", "must be sms or kakao")
	}

	rental, err := s.rentals.FindByID(ctx, rentalID)
	if err != nil {
		return nil, "", apperrors.Database(err)
	}
	if rental == nil {
		return nil, "", apperrors.NotFound("Rental")
	}
	if !rental.CheckInCompleted() {
		return nil, "", apperrors.PreconditionFailed("Check-in is not completed for this rental")
	}

	isExistingUser, err := s.users.ExistsByPhone(ctx, signerPhone)
	if err != nil {
		return nil, "", apperrors.Database(err)
	}

	signID := util.GenerateSignID()
	req, err := s.requests.Create(ctx, model.CreateSignatureRequestParams{
		ID:             signID,
		RentalID:       rental.ID,
		RentalTitle:    rental.Title,
		RentalType:     rental.RentalType,
		RequesterID:    requester.ID,
		RequesterName:  requester.Name,
		SignerName:     signerName,
		SignerPhone:    signerPhone,
		Method:         model.DeliveryMethod(method),
		SignURL:        fmt.Sprintf("%s/sign/%s", s.signBaseURL, signID),
		IsExistingUser: isExistingUser,
		ExpiresAt:      time.Now().Add(s.requestTTL),
	})
	if err != nil {
		return nil, "", apperrors.Database(err)
	}

	delivery := s.notifier.SendSignatureRequest(ctx, req)

	log.Info().
		Str("signId", req.ID).
		Str("rentalId", req.RentalID).
		Str("requesterId", requester.ID).
		Str("signerPhone", util.MaskPhone(req.SignerPhone)).
		Str("method", string(req.Method)).
		Str("delivery", string(delivery)).
		Time("expiresAt", req.ExpiresAt).
		Msg("signature request created")

	return req, delivery, nil
}

// Get loads a request with its effective state at the current time.
func (s *SignatureRequestService) Get(ctx context.Context, signID string) (*model.SignatureRequest, model.EffectiveState, error) {
	req, err := s.requests.FindByID(ctx, signID)
	if err != nil {
		return nil, "", apperrors.Database(err)
	}
	if req == nil {
		return nil, "", apperrors.NotFound("Signature request")
	}
	return req, req.State(time.Now()), nil
}

// VerifyPhone is the gate before code issuance: the claimed phone must
// equal the recorded signer phone exactly (trimmed only). On match a
// verification code is issued and dispatched; the code itself never
// appears in any response.
func (s *SignatureRequestService) VerifyPhone(ctx context.Context, signID, claimedPhone string) error {
	req, state, err := s.Get(ctx, signID)
	if err != nil {
		return err
	}

	switch state {
	case model.StateExpired:
		return apperrors.Expired()
	case model.StateCompleted:
		return apperrors.AlreadyCompleted()
	}

	claimed := strings.TrimSpace(claimedPhone)
	if claimed != req.SignerPhone {
		audit.Log(ctx, audit.Event{
			Type:   audit.EventPhoneMismatch,
			SignID: req.ID,
			Details: map[string]interface{}{
				"claimedPhone": util.MaskPhone(claimed),
			},
		})
		return apperrors.PhoneMismatch(req.RequesterName)
	}

	if _, err := s.verification.Issue(ctx, claimed); err != nil {
		return err
	}

	audit.Log(ctx, audit.Event{Type: audit.EventCodeIssued, SignID: req.ID})
	return nil
}

// Submit finalizes the signature. The signer phone comes from the
// stored request, never from the submitted payload, and the completion
// plus the rental mirror are committed atomically.
func (s *SignatureRequestService) Submit(ctx context.Context, params SubmitParams) error {
	signID := strings.TrimSpace(params.SignID)
	signerName := strings.TrimSpace(params.SignerName)

	switch {
	case signID == "":
		return apperrors.MissingRequired("signId")
	case signerName == "":
		return apperrors.MissingRequired("signerName")
	case params.SignatureImage == "":
		return apperrors.MissingRequired("signatureImage")
	}

	req, state, err := s.Get(ctx, signID)
	if err != nil {
		return err
	}

	switch state {
	case model.StateExpired:
		return apperrors.Expired()
	case model.StateCompleted:
		return apperrors.AlreadyCompleted()
	}

	// Address only applies to housing handovers.
	address := strings.TrimSpace(params.SignerAddress)
	if req.RentalType != model.RentalTypeHousing {
		address = ""
	}

	now := time.Now()
	sig := model.Signature{
		SignerName:    signerName,
		SignerPhone:   req.SignerPhone,
		SignerAddress: address,
		ImageData:     params.SignatureImage,
		SignedAt:      now,
		IPAddress:     params.IPAddress,
		UserAgent:     params.UserAgent,
	}

	if err := s.requests.CompleteAndMirror(ctx, req.ID, sig, now); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return s.classifyStaleSubmit(ctx, req.ID)
		}
		return apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventSignatureCompleted,
		SignID: req.ID,
		Details: map[string]interface{}{
			"rentalId": req.RentalID,
			"ip":       params.IPAddress,
		},
	})

	log.Info().
		Str("signId", req.ID).
		Str("rentalId", req.RentalID).
		Str("signerPhone", util.MaskPhone(req.SignerPhone)).
		Msg("signature request completed")

	return nil
}

// classifyStaleSubmit re-reads after a lost guarded update to report
// why the request was no longer pending.
func (s *SignatureRequestService) classifyStaleSubmit(ctx context.Context, signID string) error {
	req, err := s.requests.FindByID(ctx, signID)
	if err != nil {
		return apperrors.Database(err)
	}
	if req == nil {
		return apperrors.NotFound("Signature request")
	}
	if req.State(time.Now()) == model.StateExpired {
		return apperrors.Expired()
	}
	return apperrors.AlreadyCompleted()
}

// ListByRequester returns the owner's signature requests, newest first.
func (s *SignatureRequestService) ListByRequester(ctx context.Context, requesterID string) ([]model.SignatureRequest, error) {
	reqs, err := s.requests.FindByRequesterID(ctx, requesterID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return reqs, nil
}
