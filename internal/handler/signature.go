package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	apperrors "github.com/record365/sign-server-go/internal/errors"
	"github.com/record365/sign-server-go/internal/httputil"
	"github.com/record365/sign-server-go/internal/middleware"
	"github.com/record365/sign-server-go/internal/model"
	"github.com/record365/sign-server-go/internal/service"
	"github.com/record365/sign-server-go/internal/util"
)

var validate = validator.New()

type SignatureHandler struct {
	svc           *service.SignatureRequestService
	authHandler   func(http.Handler) http.Handler
	verifyLimiter func(http.Handler) http.Handler
}

func NewSignatureHandler(
	svc *service.SignatureRequestService,
	authHandler func(http.Handler) http.Handler,
	verifyLimiter func(http.Handler) http.Handler,
) *SignatureHandler {
	return &SignatureHandler{
		svc:           svc,
		authHandler:   authHandler,
		verifyLimiter: verifyLimiter,
	}
}

func (h *SignatureHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(h.authHandler)
		r.Post("/request", h.CreateRequest)
		r.Get("/requests", h.ListRequests)
	})

	r.Get("/info", h.Info)
	r.With(h.verifyLimiter).Post("/verify-phone", h.VerifyPhone)
	r.Post("/submit", h.Submit)

	return r
}

// POST /signature/request
// Registers a signature request for a rental the caller owns and sends
// the signing link to the counterparty.
func (h *SignatureHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
		return
	}

	var req struct {
		RentalID    string `json:"rentalId" validate:"required"`
		SignerName  string `json:"signerName" validate:"required"`
		SignerPhone string `json:"signerPhone" validate:"required"`
		Method      string `json:"method" validate:"required,oneof=sms kakao"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	created, delivery, err := h.svc.Create(r.Context(), user, service.CreateRequestParams{
		RentalID:    req.RentalID,
		SignerName:  req.SignerName,
		SignerPhone: req.SignerPhone,
		Method:      req.Method,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":        true,
		"signId":         created.ID,
		"signUrl":        created.SignURL,
		"expiresAt":      created.ExpiresAt.Format(time.RFC3339),
		"deliveryStatus": string(delivery),
	})
}

// GET /signature/info?signId=...
// Read-only snapshot for the signing page. Expired and completed links
// render distinct terminal states.
func (h *SignatureHandler) Info(w http.ResponseWriter, r *http.Request) {
	signID := r.URL.Query().Get("signId")
	if signID == "" {
		httputil.WriteError(w, apperrors.MissingRequired("signId"))
		return
	}

	req, state, err := h.svc.Get(r.Context(), signID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	switch state {
	case model.StateExpired:
		writeJSON(w, http.StatusGone, map[string]any{"expired": true})
	case model.StateCompleted:
		writeJSON(w, http.StatusOK, map[string]any{"completed": true})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"signId":         req.ID,
			"rentalTitle":    req.RentalTitle,
			"rentalType":     req.RentalType,
			"requesterName":  req.RequesterName,
			"signerName":     req.SignerName,
			"status":         string(req.Status),
			"isExistingUser": req.IsExistingUser,
			"requestedAt":    req.RequestedAt.Format(time.RFC3339),
			"expiresAt":      req.ExpiresAt.Format(time.RFC3339),
		})
	}
}

// POST /signature/verify-phone
// The gate before code issuance. The generated code never appears in
// the response body.
func (h *SignatureHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SignID      string `json:"signId" validate:"required"`
		PhoneNumber string `json:"phoneNumber" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	if err := h.svc.VerifyPhone(r.Context(), req.SignID, req.PhoneNumber); err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodePhoneMismatch {
			requesterName := ""
			if details, ok := appErr.Details.(map[string]string); ok {
				requesterName = details["requesterName"]
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success":       false,
				"message":       appErr.Message,
				"requesterName": requesterName,
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "인증번호가 발송되었습니다.",
	})
}

// POST /signature/submit
// Finalizes the signature. The response acknowledges only; signature
// data is never echoed back.
func (h *SignatureHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SignID         string `json:"signId" validate:"required"`
		SignerName     string `json:"signerName" validate:"required"`
		SignerAddress  string `json:"signerAddress"`
		SignatureImage string `json:"signatureImage" validate:"required"`
		IPAddress      string `json:"ipAddress"`
		UserAgent      string `json:"userAgent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	if req.IPAddress == "" {
		req.IPAddress = r.RemoteAddr
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	err := h.svc.Submit(r.Context(), service.SubmitParams{
		SignID:         req.SignID,
		SignerName:     req.SignerName,
		SignerAddress:  req.SignerAddress,
		SignatureImage: req.SignatureImage,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	log.Info().Str("signId", req.SignID).Msg("signature submitted")

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "서명이 완료되었습니다.",
	})
}

// GET /signature/requests
// Lists the authenticated owner's signature requests, newest first.
func (h *SignatureHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
		return
	}

	reqs, err := h.svc.ListByRequester(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	now := time.Now()
	formatted := make([]map[string]any, len(reqs))
	for i, req := range reqs {
		formatted[i] = map[string]any{
			"signId":      req.ID,
			"rentalId":    req.RentalID,
			"rentalTitle": req.RentalTitle,
			"signerName":  req.SignerName,
			"signerPhone": util.MaskPhone(req.SignerPhone),
			"method":      string(req.Method),
			"state":       string(req.State(now)),
			"requestedAt": req.RequestedAt.Format(time.RFC3339),
			"expiresAt":   req.ExpiresAt.Format(time.RFC3339),
			"completedAt": formatTime(req.CompletedAt),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requests": formatted,
		"total":    len(reqs),
	})
}
