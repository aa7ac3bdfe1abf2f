package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/record365/sign-server-go/internal/audit"
	apperrors "github.com/record365/sign-server-go/internal/errors"
	"github.com/record365/sign-server-go/internal/httputil"
	"github.com/record365/sign-server-go/internal/service"
	"github.com/record365/sign-server-go/internal/util"
)

// SendSMSHandler issues and checks phone verification codes.
type SendSMSHandler struct {
	verification *service.VerificationService
	smsLimiter   func(http.Handler) http.Handler
}

func NewSendSMSHandler(verification *service.VerificationService, smsLimiter func(http.Handler) http.Handler) *SendSMSHandler {
	return &SendSMSHandler{verification: verification, smsLimiter: smsLimiter}
}

func (h *SendSMSHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.smsLimiter).Post("/", h.SendSMS)
	return r
}

// POST /send-sms
// type "send" issues a fresh code and dispatches it; type "verify"
// checks a submitted code against the live slot. The code itself is
// never present in a response body.
func (h *SendSMSHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone" validate:"required"`
		Type  string `json:"type" validate:"required,oneof=send verify"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	if !util.IsValidPhone(req.Phone) {
		httputil.WriteError(w, apperrors.InvalidInput("phone", "must match 010-XXXX-XXXX"))
		return
	}

	switch req.Type {
	case "send":
		if _, err := h.verification.Issue(r.Context(), req.Phone); err != nil {
			httputil.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "인증번호가 발송되었습니다.",
		})

	case "verify":
		if req.Code == "" {
			httputil.WriteError(w, apperrors.MissingRequired("code"))
			return
		}
		if err := h.verification.Consume(r.Context(), req.Phone, req.Code); err != nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventCodeRejected})
			httputil.WriteError(w, err)
			return
		}
		audit.LogFromRequest(r, audit.Event{Type: audit.EventCodeConsumed})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "인증이 완료되었습니다.",
		})
	}
}
