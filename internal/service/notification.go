package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/record365/sign-server-go/internal/model"
	"github.com/record365/sign-server-go/internal/sms"
	"github.com/record365/sign-server-go/internal/util"
)

// NotificationService delivers the signing-link message. Delivery is
// best effort: the durable request record is the source of truth, so a
// failed notification never fails the creation itself. A Kakao send
// that errors falls back to plain SMS with the same text.
type NotificationService struct {
	gateway sms.Gateway
}

func NewNotificationService(gateway sms.Gateway) *NotificationService {
	return &NotificationService{gateway: gateway}
}

func (s *NotificationService) SendSignatureRequest(ctx context.Context, req *model.SignatureRequest) model.DeliveryStatus {
	text := signRequestText(req)

	if req.Method == model.MethodKakao {
		if err := s.gateway.SendText(ctx, req.SignerPhone, text, sms.ChannelKakao); err == nil {
			return model.DeliveredKakao
		} else {
			log.Warn().
				Err(err).
				Str("signId", req.ID).
				Str("phone", util.MaskPhone(req.SignerPhone)).
				Msg("kakao delivery failed, falling back to sms")
		}
	}

	if err := s.gateway.SendText(ctx, req.SignerPhone, text, sms.ChannelSMS); err != nil {
		log.Error().
			Err(err).
			Str("signId", req.ID).
			Str("phone", util.MaskPhone(req.SignerPhone)).
			Msg("signing link delivery failed on all channels")
		return model.DeliveryFailed
	}

	return model.DeliveredSMS
}

func signRequestText(req *model.SignatureRequest) string {
	return fmt.Sprintf(
		"[Record 365] %s님, %s님이 '%s' 상태 기록에 대한 서명을 요청했습니다. 아래 링크에서 확인 후 서명해 주세요. (유효기간 3일)\n%s",
		req.SignerName, req.RequesterName, req.RentalTitle, req.SignURL,
	)
}
