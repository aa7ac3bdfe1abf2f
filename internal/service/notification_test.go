package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/record365/sign-server-go/internal/errors"
	"github.com/record365/sign-server-go/internal/model"
	"github.com/record365/sign-server-go/internal/sms"
)

func testRequest(method model.DeliveryMethod) *model.SignatureRequest {
	return &model.SignatureRequest{
		ID:            "sr_abcdefgh12345678",
		RentalTitle:   "서울 오피스텔 101호",
		RequesterName: "홍길동",
		SignerName:    "김철수",
		SignerPhone:   "010-1234-5678",
		Method:        method,
		SignURL:       "https://record365.kr/sign/sr_abcdefgh12345678",
		ExpiresAt:     time.Now().Add(72 * time.Hour),
	}
}

func TestSendSignatureRequest(t *testing.T) {
	t.Run("sms method delivers over sms", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("SendText", mock.Anything, "010-1234-5678", mock.Anything, sms.ChannelSMS).Return(nil)

		svc := NewNotificationService(gateway)
		status := svc.SendSignatureRequest(context.Background(), testRequest(model.MethodSMS))

		assert.Equal(t, model.DeliveredSMS, status)
		gateway.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything, sms.ChannelKakao)
	})

	t.Run("kakao method delivers over kakao", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("SendText", mock.Anything, "010-1234-5678", mock.Anything, sms.ChannelKakao).Return(nil)

		svc := NewNotificationService(gateway)
		status := svc.SendSignatureRequest(context.Background(), testRequest(model.MethodKakao))

		assert.Equal(t, model.DeliveredKakao, status)
		gateway.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything, sms.ChannelSMS)
	})

	t.Run("kakao failure falls back to sms with the same text", func(t *testing.T) {
		var kakaoText, smsText string

		gateway := new(mockGateway)
		gateway.On("SendText", mock.Anything, "010-1234-5678", mock.Anything, sms.ChannelKakao).
			Run(func(args mock.Arguments) { kakaoText = args.String(2) }).
			Return(apperrors.Gateway("Kakao", 500, "template error"))
		gateway.On("SendText", mock.Anything, "010-1234-5678", mock.Anything, sms.ChannelSMS).
			Run(func(args mock.Arguments) { smsText = args.String(2) }).
			Return(nil)

		svc := NewNotificationService(gateway)
		status := svc.SendSignatureRequest(context.Background(), testRequest(model.MethodKakao))

		assert.Equal(t, model.DeliveredSMS, status)
		assert.Equal(t, kakaoText, smsText)
	})

	t.Run("both channels failing reports failed delivery", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(apperrors.Gateway("SMS", 503, "unavailable"))

		svc := NewNotificationService(gateway)
		status := svc.SendSignatureRequest(context.Background(), testRequest(model.MethodKakao))

		assert.Equal(t, model.DeliveryFailed, status)
	})

	t.Run("message text carries the signing link", func(t *testing.T) {
		var sent string

		gateway := new(mockGateway)
		gateway.On("SendText", mock.Anything, mock.Anything, mock.Anything, sms.ChannelSMS).
			Run(func(args mock.Arguments) { sent = args.String(2) }).
			Return(nil)

		svc := NewNotificationService(gateway)
		req := testRequest(model.MethodSMS)
		svc.SendSignatureRequest(context.Background(), req)

		assert.Contains(t, sent, req.SignURL)
		assert.Contains(t, sent, req.RentalTitle)
	})
}
