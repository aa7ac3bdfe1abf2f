package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/record365/sign-server-go/internal/errors"
	"github.com/record365/sign-server-go/internal/util"
)

// Channel selects the provider payload shape for free-text sends.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelKakao Channel = "kakao"
)

// Gateway abstracts the carrier's send API. Delivery is not idempotent:
// a retry may deliver the same message twice, which is accepted.
type Gateway interface {
	SendCode(ctx context.Context, phone, code string) error
	SendText(ctx context.Context, phone, text string, channel Channel) error
}

type Client struct {
	baseURL      string
	apiKey       string
	senderNumber string
	templateCode string
	client       *http.Client
}

func NewClient(baseURL, apiKey, senderNumber, templateCode string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		senderNumber: senderNumber,
		templateCode: templateCode,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// smsPayload is the provider's plain text-message request shape.
type smsPayload struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
}

// kakaoPayload is the provider's AlimTalk template request shape.
type kakaoPayload struct {
	TemplateCode string `json:"templateCode"`
	To           string `json:"to"`
	Content      string `json:"content"`
	FailoverSMS  bool   `json:"failoverSms"`
}

// providerResponse carries the provider's own status field, which must
// be checked in addition to the HTTP status.
type providerResponse struct {
	ResultCode string `json:"resultCode"`
	Message    string `json:"message"`
}

func (c *Client) SendCode(ctx context.Context, phone, code string) error {
	text := fmt.Sprintf("[Record 365] 인증번호 [%s]를 입력해 주세요. 유효시간은 5분입니다.", code)
	return c.SendText(ctx, phone, text, ChannelSMS)
}

func (c *Client) SendText(ctx context.Context, phone, text string, channel Channel) error {
	var path string
	var payload any

	switch channel {
	case ChannelKakao:
		path = "/v2/alimtalk"
		payload = kakaoPayload{
			TemplateCode: c.templateCode,
			To:           phone,
			Content:      text,
			FailoverSMS:  false,
		}
	default:
		path = "/v2/messages"
		payload = smsPayload{
			Type:    "SMS",
			From:    c.senderNumber,
			To:      phone,
			Content: text,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("channel", string(channel)).
			Str("phone", util.MaskPhone(phone)).
			Dur("elapsed", elapsed).
			Msg("gateway request error")
		return apperrors.Gateway(providerName(channel), 0, err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("channel", string(channel)).
			Str("phone", util.MaskPhone(phone)).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("gateway send failed")
		return apperrors.Gateway(providerName(channel), resp.StatusCode, string(raw))
	}

	var pr providerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		log.Error().
			Err(err).
			Str("channel", string(channel)).
			Int("status", resp.StatusCode).
			Msg("gateway response malformed")
		return apperrors.Gateway(providerName(channel), resp.StatusCode, "malformed provider response")
	}

	if pr.ResultCode != "0" {
		log.Error().
			Str("channel", string(channel)).
			Str("phone", util.MaskPhone(phone)).
			Str("resultCode", pr.ResultCode).
			Str("providerMessage", pr.Message).
			Dur("elapsed", elapsed).
			Msg("gateway rejected send")
		return apperrors.Gateway(providerName(channel), resp.StatusCode, pr.Message)
	}

	log.Info().
		Str("channel", string(channel)).
		Str("phone", util.MaskPhone(phone)).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("message dispatched")

	return nil
}

func providerName(channel Channel) string {
	if channel == ChannelKakao {
		return "Kakao"
	}
	return "SMS"
}
