package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/record365/sign-server-go/internal/config"
	apperrors "github.com/record365/sign-server-go/internal/errors"
	redisclient "github.com/record365/sign-server-go/internal/redis"
	"github.com/record365/sign-server-go/internal/sms"
	"github.com/record365/sign-server-go/internal/util"
)

// CodeEntry is the single live code slot for a phone number.
// ExpiresAt inside the value is authoritative; the store's own TTL is a
// longer retention window so a late consume attempt can be told apart
// from one that was never requested.
type CodeEntry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CodeStore is a keyed TTL store shared across all handler instances.
// Process memory is not acceptable here: codes must survive instance
// routing under multi-instance deployment.
type CodeStore interface {
	Put(ctx context.Context, phone string, entry CodeEntry, retention time.Duration) error
	Get(ctx context.Context, phone string) (*CodeEntry, error)
	Delete(ctx context.Context, phone string) error
}

// RedisCodeStore backs CodeStore with Redis.
type RedisCodeStore struct {
	client *redisclient.Client
}

func NewRedisCodeStore(client *redisclient.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) Put(ctx context.Context, phone string, entry CodeEntry, retention time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal code entry: %w", err)
	}
	return s.client.Set(ctx, redisclient.VerificationCodeKey(phone), data, retention).Err()
}

func (s *RedisCodeStore) Get(ctx context.Context, phone string) (*CodeEntry, error) {
	data, err := s.client.Get(ctx, redisclient.VerificationCodeKey(phone)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry CodeEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal code entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, phone string) error {
	return s.client.Del(ctx, redisclient.VerificationCodeKey(phone)).Err()
}

// VerificationService issues and consumes short-lived numeric codes.
type VerificationService struct {
	store   CodeStore
	gateway sms.Gateway
	codeTTL time.Duration
}

func NewVerificationService(store CodeStore, gateway sms.Gateway, codeTTL time.Duration) *VerificationService {
	return &VerificationService{
		store:   store,
		gateway: gateway,
		codeTTL: codeTTL,
	}
}

// Issue mints a fresh 6-digit code for the phone, overwriting any prior
// slot, and dispatches it over SMS. The returned code is for internal
// use only and must never reach an API response body.
func (s *VerificationService) Issue(ctx context.Context, phone string) (string, error) {
	code := util.GenerateVerificationCode()
	entry := CodeEntry{
		Code:      code,
		ExpiresAt: time.Now().Add(s.codeTTL),
	}

	if err := s.store.Put(ctx, phone, entry, config.VerificationCodeRetention); err != nil {
		return "", apperrors.Internal("Failed to store verification code").WithCause(err)
	}

	if err := s.gateway.SendCode(ctx, phone, code); err != nil {
		return "", err
	}

	log.Info().
		Str("phone", util.MaskPhone(phone)).
		Str("code", util.MaskCode(code)).
		Time("expiresAt", entry.ExpiresAt).
		Msg("verification code issued")

	return code, nil
}

// Consume validates and deletes the code for the phone. A code is
// single-use: success removes the slot, and an expired code is removed
// on the failed attempt too.
func (s *VerificationService) Consume(ctx context.Context, phone, submitted string) error {
	entry, err := s.store.Get(ctx, phone)
	if err != nil {
		return apperrors.Internal("Failed to read verification code").WithCause(err)
	}

	if entry == nil {
		log.Warn().Str("phone", util.MaskPhone(phone)).Msg("verification attempted without issued code")
		return apperrors.CodeNotRequested()
	}

	if time.Now().After(entry.ExpiresAt) {
		if err := s.store.Delete(ctx, phone); err != nil {
			log.Error().Err(err).Str("phone", util.MaskPhone(phone)).Msg("delete expired verification code")
		}
		return apperrors.CodeExpired()
	}

	if !util.ConstantTimeEqual(entry.Code, submitted) {
		log.Warn().Str("phone", util.MaskPhone(phone)).Msg("verification code mismatch")
		return apperrors.CodeMismatch()
	}

	if err := s.store.Delete(ctx, phone); err != nil {
		return apperrors.Internal("Failed to consume verification code").WithCause(err)
	}

	log.Info().Str("phone", util.MaskPhone(phone)).Msg("verification code consumed")
	return nil
}
