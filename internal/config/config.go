package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// SignBaseURL is the public origin the signing links are built on.
	SignBaseURL string `env:"SIGN_BASE_URL" envDefault:"https://record365.kr"`

	SMSAPIURL         string `env:"SMS_API_URL,required"`
	SMSAPIKey         string `env:"SMS_API_KEY"`
	SMSSenderNumber   string `env:"SMS_SENDER_NUMBER" envDefault:"0212345678"`
	KakaoTemplateCode string `env:"KAKAO_TEMPLATE_CODE" envDefault:"record365_sign_request"`

	RequestTTLHours    int    `env:"SIGN_REQUEST_TTL_HOURS" envDefault:"72"`
	CodeTTLSeconds     int    `env:"VERIFY_CODE_TTL_SECONDS" envDefault:"300"`
	SMSRateLimitPerMin int    `env:"SMS_RATE_LIMIT_PER_MIN" envDefault:"5"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) RequestTTL() time.Duration {
	return time.Duration(c.RequestTTLHours) * time.Hour
}

func (c *Config) CodeTTL() time.Duration {
	return time.Duration(c.CodeTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if c.SMSAPIKey == "" {
			return fmt.Errorf("SMS_API_KEY is required in production: verification codes cannot be delivered without it")
		}
		if !strings.HasPrefix(c.SignBaseURL, "https://") {
			return fmt.Errorf("SIGN_BASE_URL must be https in production: signing links are capability URLs")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
