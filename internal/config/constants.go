package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Verification code lifetime and the Redis retention window.
// The retention window is longer than the code lifetime so a consume
// attempt after expiry can be reported as expired rather than unknown.
const (
	VerificationCodeTTL       = 5 * time.Minute
	VerificationCodeRetention = 30 * time.Minute
)

// Signature request lifetime
const SignatureRequestTTL = 72 * time.Hour

// Background job intervals
const ReconcileJobInterval = 5 * time.Minute

// Max request body for signature submission (base64 raster image)
const MaxSubmitBodySize = 2 << 20

// SMS provider call timeout
const GatewayTimeout = 5 * time.Second
