package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/record365/sign-server-go/internal/config"
	"github.com/record365/sign-server-go/internal/database"
	"github.com/record365/sign-server-go/internal/handler"
	"github.com/record365/sign-server-go/internal/jobs"
	"github.com/record365/sign-server-go/internal/middleware"
	"github.com/record365/sign-server-go/internal/redis"
	"github.com/record365/sign-server-go/internal/repository"
	"github.com/record365/sign-server-go/internal/service"
	"github.com/record365/sign-server-go/internal/sms"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	requestRepo := repository.NewSignatureRequestRepository(db)
	rentalRepo := repository.NewRentalRepository(db)
	userRepo := repository.NewUserRepository(db)

	gateway := sms.NewClient(
		cfg.SMSAPIURL, cfg.SMSAPIKey, cfg.SMSSenderNumber, cfg.KakaoTemplateCode,
		config.GatewayTimeout,
	)

	codeStore := service.NewRedisCodeStore(redisClient)
	verificationService := service.NewVerificationService(codeStore, gateway, cfg.CodeTTL())
	notificationService := service.NewNotificationService(gateway)
	signatureService := service.NewSignatureRequestService(
		requestRepo, rentalRepo, userRepo,
		verificationService, notificationService,
		cfg.SignBaseURL, cfg.RequestTTL(),
	)

	rateLimiter := service.NewRateLimiter(redisClient.Client)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	smsLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.SMSRateLimitPerMin, time.Minute, "send-sms",
	)
	verifyLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.SMSRateLimitPerMin, time.Minute, "verify-phone",
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxSubmitBodySize)

	signatureHandler := handler.NewSignatureHandler(
		signatureService, authMiddleware.Handler, verifyLimitMiddleware.Handler,
	)
	sendSMSHandler := handler.NewSendSMSHandler(verificationService, smsLimitMiddleware.Handler)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/signature", func(r chi.Router) {
		r.Mount("/", signatureHandler.Routes())
	})

	r.Route("/send-sms", func(r chi.Router) {
		r.Mount("/", sendSMSHandler.Routes())
	})

	reconcileJob := jobs.NewReconcileJob(requestRepo, rentalRepo, config.ReconcileJobInterval)
	reconcileJob.Start()
	defer reconcileJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
