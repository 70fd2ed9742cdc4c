package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payloom/config"
	httpHandler "payloom/internal/adapter/http/handler"
	"payloom/internal/adapter/provider"
	pgStorage "payloom/internal/adapter/storage/postgres"
	redisStorage "payloom/internal/adapter/storage/redis"
	"payloom/internal/core/ports"
	"payloom/internal/service"
	"payloom/pkg/logger"

	"github.com/google/uuid"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting PayLoom escrow service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	orderRepo := pgStorage.NewOrderRepo(pool)
	walletRepo := pgStorage.NewEscrowWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	accountRepo := pgStorage.NewPlatformAccountRepo(pool)
	sellerRepo := pgStorage.NewSellerWalletRepo(pool)
	depositRepo := pgStorage.NewDepositRepo(pool)
	disputeRepo := pgStorage.NewDisputeRepo(pool)
	notificationRepo := pgStorage.NewNotificationRepo(pool)
	eventRepo := pgStorage.NewPaymentEventRepo(pool)
	operatorRepo := pgStorage.NewOperatorRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	refCache := redisStorage.NewProviderRefCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Fee rules are validated here: a bad fee configuration is a startup
	// failure, never a per-request decision.
	fees, err := service.NewFeeCalculator(cfg.Escrow)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid escrow fee configuration")
	}

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(operatorRepo, hashSvc, tokenSvc)

	darajaClient := provider.NewDarajaClient(cfg.Provider, &http.Client{Timeout: cfg.Provider.Timeout}, log)

	notifier := service.NewNotificationService(notificationRepo, nil, log)

	adminUserID := uuid.Nil
	if cfg.Admin.FraudAlertUser != "" {
		adminUserID, err = uuid.Parse(cfg.Admin.FraudAlertUser)
		if err != nil {
			log.Fatal().Err(err).Msg("admin.fraud_alert_user must be a UUID")
		}
	}

	// Initialize business services
	escrowSvc := service.NewEscrowService(
		orderRepo,
		walletRepo,
		ledgerRepo,
		accountRepo,
		sellerRepo,
		disputeRepo,
		transactor,
		fees,
		notifier,
		cfg.Escrow,
		log,
	)
	verificationSvc := service.NewVerificationService(
		orderRepo,
		depositRepo,
		eventRepo,
		refCache,
		escrowSvc,
		transactor,
		notifier,
		cfg.Escrow,
		adminUserID,
		log,
	)
	autoReleaseSvc := service.NewAutoReleaseService(walletRepo, orderRepo, escrowSvc, log)
	withdrawalSvc := service.NewWithdrawalService(
		sellerRepo,
		ledgerRepo,
		accountRepo,
		transactor,
		darajaClient,
		notifier,
		log,
	)
	reconSvc := service.NewReconciliationService(accountRepo, ledgerRepo, log)

	// In-process auto-release sweeper
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go autoReleaseSvc.Run(sweepCtx, cfg.Escrow.SweepInterval)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		EscrowSvc:       escrowSvc,
		VerificationSvc: verificationSvc,
		AutoReleaseSvc:  autoReleaseSvc,
		WithdrawalSvc:   withdrawalSvc,
		ReconSvc:        reconSvc,
		AuthSvc:         authSvc,
		TokenSvc:        tokenSvc,
		OrderRepo:       orderRepo,
		DisputeRepo:     disputeRepo,
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  []ports.HealthChecker{pgHealth, redisHealth},
		CronSecret:      cfg.Cron.Secret,
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
