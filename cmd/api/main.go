package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-exchange-api/config"
	httpHandler "crypto-exchange-api/internal/adapter/http/handler"
	"crypto-exchange-api/internal/adapter/market"
	pgStorage "crypto-exchange-api/internal/adapter/storage/postgres"
	redisStorage "crypto-exchange-api/internal/adapter/storage/redis"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/internal/service"
	"crypto-exchange-api/pkg/logger"
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
		Msg("Starting Crypto Exchange API")

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
	userRepo := pgStorage.NewUserRepo(pool)
	currencyRepo := pgStorage.NewCurrencyRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	exchangeRepo := pgStorage.NewExchangeRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Redis-backed settlement replay cache
	settlementCache := redisStorage.NewSettlementCache(rdb)

	// Upstream price source
	marketClient := market.NewGeminiClient(cfg.Market, log)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	rateSvc := service.NewRateService(marketClient, cfg.Market, time.Now, log)

	// Initialize business services
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc)
	currencySvc := service.NewCurrencyService(currencyRepo, rateSvc, log)
	walletSvc := service.NewWalletService(walletRepo, userRepo, currencyRepo, transactor, log)
	exchangeSvc := service.NewExchangeService(exchangeRepo, walletRepo, userRepo, currencyRepo, rateSvc, transactor, log)
	settlementSvc := service.NewSettlementService(
		exchangeRepo,
		walletRepo,
		settlementCache,
		transactor,
		cfg.Settlement.Timeout,
		cfg.Settlement.CacheTTL,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)
	marketHealth := market.NewHealthCheck(marketClient)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		CurrencySvc:    currencySvc,
		WalletSvc:      walletSvc,
		ExchangeSvc:    exchangeSvc,
		SettlementSvc:  settlementSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth, marketHealth},
		Logger:         log,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
