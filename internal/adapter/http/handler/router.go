package handler

import (
	"crypto-exchange-api/internal/adapter/http/middleware"
	"crypto-exchange-api/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	CurrencySvc    ports.CurrencyService
	WalletSvc      ports.WalletService
	ExchangeSvc    ports.ExchangeService
	SettlementSvc  ports.SettlementService
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis + market source)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	currencyHandler := NewCurrencyHandler(deps.CurrencySvc)
	v1.GET("/currencies", currencyHandler.List)
	v1.GET("/currencies/:symbol", currencyHandler.Get)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	v1.POST("/currencies", jwtAuth, currencyHandler.Create)
	v1.GET("/users/me", jwtAuth, authHandler.Me)

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("", walletHandler.Create)
		wallets.GET("", walletHandler.List)
		wallets.GET("/:id", walletHandler.Get)
		wallets.POST("/:id/credit", walletHandler.Credit)
		wallets.POST("/:id/debit", walletHandler.Debit)
		wallets.PUT("/:id/balance", walletHandler.SetBalance)
		wallets.POST("/:id/transfer", walletHandler.Transfer)
		wallets.DELETE("/:id", walletHandler.Delete)
	}

	exchangeHandler := NewExchangeHandler(deps.ExchangeSvc, deps.SettlementSvc)
	exchanges := v1.Group("/exchanges", jwtAuth)
	{
		exchanges.POST("", exchangeHandler.Create)
		exchanges.GET("", exchangeHandler.List)
		exchanges.GET("/:id", exchangeHandler.Get)
		exchanges.POST("/:id/settle", exchangeHandler.Settle)
		exchanges.POST("/:id/cancel", exchangeHandler.Cancel)
	}

	return r
}
