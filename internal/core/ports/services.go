package ports

import (
	"context"
	"time"

	"crypto-exchange-api/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- External collaborators ---

// SymbolInfo describes one tradeable symbol from the upstream catalog.
type SymbolInfo struct {
	Symbol       string
	MinOrderSize decimal.Decimal
	Status       string
}

// MarketDataClient is the upstream price source. It is treated as unreliable
// and rate-limited; callers must go through the rate resolver's cache.
type MarketDataClient interface {
	FetchSymbols(ctx context.Context) ([]SymbolInfo, error)
	FetchSpotPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// SettlementCache caches terminal exchange records for fast idempotent
// replay of Process calls. Advisory only; losing it costs latency, never
// correctness.
type SettlementCache interface {
	Get(ctx context.Context, exchangeID uuid.UUID) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, exchangeID uuid.UUID, value []byte, ttl time.Duration) error
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID   uuid.UUID
	Username string
}

// --- Service Ports (Business Logic) ---

// SpotPrice is a cached spot price in the reference unit (USD).
type SpotPrice struct {
	Symbol      string
	Price       decimal.Decimal
	LastUpdated time.Time
}

// ExchangeRate is a resolved conversion rate between two symbols.
type ExchangeRate struct {
	FromSymbol string
	ToSymbol   string
	Rate       decimal.Decimal
	Timestamp  time.Time
}

// RateResolver produces conversion rates, shielding callers from upstream
// latency and unavailability. Failures surface as RateUnavailable; retries
// are the caller's responsibility.
type RateResolver interface {
	GetSpotPrice(ctx context.Context, symbol string) (*SpotPrice, error)
	GetExchangeRate(ctx context.Context, fromSymbol, toSymbol string) (*ExchangeRate, error)
	IsSupportedCurrency(ctx context.Context, symbol string) bool
	ValidateTradeAmount(ctx context.Context, symbol string, amount decimal.Decimal) bool
}

// WalletService is the single point through which balances are read and
// mutated.
type WalletService interface {
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetWalletForUserCurrency(ctx context.Context, userID, currencyID uuid.UUID) (*domain.Wallet, error)
	GetUserWallets(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	CreateWallet(ctx context.Context, userID, currencyID uuid.UUID) (*domain.Wallet, error)
	MutateBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, op domain.BalanceOp) (*domain.Wallet, error)
	Transfer(ctx context.Context, fromWalletID, toWalletID uuid.UUID, amount decimal.Decimal) (*TransferResult, error)
	DeleteWallet(ctx context.Context, id uuid.UUID) error
}

// TransferResult holds both sides of a completed transfer.
type TransferResult struct {
	FromWallet *domain.Wallet
	ToWallet   *domain.Wallet
}

// ExchangeService owns exchange records and their status transitions.
type ExchangeService interface {
	Create(ctx context.Context, req CreateExchangeRequest) (*domain.Exchange, error)
	Cancel(ctx context.Context, exchangeID, requestingUserID uuid.UUID) (*domain.Exchange, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
	ListByUser(ctx context.Context, userID uuid.UUID, direction domain.ExchangeDirection, limit, offset int) ([]domain.Exchange, error)
	ListByStatus(ctx context.Context, status domain.ExchangeStatus, limit, offset int) ([]domain.Exchange, error)
}

// CreateExchangeRequest holds validated input for exchange creation.
type CreateExchangeRequest struct {
	FromUserID     uuid.UUID
	ToUserID       uuid.UUID
	FromCurrencyID uuid.UUID
	ToCurrencyID   uuid.UUID
	FromAmount     decimal.Decimal
}

// SettlementService drives a pending exchange to a terminal state. Process is
// idempotent against already-terminal exchanges and guarantees no exchange is
// left pending after a failed funds movement.
type SettlementService interface {
	Process(ctx context.Context, exchangeID uuid.UUID) (*domain.Exchange, error)
}

// CurrencyService manages the currency catalog.
type CurrencyService interface {
	Create(ctx context.Context, symbol, name string) (*domain.Currency, error)
	GetBySymbol(ctx context.Context, symbol string) (*domain.Currency, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Currency, error)
}

// AuthService defines authentication and account business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}
