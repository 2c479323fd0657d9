package ports

import (
	"context"
	"errors"

	"crypto-exchange-api/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrWalletNotEmptied is returned by WalletRepository.Delete when the row
// survives the delete because its balance is no longer zero. The service
// checks the balance first, but a credit can land between that check and
// the delete.
var ErrWalletNotEmptied = errors.New("wallet balance is not zero")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// CurrencyRepository defines persistence operations for currencies.
type CurrencyRepository interface {
	Create(ctx context.Context, currency *domain.Currency) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Currency, error)
	GetBySymbol(ctx context.Context, symbol string) (*domain.Currency, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Currency, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// row locking; UpdateBalance and Insert must only run under such a lock.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserCurrency(ctx context.Context, userID, currencyID uuid.UUID) (*domain.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByUserCurrencyForUpdate(ctx context.Context, tx pgx.Tx, userID, currencyID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
	InsertTx(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	// Delete removes the wallet only while its balance is zero, returning
	// ErrWalletNotEmptied otherwise.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExchangeRepository defines persistence operations for exchanges.
type ExchangeRepository interface {
	Create(ctx context.Context, exchange *domain.Exchange) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Exchange, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ExchangeStatus) error
	// MarkFailed is the non-transactional follow-up write used after a
	// settlement rollback; it only touches rows still pending.
	MarkFailed(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, direction domain.ExchangeDirection, limit, offset int) ([]domain.Exchange, error)
	ListByStatus(ctx context.Context, status domain.ExchangeStatus, limit, offset int) ([]domain.Exchange, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
