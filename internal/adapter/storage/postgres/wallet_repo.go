package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, user_id, currency_id, balance::text, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanWallet converts a generic row into a typed Wallet. The balance travels
// as an exact decimal string so no float representation is ever involved.
func scanWallet(row rowScanner) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	var balance string
	if err := row.Scan(&w.ID, &w.UserID, &w.CurrencyID, &balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse wallet balance %q: %w", balance, err)
	}
	w.Balance = b
	return w, nil
}

// Create inserts a new wallet outside any caller-held transaction.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, currency_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.UserID, w.CurrencyID, w.Balance.String(), w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// InsertTx inserts a new wallet inside an open transaction. Used by the
// settlement credit leg to create the receiving wallet on first credit.
func (r *WalletRepo) InsertTx(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, currency_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.CurrencyID, w.Balance.String(), w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet in tx: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByUserCurrency fetches the wallet for a (user, currency) pair
// (non-locking read).
func (r *WalletRepo) GetByUserCurrency(ctx context.Context, userID, currencyID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency_id = $2`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID, currencyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by user and currency: %w", err)
	}
	return w, nil
}

// ListByUser fetches all wallets owned by a user.
func (r *WalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets by user: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update by id: %w", err)
	}
	return w, nil
}

// GetByUserCurrencyForUpdate fetches a wallet by (user, currency) with
// pessimistic locking. This MUST be called within a transaction.
func (r *WalletRepo) GetByUserCurrencyForUpdate(ctx context.Context, tx pgx.Tx, userID, currencyID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency_id = $2 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, userID, currencyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update by user and currency: %w", err)
	}
	return w, nil
}

// UpdateBalance rewrites a wallet's balance within a transaction. The caller
// must hold the row lock acquired by one of the ForUpdate reads.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, balance.String(), time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// Delete removes a wallet row. The balance guard lives in the statement so
// a credit landing after the service-level check cannot destroy funds.
func (r *WalletRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM wallets WHERE id = $1 AND balance = 0`, id)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("delete wallet: %w", err)
		}
		if exists {
			return ports.ErrWalletNotEmptied
		}
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}
