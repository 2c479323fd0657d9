package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-exchange-api/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const exchangeColumns = `id, from_user_id, to_user_id, from_currency_id, to_currency_id,
		from_amount::text, to_amount::text, rate_used::text, status, created_at, updated_at`

// ExchangeRepo implements ports.ExchangeRepository.
type ExchangeRepo struct {
	pool Pool
}

// NewExchangeRepo creates a new ExchangeRepo.
func NewExchangeRepo(pool Pool) *ExchangeRepo {
	return &ExchangeRepo{pool: pool}
}

// scanExchange converts a generic row into a typed Exchange. All monetary
// columns travel as exact decimal strings.
func scanExchange(row rowScanner) (*domain.Exchange, error) {
	e := &domain.Exchange{}
	var fromAmount, toAmount, rate, status string
	err := row.Scan(
		&e.ID, &e.FromUserID, &e.ToUserID, &e.FromCurrencyID, &e.ToCurrencyID,
		&fromAmount, &toAmount, &rate, &status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if e.FromAmount, err = decimal.NewFromString(fromAmount); err != nil {
		return nil, fmt.Errorf("parse from_amount %q: %w", fromAmount, err)
	}
	if e.ToAmount, err = decimal.NewFromString(toAmount); err != nil {
		return nil, fmt.Errorf("parse to_amount %q: %w", toAmount, err)
	}
	if e.RateUsed, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse rate_used %q: %w", rate, err)
	}
	e.Status = domain.ExchangeStatus(status)
	return e, nil
}

// Create persists a new exchange record.
func (r *ExchangeRepo) Create(ctx context.Context, e *domain.Exchange) error {
	query := `INSERT INTO exchanges (id, from_user_id, to_user_id, from_currency_id, to_currency_id,
			from_amount, to_amount, rate_used, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.FromUserID, e.ToUserID, e.FromCurrencyID, e.ToCurrencyID,
		e.FromAmount.String(), e.ToAmount.String(), e.RateUsed.String(),
		string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// GetByID fetches an exchange by its UUID (without locking).
func (r *ExchangeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE id = $1`

	e, err := scanExchange(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exchange by id: %w", err)
	}
	return e, nil
}

// GetByIDForUpdate fetches an exchange with pessimistic locking so concurrent
// settlement attempts on the same record serialize. This MUST be called
// within a transaction.
func (r *ExchangeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE id = $1 FOR UPDATE`

	e, err := scanExchange(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exchange for update: %w", err)
	}
	return e, nil
}

// UpdateStatus transitions an exchange within a transaction.
func (r *ExchangeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ExchangeStatus) error {
	query := `UPDATE exchanges SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update exchange status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("exchange not found: %s", id)
	}
	return nil
}

// MarkFailed is the always-attempted follow-up write after a settlement
// rollback. It is guarded on status so a record that has meanwhile reached a
// terminal state is left untouched.
func (r *ExchangeRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE exchanges SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	_, err := r.pool.Exec(ctx, query,
		string(domain.ExchangeStatusFailed), time.Now().UTC(), id,
		string(domain.ExchangeStatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark exchange failed: %w", err)
	}
	return nil
}

// ListByUser fetches exchanges a user participates in, newest first.
func (r *ExchangeRepo) ListByUser(ctx context.Context, userID uuid.UUID, direction domain.ExchangeDirection, limit, offset int) ([]domain.Exchange, error) {
	var where string
	switch direction {
	case domain.ExchangeDirectionSent:
		where = `from_user_id = $1`
	case domain.ExchangeDirectionReceived:
		where = `to_user_id = $1`
	default:
		where = `(from_user_id = $1 OR to_user_id = $1)`
	}

	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE ` + where +
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list exchanges by user: %w", err)
	}
	defer rows.Close()

	return collectExchanges(rows)
}

// ListByStatus fetches exchanges in a given state, newest first.
func (r *ExchangeRepo) ListByStatus(ctx context.Context, status domain.ExchangeStatus, limit, offset int) ([]domain.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE status = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list exchanges by status: %w", err)
	}
	defer rows.Close()

	return collectExchanges(rows)
}

func collectExchanges(rows pgx.Rows) ([]domain.Exchange, error) {
	var exchanges []domain.Exchange
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}
		exchanges = append(exchanges, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange rows: %w", err)
	}
	return exchanges, nil
}
