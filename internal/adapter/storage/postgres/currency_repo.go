package postgres

import (
	"context"
	"errors"
	"fmt"

	"crypto-exchange-api/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CurrencyRepo implements ports.CurrencyRepository.
type CurrencyRepo struct {
	pool Pool
}

// NewCurrencyRepo creates a new CurrencyRepo.
func NewCurrencyRepo(pool Pool) *CurrencyRepo {
	return &CurrencyRepo{pool: pool}
}

func scanCurrency(row rowScanner) (*domain.Currency, error) {
	c := &domain.Currency{}
	err := row.Scan(&c.ID, &c.Symbol, &c.Name, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new currency.
func (r *CurrencyRepo) Create(ctx context.Context, c *domain.Currency) error {
	query := `INSERT INTO currencies (id, symbol, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Symbol, c.Name, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert currency: %w", err)
	}
	return nil
}

// GetByID fetches a currency by UUID.
func (r *CurrencyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Currency, error) {
	query := `SELECT id, symbol, name, is_active, created_at, updated_at
		FROM currencies WHERE id = $1`

	c, err := scanCurrency(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get currency by id: %w", err)
	}
	return c, nil
}

// GetBySymbol fetches a currency by its upper-case symbol.
func (r *CurrencyRepo) GetBySymbol(ctx context.Context, symbol string) (*domain.Currency, error) {
	query := `SELECT id, symbol, name, is_active, created_at, updated_at
		FROM currencies WHERE symbol = $1`

	c, err := scanCurrency(r.pool.QueryRow(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get currency by symbol: %w", err)
	}
	return c, nil
}

// List fetches all currencies, optionally filtered to active ones.
func (r *CurrencyRepo) List(ctx context.Context, activeOnly bool) ([]domain.Currency, error) {
	query := `SELECT id, symbol, name, is_active, created_at, updated_at FROM currencies`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY symbol ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var currencies []domain.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan currency row: %w", err)
		}
		currencies = append(currencies, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency rows: %w", err)
	}
	return currencies, nil
}
