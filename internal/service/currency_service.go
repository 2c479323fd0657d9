package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CurrencyServiceImpl implements ports.CurrencyService. Symbols are stored
// lowercase; only symbols the rate resolver can price are accepted.
type CurrencyServiceImpl struct {
	currencyRepo ports.CurrencyRepository
	rateResolver ports.RateResolver
	log          zerolog.Logger
}

// NewCurrencyService creates a new CurrencyServiceImpl.
func NewCurrencyService(currencyRepo ports.CurrencyRepository, rateResolver ports.RateResolver, log zerolog.Logger) *CurrencyServiceImpl {
	return &CurrencyServiceImpl{
		currencyRepo: currencyRepo,
		rateResolver: rateResolver,
		log:          log,
	}
}

// Create registers a new active currency.
func (s *CurrencyServiceImpl) Create(ctx context.Context, symbol, name string) (*domain.Currency, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" || name == "" {
		return nil, apperror.Validation("symbol and name are required")
	}

	if !s.rateResolver.IsSupportedCurrency(ctx, symbol) {
		return nil, apperror.ErrUnsupportedSymbol(symbol)
	}

	existing, err := s.currencyRepo.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check symbol: %w", err))
	}
	if existing != nil {
		return nil, apperror.Validation(fmt.Sprintf("currency %s already exists", symbol))
	}

	now := time.Now().UTC()
	currency := &domain.Currency{
		ID:        uuid.New(),
		Symbol:    symbol,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.currencyRepo.Create(ctx, currency); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create currency: %w", err))
	}

	s.log.Info().Str("symbol", symbol).Msg("currency created")
	return currency, nil
}

// GetBySymbol returns a currency by its symbol.
func (s *CurrencyServiceImpl) GetBySymbol(ctx context.Context, symbol string) (*domain.Currency, error) {
	currency, err := s.currencyRepo.GetBySymbol(ctx, strings.ToLower(symbol))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get currency: %w", err))
	}
	if currency == nil {
		return nil, apperror.ErrNotFound("currency")
	}
	return currency, nil
}

// List returns the currency catalog.
func (s *CurrencyServiceImpl) List(ctx context.Context, activeOnly bool) ([]domain.Currency, error) {
	currencies, err := s.currencyRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list currencies: %w", err))
	}
	return currencies, nil
}
