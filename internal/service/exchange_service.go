package service

import (
	"context"
	"fmt"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExchangeServiceImpl implements ports.ExchangeService.
type ExchangeServiceImpl struct {
	exchangeRepo ports.ExchangeRepository
	walletRepo   ports.WalletRepository
	userRepo     ports.UserRepository
	currencyRepo ports.CurrencyRepository
	rateResolver ports.RateResolver
	transactor   ports.DBTransactor
	log          zerolog.Logger
}

// NewExchangeService creates a new ExchangeServiceImpl.
func NewExchangeService(
	exchangeRepo ports.ExchangeRepository,
	walletRepo ports.WalletRepository,
	userRepo ports.UserRepository,
	currencyRepo ports.CurrencyRepository,
	rateResolver ports.RateResolver,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *ExchangeServiceImpl {
	return &ExchangeServiceImpl{
		exchangeRepo: exchangeRepo,
		walletRepo:   walletRepo,
		userRepo:     userRepo,
		currencyRepo: currencyRepo,
		rateResolver: rateResolver,
		transactor:   transactor,
		log:          log,
	}
}

// Create validates the request, captures the conversion rate and persists a
// pending exchange. The rate is fixed here; settlement never re-fetches it.
// A rate failure aborts creation with nothing written.
func (s *ExchangeServiceImpl) Create(ctx context.Context, req ports.CreateExchangeRequest) (*domain.Exchange, error) {
	if req.FromAmount.Sign() <= 0 {
		return nil, apperror.ErrInvalidAmount("exchange amount must be positive")
	}

	for _, userID := range []uuid.UUID{req.FromUserID, req.ToUserID} {
		exists, err := s.userRepo.Exists(ctx, userID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("check user: %w", err))
		}
		if !exists {
			return nil, apperror.ErrNotFound("user")
		}
	}

	fromCurrency, err := s.activeCurrency(ctx, req.FromCurrencyID)
	if err != nil {
		return nil, err
	}
	toCurrency, err := s.activeCurrency(ctx, req.ToCurrencyID)
	if err != nil {
		return nil, err
	}

	if !s.rateResolver.ValidateTradeAmount(ctx, fromCurrency.Symbol, req.FromAmount) {
		return nil, apperror.ErrInvalidAmount("amount outside tradeable range")
	}

	// Soft balance pre-check. The authoritative check happens under the
	// row lock during settlement.
	sourceWallet, err := s.walletRepo.GetByUserCurrency(ctx, req.FromUserID, req.FromCurrencyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get source wallet: %w", err))
	}
	if sourceWallet == nil {
		return nil, apperror.ErrNotFound("source wallet")
	}
	if sourceWallet.Balance.LessThan(req.FromAmount) {
		return nil, apperror.ErrInsufficientBalance()
	}

	rate, err := s.rateResolver.GetExchangeRate(ctx, fromCurrency.Symbol, toCurrency.Symbol)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	exchange := &domain.Exchange{
		ID:             uuid.New(),
		FromUserID:     req.FromUserID,
		ToUserID:       req.ToUserID,
		FromCurrencyID: req.FromCurrencyID,
		ToCurrencyID:   req.ToCurrencyID,
		FromAmount:     domain.Round8(req.FromAmount),
		ToAmount:       domain.ConvertAmount(req.FromAmount, rate.Rate),
		RateUsed:       rate.Rate,
		Status:         domain.ExchangeStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.exchangeRepo.Create(ctx, exchange); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create exchange: %w", err))
	}

	s.log.Info().
		Str("exchange_id", exchange.ID.String()).
		Str("from_currency", fromCurrency.Symbol).
		Str("to_currency", toCurrency.Symbol).
		Str("from_amount", exchange.FromAmount.String()).
		Str("rate", exchange.RateUsed.String()).
		Msg("exchange created")

	return exchange, nil
}

// Cancel marks a pending exchange failed. Only a party to the exchange may
// cancel it, and the pending check runs under a row lock so a concurrent
// settlement cannot be undone.
func (s *ExchangeServiceImpl) Cancel(ctx context.Context, exchangeID, requestingUserID uuid.UUID) (*domain.Exchange, error) {
	exchange, err := s.exchangeRepo.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get exchange: %w", err))
	}
	if exchange == nil {
		return nil, apperror.ErrNotFound("exchange")
	}
	if !exchange.IsParticipant(requestingUserID) {
		return nil, apperror.ErrNotParticipant()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.exchangeRepo.GetByIDForUpdate(ctx, dbTx, exchangeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock exchange: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("exchange")
	}
	if locked.IsTerminal() {
		return nil, apperror.ErrAlreadySettled()
	}

	if err := s.exchangeRepo.UpdateStatus(ctx, dbTx, exchangeID, domain.ExchangeStatusFailed); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("exchange_id", exchangeID.String()).
		Str("user_id", requestingUserID.String()).
		Msg("exchange cancelled")

	locked.Status = domain.ExchangeStatusFailed
	return locked, nil
}

// GetByID returns an exchange by ID.
func (s *ExchangeServiceImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	exchange, err := s.exchangeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get exchange: %w", err))
	}
	if exchange == nil {
		return nil, apperror.ErrNotFound("exchange")
	}
	return exchange, nil
}

// ListByUser returns a user's exchanges, newest first, optionally filtered
// by direction.
func (s *ExchangeServiceImpl) ListByUser(ctx context.Context, userID uuid.UUID, direction domain.ExchangeDirection, limit, offset int) ([]domain.Exchange, error) {
	if !direction.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown direction %q", direction))
	}
	exchanges, err := s.exchangeRepo.ListByUser(ctx, userID, direction, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list exchanges: %w", err))
	}
	return exchanges, nil
}

// ListByStatus returns exchanges in the given status, newest first.
func (s *ExchangeServiceImpl) ListByStatus(ctx context.Context, status domain.ExchangeStatus, limit, offset int) ([]domain.Exchange, error) {
	if !status.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown status %q", status))
	}
	exchanges, err := s.exchangeRepo.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list exchanges: %w", err))
	}
	return exchanges, nil
}

func (s *ExchangeServiceImpl) activeCurrency(ctx context.Context, id uuid.UUID) (*domain.Currency, error) {
	currency, err := s.currencyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get currency: %w", err))
	}
	if currency == nil || !currency.IsActive {
		return nil, apperror.ErrInvalidCurrency()
	}
	return currency, nil
}
