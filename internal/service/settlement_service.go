package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService. Process drives a
// pending exchange to a terminal state; calling it again on a settled
// exchange is a cheap no-op.
type SettlementServiceImpl struct {
	exchangeRepo ports.ExchangeRepository
	walletRepo   ports.WalletRepository
	cache        ports.SettlementCache
	transactor   ports.DBTransactor
	timeout      time.Duration
	cacheTTL     time.Duration
	log          zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	exchangeRepo ports.ExchangeRepository,
	walletRepo ports.WalletRepository,
	cache ports.SettlementCache,
	transactor ports.DBTransactor,
	timeout time.Duration,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		exchangeRepo: exchangeRepo,
		walletRepo:   walletRepo,
		cache:        cache,
		transactor:   transactor,
		timeout:      timeout,
		cacheTTL:     cacheTTL,
		log:          log,
	}
}

// Process settles a pending exchange: debit the source wallet, credit the
// destination wallet (creating it when absent) and mark the exchange
// completed, all in one transaction. Any failure after the transaction opens
// rolls everything back and marks the exchange failed so no record is left
// pending.
func (s *SettlementServiceImpl) Process(ctx context.Context, exchangeID uuid.UUID) (*domain.Exchange, error) {
	// Fast path: terminal result already cached.
	if cached, err := s.cache.Get(ctx, exchangeID); err != nil {
		s.log.Warn().Err(err).Str("exchange_id", exchangeID.String()).Msg("settlement cache read failed, falling through to DB")
	} else if cached != nil {
		var exchange domain.Exchange
		if err := json.Unmarshal(cached, &exchange); err == nil {
			return &exchange, nil
		}
		s.log.Warn().Str("exchange_id", exchangeID.String()).Msg("discarding corrupt settlement cache entry")
	}

	exchange, err := s.exchangeRepo.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get exchange: %w", err))
	}
	if exchange == nil {
		return nil, apperror.ErrNotFound("exchange")
	}
	if exchange.IsTerminal() {
		s.cacheTerminal(ctx, exchange)
		return exchange, nil
	}

	settleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	settled, err := s.settle(settleCtx, exchangeID)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == apperror.CodeAlreadySettled {
			// Lost the race to a concurrent settle; the winner's outcome
			// stands.
			return nil, err
		}

		// The exchange must not stay pending after a failed attempt. The
		// guard in MarkFailed keeps this from clobbering a concurrent
		// success.
		if markErr := s.exchangeRepo.MarkFailed(context.WithoutCancel(ctx), exchangeID); markErr != nil {
			s.log.Error().Err(markErr).Str("exchange_id", exchangeID.String()).Msg("failed to mark exchange failed after settlement error")
		}

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperror.ErrSettlementTimeout(err)
		}
		return nil, err
	}

	s.cacheTerminal(ctx, settled)

	s.log.Info().
		Str("exchange_id", settled.ID.String()).
		Str("from_amount", settled.FromAmount.String()).
		Str("to_amount", settled.ToAmount.String()).
		Msg("exchange settled")

	return settled, nil
}

// settle runs the funds movement transaction. Lock order is exchange row
// first, then source wallet, then destination wallet; the debit always
// precedes the credit.
func (s *SettlementServiceImpl) settle(ctx context.Context, exchangeID uuid.UUID) (*domain.Exchange, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	exchange, err := s.exchangeRepo.GetByIDForUpdate(ctx, dbTx, exchangeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock exchange: %w", err))
	}
	if exchange == nil {
		return nil, apperror.ErrNotFound("exchange")
	}
	if exchange.IsTerminal() {
		return nil, apperror.ErrAlreadySettled()
	}

	sourceWallet, err := s.walletRepo.GetByUserCurrencyForUpdate(ctx, dbTx, exchange.FromUserID, exchange.FromCurrencyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock source wallet: %w", err))
	}
	if sourceWallet == nil {
		return nil, apperror.ErrNotFound("source wallet")
	}

	newSourceBalance, ok := sourceWallet.Apply(domain.BalanceOpSubtract, exchange.FromAmount)
	if !ok {
		return nil, apperror.ErrInsufficientBalance()
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, sourceWallet.ID, newSourceBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit source wallet: %w", err))
	}

	if err := s.creditDestination(ctx, dbTx, exchange); err != nil {
		return nil, err
	}

	if err := s.exchangeRepo.UpdateStatus(ctx, dbTx, exchange.ID, domain.ExchangeStatusCompleted); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark completed: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	exchange.Status = domain.ExchangeStatusCompleted
	exchange.UpdatedAt = time.Now().UTC()
	return exchange, nil
}

// creditDestination credits the recipient's wallet, creating it when the
// recipient holds no wallet in the target currency. This is the only path
// that creates a wallet implicitly.
func (s *SettlementServiceImpl) creditDestination(ctx context.Context, dbTx pgx.Tx, exchange *domain.Exchange) error {
	destWallet, err := s.walletRepo.GetByUserCurrencyForUpdate(ctx, dbTx, exchange.ToUserID, exchange.ToCurrencyID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock destination wallet: %w", err))
	}

	if destWallet == nil {
		now := time.Now().UTC()
		destWallet = &domain.Wallet{
			ID:         uuid.New(),
			UserID:     exchange.ToUserID,
			CurrencyID: exchange.ToCurrencyID,
			Balance:    exchange.ToAmount,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.walletRepo.InsertTx(ctx, dbTx, destWallet); err != nil {
			return apperror.InternalError(fmt.Errorf("create destination wallet: %w", err))
		}
		return nil
	}

	newBalance, _ := destWallet.Apply(domain.BalanceOpAdd, exchange.ToAmount)
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, destWallet.ID, newBalance); err != nil {
		return apperror.InternalError(fmt.Errorf("credit destination wallet: %w", err))
	}
	return nil
}

// cacheTerminal stores the terminal exchange for idempotent replay.
// Best-effort: a cache failure is logged and ignored.
func (s *SettlementServiceImpl) cacheTerminal(ctx context.Context, exchange *domain.Exchange) {
	payload, err := json.Marshal(exchange)
	if err != nil {
		s.log.Warn().Err(err).Str("exchange_id", exchange.ID.String()).Msg("failed to marshal exchange for cache")
		return
	}
	if err := s.cache.Set(ctx, exchange.ID, payload, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("exchange_id", exchange.ID.String()).Msg("failed to cache settled exchange")
	}
}
