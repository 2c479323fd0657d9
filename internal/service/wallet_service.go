package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo   ports.WalletRepository
	userRepo     ports.UserRepository
	currencyRepo ports.CurrencyRepository
	transactor   ports.DBTransactor
	log          zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	userRepo ports.UserRepository,
	currencyRepo ports.CurrencyRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:   walletRepo,
		userRepo:     userRepo,
		currencyRepo: currencyRepo,
		transactor:   transactor,
		log:          log,
	}
}

// GetWallet returns a wallet by ID.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// GetWalletForUserCurrency returns the user's wallet in the given currency.
func (s *WalletServiceImpl) GetWalletForUserCurrency(ctx context.Context, userID, currencyID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserCurrency(ctx, userID, currencyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// GetUserWallets returns all wallets owned by a user.
func (s *WalletServiceImpl) GetUserWallets(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	wallets, err := s.walletRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, nil
}

// CreateWallet creates a zero-balance wallet for the user in the given
// currency. A user holds at most one wallet per currency.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, userID, currencyID uuid.UUID) (*domain.Wallet, error) {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check user: %w", err))
	}
	if !exists {
		return nil, apperror.ErrNotFound("user")
	}

	currency, err := s.currencyRepo.GetByID(ctx, currencyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get currency: %w", err))
	}
	if currency == nil || !currency.IsActive {
		return nil, apperror.ErrInvalidCurrency()
	}

	existing, err := s.walletRepo.GetByUserCurrency(ctx, userID, currencyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check existing wallet: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrWalletExists()
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:         uuid.New(),
		UserID:     userID,
		CurrencyID: currencyID,
		Balance:    decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", userID.String()).
		Str("currency", currency.Symbol).
		Msg("wallet created")

	return wallet, nil
}

// MutateBalance applies a single balance operation under a row lock.
func (s *WalletServiceImpl) MutateBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, op domain.BalanceOp) (*domain.Wallet, error) {
	if !op.IsValid() {
		return nil, apperror.ErrInvalidAmount(fmt.Sprintf("unknown operation %q", op))
	}
	if err := validateOpAmount(op, amount); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	newBalance, ok := wallet.Apply(op, amount)
	if !ok {
		return nil, apperror.ErrInsufficientBalance()
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("op", string(op)).
		Str("amount", amount.String()).
		Str("balance", newBalance.String()).
		Msg("balance mutated")

	wallet.Balance = newBalance
	return wallet, nil
}

// Transfer moves funds between two wallets of the same currency. Both rows
// are locked in ascending ID order so concurrent transfers cannot deadlock.
func (s *WalletServiceImpl) Transfer(ctx context.Context, fromWalletID, toWalletID uuid.UUID, amount decimal.Decimal) (*ports.TransferResult, error) {
	if amount.Sign() <= 0 {
		return nil, apperror.ErrInvalidAmount("transfer amount must be positive")
	}
	if fromWalletID == toWalletID {
		return nil, apperror.ErrInvalidAmount("cannot transfer to the same wallet")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	firstID, secondID := fromWalletID, toWalletID
	if secondID.String() < firstID.String() {
		firstID, secondID = secondID, firstID
	}

	first, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, firstID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	second, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, secondID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if first == nil || second == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	from, to := first, second
	if from.ID != fromWalletID {
		from, to = second, first
	}

	if from.CurrencyID != to.CurrencyID {
		return nil, apperror.ErrCurrencyMismatch()
	}

	newFromBalance, ok := from.Apply(domain.BalanceOpSubtract, amount)
	if !ok {
		return nil, apperror.ErrInsufficientBalance()
	}
	newToBalance, _ := to.Apply(domain.BalanceOpAdd, amount)

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, from.ID, newFromBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit wallet: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, to.ID, newToBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("from_wallet", from.ID.String()).
		Str("to_wallet", to.ID.String()).
		Str("amount", amount.String()).
		Msg("transfer completed")

	from.Balance = newFromBalance
	to.Balance = newToBalance
	return &ports.TransferResult{FromWallet: from, ToWallet: to}, nil
}

// DeleteWallet removes a wallet. Only empty wallets can be deleted.
func (s *WalletServiceImpl) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	wallet, err := s.walletRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrNotFound("wallet")
	}
	if !wallet.Balance.IsZero() {
		return apperror.ErrBalanceNotZero()
	}

	if err := s.walletRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, ports.ErrWalletNotEmptied) {
			// Funds arrived between the balance check and the delete.
			return apperror.ErrBalanceNotZero()
		}
		return apperror.InternalError(fmt.Errorf("delete wallet: %w", err))
	}

	s.log.Info().Str("wallet_id", id.String()).Msg("wallet deleted")
	return nil
}

func validateOpAmount(op domain.BalanceOp, amount decimal.Decimal) error {
	switch op {
	case domain.BalanceOpSet:
		if amount.Sign() < 0 {
			return apperror.ErrInvalidAmount("balance cannot be set negative")
		}
	default:
		if amount.Sign() <= 0 {
			return apperror.ErrInvalidAmount("amount must be positive")
		}
	}
	return nil
}
