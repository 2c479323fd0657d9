package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports/mocks"
	"crypto-exchange-api/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type settlementTestDeps struct {
	svc          *SettlementServiceImpl
	exchangeRepo *mocks.MockExchangeRepository
	walletRepo   *mocks.MockWalletRepository
	cache        *mocks.MockSettlementCache
	transactor   *mocks.MockDBTransactor
	ctrl         *gomock.Controller
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		exchangeRepo: mocks.NewMockExchangeRepository(ctrl),
		walletRepo:   mocks.NewMockWalletRepository(ctrl),
		cache:        mocks.NewMockSettlementCache(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewSettlementService(
		d.exchangeRepo, d.walletRepo, d.cache, d.transactor,
		10*time.Second, 24*time.Hour, zerolog.Nop(),
	)
	return d
}

func pendingExchange() *domain.Exchange {
	now := time.Now().UTC()
	return &domain.Exchange{
		ID:             uuid.New(),
		FromUserID:     uuid.New(),
		ToUserID:       uuid.New(),
		FromCurrencyID: uuid.New(),
		ToCurrencyID:   uuid.New(),
		FromAmount:     dec("0.5"),
		ToAmount:       dec("7.5"),
		RateUsed:       dec("15"),
		Status:         domain.ExchangeStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestSettlementService_Process_Success(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := pendingExchange()
	sourceWallet := testWallet("2")
	sourceWallet.UserID = exchange.FromUserID
	sourceWallet.CurrencyID = exchange.FromCurrencyID
	destWallet := testWallet("1")
	destWallet.UserID = exchange.ToUserID
	destWallet.CurrencyID = exchange.ToCurrencyID
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, exchange.ID).Return(nil, nil)
	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.exchangeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, exchange.ID).Return(exchange, nil)
	d.walletRepo.EXPECT().
		GetByUserCurrencyForUpdate(gomock.Any(), tx, exchange.FromUserID, exchange.FromCurrencyID).
		Return(sourceWallet, nil)
	gomock.InOrder(
		// Debit must land before the credit.
		d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, sourceWallet.ID, decEq("1.5")).Return(nil),
		d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, destWallet.ID, decEq("8.5")).Return(nil),
	)
	d.walletRepo.EXPECT().
		GetByUserCurrencyForUpdate(gomock.Any(), tx, exchange.ToUserID, exchange.ToCurrencyID).
		Return(destWallet, nil)
	d.exchangeRepo.EXPECT().
		UpdateStatus(gomock.Any(), tx, exchange.ID, domain.ExchangeStatusCompleted).Return(nil)
	d.cache.EXPECT().Set(ctx, exchange.ID, gomock.Any(), 24*time.Hour).Return(nil)

	settled, err := d.svc.Process(ctx, exchange.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeStatusCompleted, settled.Status)
}

func TestSettlementService_Process_CreatesDestinationWallet(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := pendingExchange()
	sourceWallet := testWallet("2")
	sourceWallet.UserID = exchange.FromUserID
	sourceWallet.CurrencyID = exchange.FromCurrencyID
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, exchange.ID).Return(nil, nil)
	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.exchangeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, exchange.ID).Return(exchange, nil)
	d.walletRepo.EXPECT().
		GetByUserCurrencyForUpdate(gomock.Any(), tx, exchange.FromUserID, exchange.FromCurrencyID).
		Return(sourceWallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, sourceWallet.ID, decEq("1.5")).Return(nil)
	// Recipient has no wallet in the target currency yet.
	d.walletRepo.EXPECT().
		GetByUserCurrencyForUpdate(gomock.Any(), tx, exchange.ToUserID, exchange.ToCurrencyID).
		Return(nil, nil)
	d.walletRepo.EXPECT().InsertTx(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ interface{}, w *domain.Wallet) error {
			assert.Equal(t, exchange.ToUserID, w.UserID)
			assert.Equal(t, exchange.ToCurrencyID, w.CurrencyID)
			assert.Equal(t, "7.5", w.Balance.String())
			return nil
		})
	d.exchangeRepo.EXPECT().
		UpdateStatus(gomock.Any(), tx, exchange.ID, domain.ExchangeStatusCompleted).Return(nil)
	d.cache.EXPECT().Set(ctx, exchange.ID, gomock.Any(), 24*time.Hour).Return(nil)

	settled, err := d.svc.Process(ctx, exchange.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeStatusCompleted, settled.Status)
}

func TestSettlementService_Process_CacheFastPath(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := pendingExchange()
	exchange.Status = domain.ExchangeStatusCompleted
	payload, err := json.Marshal(exchange)
	require.NoError(t, err)

	d.cache.EXPECT().Get(ctx, exchange.ID).Return(payload, nil)
	// No repo expectations: the cached terminal record short-circuits.

	settled, err := d.svc.Process(ctx, exchange.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.ID, settled.ID)
	assert.Equal(t, domain.ExchangeStatusCompleted, settled.Status)
}

func TestSettlementService_Process_AlreadyTerminalIsNoOp(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := pendingExchange()
	exchange.Status = domain.ExchangeStatusFailed

	d.cache.EXPECT().Get(ctx, exchange.ID).Return(nil, nil)
	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.cache.EXPECT().Set(ctx, exchange.ID, gomock.Any(), 24*time.Hour).Return(nil)

	settled, err := d.svc.Process(ctx, exchange.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeStatusFailed, settled.Status)
}

func TestSettlementService_Process_InsufficientBalanceMarksFailed(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := pendingExchange()
	sourceWallet := testWallet("0.1")
	sourceWallet.UserID = exchange.FromUserID
	sourceWallet.CurrencyID = exchange.FromCurrencyID
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, exchange.ID).Return(nil, nil)
	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.exchangeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, exchange.ID).Return(exchange, nil)
	d.walletRepo.EXPECT().
		GetByUserCurrencyForUpdate(gomock.Any(), tx, exchange.FromUserID, exchange.FromCurrencyID).
		Return(sourceWallet, nil)
	// The exchange must not stay pending.
	d.exchangeRepo.EXPECT().MarkFailed(gomock.Any(), exchange.ID).Return(nil)

	_, err := d.svc.Process(ctx, exchange.ID)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_003", appErr.Code)
}

func TestSettlementService_Process_DebitFailureMarksFailed(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := pendingExchange()
	sourceWallet := testWallet("2")
	sourceWallet.UserID = exchange.FromUserID
	sourceWallet.CurrencyID = exchange.FromCurrencyID
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, exchange.ID).Return(nil, nil)
	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.exchangeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, exchange.ID).Return(exchange, nil)
	d.walletRepo.EXPECT().
		GetByUserCurrencyForUpdate(gomock.Any(), tx, exchange.FromUserID, exchange.FromCurrencyID).
		Return(sourceWallet, nil)
	d.walletRepo.EXPECT().
		UpdateBalance(gomock.Any(), tx, sourceWallet.ID, decEq("1.5")).
		Return(errors.New("connection reset"))
	d.exchangeRepo.EXPECT().MarkFailed(gomock.Any(), exchange.ID).Return(nil)

	_, err := d.svc.Process(ctx, exchange.ID)
	assert.Error(t, err)
}

func TestSettlementService_Process_ConcurrentSettleLosesRace(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := pendingExchange()
	settled := *exchange
	settled.Status = domain.ExchangeStatusCompleted
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, exchange.ID).Return(nil, nil)
	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	// Another Process call completed the exchange while we waited on the lock.
	d.exchangeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, exchange.ID).Return(&settled, nil)
	// MarkFailed must NOT be called: the winner's outcome stands.

	_, err := d.svc.Process(ctx, exchange.ID)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeAlreadySettled, appErr.Code)
}

func TestSettlementService_Process_NotFound(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	d.cache.EXPECT().Get(ctx, id).Return(nil, nil)
	d.exchangeRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := d.svc.Process(ctx, id)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_001", appErr.Code)
}

func TestSettlementService_Process_CacheFailureFallsThrough(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := pendingExchange()
	exchange.Status = domain.ExchangeStatusCompleted

	d.cache.EXPECT().Get(ctx, exchange.ID).Return(nil, errors.New("redis down"))
	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.cache.EXPECT().Set(ctx, exchange.ID, gomock.Any(), 24*time.Hour).Return(errors.New("redis down"))

	settled, err := d.svc.Process(ctx, exchange.ID)
	require.NoError(t, err, "cache failures are advisory")
	assert.Equal(t, domain.ExchangeStatusCompleted, settled.Status)
}
