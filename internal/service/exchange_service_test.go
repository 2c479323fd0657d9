package service

import (
	"context"
	"testing"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/internal/core/ports/mocks"
	"crypto-exchange-api/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type exchangeTestDeps struct {
	svc          *ExchangeServiceImpl
	exchangeRepo *mocks.MockExchangeRepository
	walletRepo   *mocks.MockWalletRepository
	userRepo     *mocks.MockUserRepository
	currencyRepo *mocks.MockCurrencyRepository
	rateResolver *mocks.MockRateResolver
	transactor   *mocks.MockDBTransactor
	ctrl         *gomock.Controller
}

func setupExchangeService(t *testing.T) *exchangeTestDeps {
	ctrl := gomock.NewController(t)
	d := &exchangeTestDeps{
		exchangeRepo: mocks.NewMockExchangeRepository(ctrl),
		walletRepo:   mocks.NewMockWalletRepository(ctrl),
		userRepo:     mocks.NewMockUserRepository(ctrl),
		currencyRepo: mocks.NewMockCurrencyRepository(ctrl),
		rateResolver: mocks.NewMockRateResolver(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewExchangeService(
		d.exchangeRepo, d.walletRepo, d.userRepo, d.currencyRepo,
		d.rateResolver, d.transactor, zerolog.Nop(),
	)
	return d
}

type exchangeFixture struct {
	req  ports.CreateExchangeRequest
	btc  *domain.Currency
	eth  *domain.Currency
	from *domain.Wallet
}

func newExchangeFixture(balance string) exchangeFixture {
	btc := &domain.Currency{ID: uuid.New(), Symbol: "btc", Name: "Bitcoin", IsActive: true}
	eth := &domain.Currency{ID: uuid.New(), Symbol: "eth", Name: "Ethereum", IsActive: true}
	fromUser := uuid.New()
	from := testWallet(balance)
	from.UserID = fromUser
	from.CurrencyID = btc.ID
	return exchangeFixture{
		req: ports.CreateExchangeRequest{
			FromUserID:     fromUser,
			ToUserID:       uuid.New(),
			FromCurrencyID: btc.ID,
			ToCurrencyID:   eth.ID,
			FromAmount:     dec("0.5"),
		},
		btc:  btc,
		eth:  eth,
		from: from,
	}
}

func TestExchangeService_Create_Success(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	f := newExchangeFixture("1")

	d.userRepo.EXPECT().Exists(ctx, f.req.FromUserID).Return(true, nil)
	d.userRepo.EXPECT().Exists(ctx, f.req.ToUserID).Return(true, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.btc.ID).Return(f.btc, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.eth.ID).Return(f.eth, nil)
	d.rateResolver.EXPECT().ValidateTradeAmount(ctx, "btc", decEq("0.5")).Return(true)
	d.walletRepo.EXPECT().GetByUserCurrency(ctx, f.req.FromUserID, f.btc.ID).Return(f.from, nil)
	d.rateResolver.EXPECT().GetExchangeRate(ctx, "btc", "eth").Return(&ports.ExchangeRate{
		FromSymbol: "btc", ToSymbol: "eth", Rate: dec("15"), Timestamp: time.Now(),
	}, nil)
	d.exchangeRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.Exchange) error {
			assert.Equal(t, domain.ExchangeStatusPending, e.Status)
			assert.Equal(t, "0.5", e.FromAmount.String())
			assert.Equal(t, "7.5", e.ToAmount.String())
			assert.Equal(t, "15", e.RateUsed.String())
			return nil
		})

	exchange, err := d.svc.Create(ctx, f.req)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeStatusPending, exchange.Status)
	assert.Equal(t, "7.5", exchange.ToAmount.String())
}

func TestExchangeService_Create_RateFailureWritesNothing(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	f := newExchangeFixture("1")

	d.userRepo.EXPECT().Exists(ctx, f.req.FromUserID).Return(true, nil)
	d.userRepo.EXPECT().Exists(ctx, f.req.ToUserID).Return(true, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.btc.ID).Return(f.btc, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.eth.ID).Return(f.eth, nil)
	d.rateResolver.EXPECT().ValidateTradeAmount(ctx, "btc", decEq("0.5")).Return(true)
	d.walletRepo.EXPECT().GetByUserCurrency(ctx, f.req.FromUserID, f.btc.ID).Return(f.from, nil)
	d.rateResolver.EXPECT().GetExchangeRate(ctx, "btc", "eth").
		Return(nil, apperror.ErrRateUnavailable(assert.AnError))
	// No exchangeRepo.Create expectation: a rate failure must abort creation.

	_, err := d.svc.Create(ctx, f.req)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "RATE_001", appErr.Code)
}

func TestExchangeService_Create_InsufficientBalance(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	f := newExchangeFixture("0.1")

	d.userRepo.EXPECT().Exists(ctx, f.req.FromUserID).Return(true, nil)
	d.userRepo.EXPECT().Exists(ctx, f.req.ToUserID).Return(true, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.btc.ID).Return(f.btc, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.eth.ID).Return(f.eth, nil)
	d.rateResolver.EXPECT().ValidateTradeAmount(ctx, "btc", decEq("0.5")).Return(true)
	d.walletRepo.EXPECT().GetByUserCurrency(ctx, f.req.FromUserID, f.btc.ID).Return(f.from, nil)

	_, err := d.svc.Create(ctx, f.req)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_003", appErr.Code)
}

func TestExchangeService_Create_AmountOutOfBounds(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	f := newExchangeFixture("1")

	d.userRepo.EXPECT().Exists(ctx, f.req.FromUserID).Return(true, nil)
	d.userRepo.EXPECT().Exists(ctx, f.req.ToUserID).Return(true, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.btc.ID).Return(f.btc, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.eth.ID).Return(f.eth, nil)
	d.rateResolver.EXPECT().ValidateTradeAmount(ctx, "btc", decEq("0.5")).Return(false)

	_, err := d.svc.Create(ctx, f.req)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_006", appErr.Code)
}

func TestExchangeService_Create_NonPositiveAmount(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	f := newExchangeFixture("1")
	f.req.FromAmount = dec("0")

	_, err := d.svc.Create(context.Background(), f.req)
	assert.Error(t, err)
}

func TestExchangeService_Create_InactiveCurrency(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	f := newExchangeFixture("1")
	f.btc.IsActive = false

	d.userRepo.EXPECT().Exists(ctx, f.req.FromUserID).Return(true, nil)
	d.userRepo.EXPECT().Exists(ctx, f.req.ToUserID).Return(true, nil)
	d.currencyRepo.EXPECT().GetByID(ctx, f.btc.ID).Return(f.btc, nil)

	_, err := d.svc.Create(ctx, f.req)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "EXG_001", appErr.Code)
}

func TestExchangeService_Cancel_Success(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	exchange := &domain.Exchange{
		ID:         uuid.New(),
		FromUserID: userID,
		ToUserID:   uuid.New(),
		Status:     domain.ExchangeStatusPending,
	}
	tx := &mockTx{}

	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.exchangeRepo.EXPECT().GetByIDForUpdate(ctx, tx, exchange.ID).Return(exchange, nil)
	d.exchangeRepo.EXPECT().UpdateStatus(ctx, tx, exchange.ID, domain.ExchangeStatusFailed).Return(nil)

	cancelled, err := d.svc.Cancel(ctx, exchange.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeStatusFailed, cancelled.Status)
}

func TestExchangeService_Cancel_NotParticipant(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	exchange := &domain.Exchange{
		ID:         uuid.New(),
		FromUserID: uuid.New(),
		ToUserID:   uuid.New(),
		Status:     domain.ExchangeStatusPending,
	}

	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)

	_, err := d.svc.Cancel(ctx, exchange.ID, uuid.New())

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "EXG_003", appErr.Code)
}

func TestExchangeService_Cancel_AlreadySettled(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	exchange := &domain.Exchange{
		ID:         uuid.New(),
		FromUserID: userID,
		ToUserID:   uuid.New(),
		Status:     domain.ExchangeStatusPending,
	}
	settled := *exchange
	settled.Status = domain.ExchangeStatusCompleted
	tx := &mockTx{}

	d.exchangeRepo.EXPECT().GetByID(ctx, exchange.ID).Return(exchange, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// By the time the lock is acquired a concurrent settle won.
	d.exchangeRepo.EXPECT().GetByIDForUpdate(ctx, tx, exchange.ID).Return(&settled, nil)

	_, err := d.svc.Cancel(ctx, exchange.ID, userID)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "EXG_002", appErr.Code)
}

func TestExchangeService_ListByUser_InvalidDirection(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.ListByUser(context.Background(), uuid.New(), domain.ExchangeDirection("sideways"), 10, 0)
	assert.Error(t, err)
}

func TestExchangeService_ListByUser(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	expected := []domain.Exchange{{ID: uuid.New()}, {ID: uuid.New()}}

	d.exchangeRepo.EXPECT().
		ListByUser(ctx, userID, domain.ExchangeDirectionSent, 20, 0).
		Return(expected, nil)

	got, err := d.svc.ListByUser(ctx, userID, domain.ExchangeDirectionSent, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestExchangeService_GetByID_NotFound(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.exchangeRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := d.svc.GetByID(ctx, id)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WAL_001", appErr.Code)
}
