package integration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/service"
	"crypto-exchange-api/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopSettlementCache disables the cache fast path so concurrency tests
// always hit the transactional slow path.
type noopSettlementCache struct{}

func (noopSettlementCache) Get(ctx context.Context, exchangeID uuid.UUID) ([]byte, error) {
	return nil, nil
}

func (noopSettlementCache) Set(ctx context.Context, exchangeID uuid.UUID, value []byte, ttl time.Duration) error {
	return nil
}

type settlementFixture struct {
	userRepo     *inMemoryUserRepo
	currencyRepo *inMemoryCurrencyRepo
	walletRepo   *inMemoryWalletRepo
	exchangeRepo *inMemoryExchangeRepo

	alice uuid.UUID
	bob   uuid.UUID
	btc   uuid.UUID
	eth   uuid.UUID

	aliceBTC uuid.UUID
}

// newSettlementFixture seeds two users, two currencies and a funded source
// wallet for alice.
func newSettlementFixture(t *testing.T, sourceBalance string) *settlementFixture {
	t.Helper()
	ctx := context.Background()

	f := &settlementFixture{
		userRepo:     newInMemoryUserRepo(),
		currencyRepo: newInMemoryCurrencyRepo(),
		walletRepo:   newInMemoryWalletRepo(),
		exchangeRepo: newInMemoryExchangeRepo(),
		alice:        uuid.New(),
		bob:          uuid.New(),
		btc:          uuid.New(),
		eth:          uuid.New(),
		aliceBTC:     uuid.New(),
	}

	require.NoError(t, f.userRepo.Create(ctx, &domain.User{ID: f.alice, Username: "alice", Email: "alice@example.com"}))
	require.NoError(t, f.userRepo.Create(ctx, &domain.User{ID: f.bob, Username: "bob", Email: "bob@example.com"}))
	require.NoError(t, f.currencyRepo.Create(ctx, &domain.Currency{ID: f.btc, Symbol: "btc", Name: "Bitcoin", IsActive: true}))
	require.NoError(t, f.currencyRepo.Create(ctx, &domain.Currency{ID: f.eth, Symbol: "eth", Name: "Ethereum", IsActive: true}))
	require.NoError(t, f.walletRepo.Create(ctx, &domain.Wallet{
		ID:         f.aliceBTC,
		UserID:     f.alice,
		CurrencyID: f.btc,
		Balance:    decimal.RequireFromString(sourceBalance),
	}))

	return f
}

// pendingExchange stores a pending btc->eth exchange from alice to bob at
// rate 15.
func (f *settlementFixture) pendingExchange(t *testing.T, fromAmount string) uuid.UUID {
	t.Helper()
	from := decimal.RequireFromString(fromAmount)
	ex := &domain.Exchange{
		ID:             uuid.New(),
		FromUserID:     f.alice,
		ToUserID:       f.bob,
		FromCurrencyID: f.btc,
		ToCurrencyID:   f.eth,
		FromAmount:     from,
		ToAmount:       domain.ConvertAmount(from, decimal.RequireFromString("15")),
		RateUsed:       decimal.RequireFromString("15"),
		Status:         domain.ExchangeStatusPending,
	}
	require.NoError(t, f.exchangeRepo.Create(context.Background(), ex))
	return ex.ID
}

// TestConcurrentSettlements_DoubleSpend fires several settlements against
// the same source wallet where the total spend exceeds the balance. The
// transaction serialisation must admit exactly as many as the funds cover
// and never drive the balance negative.
func TestConcurrentSettlements_DoubleSpend(t *testing.T) {
	f := newSettlementFixture(t, "10")
	transactor := newInMemoryTransactor()
	log := logger.New("error", false)

	settlementSvc := service.NewSettlementService(
		f.exchangeRepo, f.walletRepo, noopSettlementCache{}, transactor, 5*time.Second, time.Hour, log)

	// Four exchanges of 4 BTC each against a 10 BTC balance: only two fit.
	ids := make([]uuid.UUID, 4)
	for i := range ids {
		ids[i] = f.pendingExchange(t, "4")
	}

	var wg sync.WaitGroup
	var completed, failed atomic.Int64
	for _, id := range ids {
		wg.Add(1)
		go func(exchangeID uuid.UUID) {
			defer wg.Done()
			if _, err := settlementSvc.Process(context.Background(), exchangeID); err != nil {
				failed.Add(1)
			} else {
				completed.Add(1)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int64(2), completed.Load(), "exactly two settlements fit the balance")
	assert.Equal(t, int64(2), failed.Load())

	wallet, err := f.walletRepo.GetByID(context.Background(), f.aliceBTC)
	require.NoError(t, err)
	assert.Equal(t, "2", wallet.Balance.String())
	assert.False(t, wallet.Balance.IsNegative())

	// Every exchange reached a terminal state.
	for _, id := range ids {
		ex, err := f.exchangeRepo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, ex.IsTerminal(), "exchange %s left pending", id)
	}

	// The destination received exactly the settled amounts: 2 * 4 * 15.
	bobETH, err := f.walletRepo.GetByUserCurrency(context.Background(), f.bob, f.eth)
	require.NoError(t, err)
	require.NotNil(t, bobETH)
	assert.Equal(t, "120", bobETH.Balance.String())
}

// TestConcurrentTransfers_Conservation shuttles funds between two wallets
// from both sides at once and checks the total is conserved.
func TestConcurrentTransfers_Conservation(t *testing.T) {
	f := newSettlementFixture(t, "100")
	transactor := newInMemoryTransactor()
	log := logger.New("error", false)

	bobBTC := uuid.New()
	require.NoError(t, f.walletRepo.Create(context.Background(), &domain.Wallet{
		ID:         bobBTC,
		UserID:     f.bob,
		CurrencyID: f.btc,
		Balance:    decimal.RequireFromString("100"),
	}))

	walletSvc := service.NewWalletService(f.walletRepo, f.userRepo, f.currencyRepo, transactor, log)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = walletSvc.Transfer(context.Background(), f.aliceBTC, bobBTC, decimal.RequireFromString("1.5"))
		}()
		go func() {
			defer wg.Done()
			_, _ = walletSvc.Transfer(context.Background(), bobBTC, f.aliceBTC, decimal.RequireFromString("2.25"))
		}()
	}
	wg.Wait()

	alice, err := f.walletRepo.GetByID(context.Background(), f.aliceBTC)
	require.NoError(t, err)
	bob, err := f.walletRepo.GetByID(context.Background(), bobBTC)
	require.NoError(t, err)

	total := alice.Balance.Add(bob.Balance)
	assert.Equal(t, "200", total.String(), "transfers must conserve the total")
	assert.False(t, alice.Balance.IsNegative())
	assert.False(t, bob.Balance.IsNegative())
}

// failingWalletRepo fails UpdateBalance after a set number of calls,
// simulating a storage fault between the debit and the credit.
type failingWalletRepo struct {
	*inMemoryWalletRepo
	calls    atomic.Int64
	failFrom int64
}

func (r *failingWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	if r.calls.Add(1) >= r.failFrom {
		return fmt.Errorf("storage fault")
	}
	return r.inMemoryWalletRepo.UpdateBalance(ctx, tx, walletID, balance)
}

// TestSettlement_MidTransactionFailure injects a fault on the credit write.
// The whole settlement must roll back: source balance untouched, no
// destination wallet, exchange marked failed rather than left pending.
func TestSettlement_MidTransactionFailure(t *testing.T) {
	f := newSettlementFixture(t, "10")
	transactor := newInMemoryTransactor()
	log := logger.New("error", false)

	// First UpdateBalance is the debit, second would be the credit. Bob
	// already holds an eth wallet so the credit is an update, not an insert.
	bobETH := uuid.New()
	require.NoError(t, f.walletRepo.Create(context.Background(), &domain.Wallet{
		ID:         bobETH,
		UserID:     f.bob,
		CurrencyID: f.eth,
		Balance:    decimal.RequireFromString("1"),
	}))

	faulty := &failingWalletRepo{inMemoryWalletRepo: f.walletRepo, failFrom: 2}
	settlementSvc := service.NewSettlementService(
		f.exchangeRepo, faulty, noopSettlementCache{}, transactor, 5*time.Second, time.Hour, log)

	exchangeID := f.pendingExchange(t, "4")

	_, err := settlementSvc.Process(context.Background(), exchangeID)
	require.Error(t, err)

	alice, err := f.walletRepo.GetByID(context.Background(), f.aliceBTC)
	require.NoError(t, err)
	assert.Equal(t, "10", alice.Balance.String(), "debit must roll back")

	bob, err := f.walletRepo.GetByID(context.Background(), bobETH)
	require.NoError(t, err)
	assert.Equal(t, "1", bob.Balance.String(), "credit must roll back")

	ex, err := f.exchangeRepo.GetByID(context.Background(), exchangeID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeStatusFailed, ex.Status, "exchange must not stay pending")
}

// TestSettlement_IdempotentReplay settles once, then replays the call many
// times in parallel. Funds move exactly once.
func TestSettlement_IdempotentReplay(t *testing.T) {
	f := newSettlementFixture(t, "10")
	transactor := newInMemoryTransactor()
	log := logger.New("error", false)

	settlementSvc := service.NewSettlementService(
		f.exchangeRepo, f.walletRepo, noopSettlementCache{}, transactor, 5*time.Second, time.Hour, log)

	exchangeID := f.pendingExchange(t, "4")

	first, err := settlementSvc.Process(context.Background(), exchangeID)
	require.NoError(t, err)
	require.Equal(t, domain.ExchangeStatusCompleted, first.Status)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replay, err := settlementSvc.Process(context.Background(), exchangeID)
			assert.NoError(t, err)
			assert.Equal(t, domain.ExchangeStatusCompleted, replay.Status)
		}()
	}
	wg.Wait()

	alice, err := f.walletRepo.GetByID(context.Background(), f.aliceBTC)
	require.NoError(t, err)
	assert.Equal(t, "6", alice.Balance.String(), "funds moved exactly once")

	bobETH, err := f.walletRepo.GetByUserCurrency(context.Background(), f.bob, f.eth)
	require.NoError(t, err)
	require.NotNil(t, bobETH)
	assert.Equal(t, "60", bobETH.Balance.String())
}
