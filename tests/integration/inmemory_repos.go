package integration

import (
	"context"
	"fmt"
	"sync"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return fmt.Errorf("username already exists")
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok, nil
}

// --- In-Memory Currency Repo ---

type inMemoryCurrencyRepo struct {
	mu         sync.RWMutex
	currencies map[uuid.UUID]*domain.Currency
}

func newInMemoryCurrencyRepo() *inMemoryCurrencyRepo {
	return &inMemoryCurrencyRepo{currencies: make(map[uuid.UUID]*domain.Currency)}
}

func (r *inMemoryCurrencyRepo) Create(ctx context.Context, c *domain.Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.currencies {
		if existing.Symbol == c.Symbol {
			return fmt.Errorf("symbol already exists")
		}
	}
	cp := *c
	r.currencies[c.ID] = &cp
	return nil
}

func (r *inMemoryCurrencyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryCurrencyRepo) GetBySymbol(ctx context.Context, symbol string) (*domain.Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.currencies {
		if c.Symbol == symbol {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryCurrencyRepo) List(ctx context.Context, activeOnly bool) ([]domain.Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Currency
	for _, c := range r.currencies {
		if activeOnly && !c.IsActive {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

// --- In-Memory Wallet Repo ---

// Transactional writes (UpdateBalance, InsertTx) are staged on the memTx and
// applied only at Commit, mirroring database rollback semantics.
type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByUserCurrency(ctx context.Context, userID, currencyID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.UserID == userID && w.CurrencyID == currencyID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Wallet
	for _, w := range r.wallets {
		if w.UserID == userID {
			result = append(result, *w)
		}
	}
	return result, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) GetByUserCurrencyForUpdate(ctx context.Context, tx pgx.Tx, userID, currencyID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByUserCurrency(ctx, userID, currencyID)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	mtx, ok := tx.(*memTx)
	if !ok {
		return fmt.Errorf("unexpected tx type")
	}
	mtx.enqueue(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		w, ok := r.wallets[walletID]
		if !ok {
			return fmt.Errorf("wallet not found")
		}
		w.Balance = balance
		return nil
	})
	return nil
}

func (r *inMemoryWalletRepo) InsertTx(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mtx, ok := tx.(*memTx)
	if !ok {
		return fmt.Errorf("unexpected tx type")
	}
	cp := *w
	mtx.enqueue(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.wallets[cp.ID] = &cp
		return nil
	})
	return nil
}

func (r *inMemoryWalletRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	// Same guard the SQL delete carries: never drop a funded wallet.
	if !w.Balance.IsZero() {
		return ports.ErrWalletNotEmptied
	}
	delete(r.wallets, id)
	return nil
}

// --- In-Memory Exchange Repo ---

type inMemoryExchangeRepo struct {
	mu        sync.RWMutex
	exchanges map[uuid.UUID]*domain.Exchange
}

func newInMemoryExchangeRepo() *inMemoryExchangeRepo {
	return &inMemoryExchangeRepo{exchanges: make(map[uuid.UUID]*domain.Exchange)}
}

func (r *inMemoryExchangeRepo) Create(ctx context.Context, e *domain.Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.exchanges[e.ID] = &cp
	return nil
}

func (r *inMemoryExchangeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Exchange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exchanges[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryExchangeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Exchange, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryExchangeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ExchangeStatus) error {
	mtx, ok := tx.(*memTx)
	if !ok {
		return fmt.Errorf("unexpected tx type")
	}
	mtx.enqueue(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		e, ok := r.exchanges[id]
		if !ok {
			return fmt.Errorf("exchange not found")
		}
		e.Status = status
		return nil
	})
	return nil
}

func (r *inMemoryExchangeRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exchanges[id]
	if !ok {
		return fmt.Errorf("exchange not found")
	}
	// Guarded write: terminal rows are immutable.
	if e.Status == domain.ExchangeStatusPending {
		e.Status = domain.ExchangeStatusFailed
	}
	return nil
}

func (r *inMemoryExchangeRepo) ListByUser(ctx context.Context, userID uuid.UUID, direction domain.ExchangeDirection, limit, offset int) ([]domain.Exchange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Exchange
	for _, e := range r.exchanges {
		sent := e.FromUserID == userID
		received := e.ToUserID == userID
		switch direction {
		case domain.ExchangeDirectionSent:
			if !sent {
				continue
			}
		case domain.ExchangeDirectionReceived:
			if !received {
				continue
			}
		default:
			if !sent && !received {
				continue
			}
		}
		result = append(result, *e)
	}
	if offset >= len(result) {
		return []domain.Exchange{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *inMemoryExchangeRepo) ListByStatus(ctx context.Context, status domain.ExchangeStatus, limit, offset int) ([]domain.Exchange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Exchange
	for _, e := range r.exchanges {
		if e.Status == status {
			result = append(result, *e)
		}
	}
	if offset >= len(result) {
		return []domain.Exchange{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor serialises transactions with a single mutex, standing in
// for the row locks the real repos take with SELECT ... FOR UPDATE. Writes
// enqueued through a memTx apply at Commit and vanish on Rollback.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{release: &t.mu}, nil
}

type memTx struct {
	noopTx
	release *sync.Mutex
	done    bool
	stage   []func() error
}

func (t *memTx) enqueue(op func() error) {
	t.stage = append(t.stage, op)
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.release.Unlock()
	for _, op := range t.stage {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.stage = nil
	t.release.Unlock()
	return nil
}

// noopTx fills out the rest of the pgx.Tx surface.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }

// --- Static rate resolver for tests that bypass the market client ---

type staticRateResolver struct {
	rates map[string]decimal.Decimal // "from:to"
}

func (r *staticRateResolver) GetSpotPrice(ctx context.Context, symbol string) (*ports.SpotPrice, error) {
	return nil, fmt.Errorf("not supported")
}

func (r *staticRateResolver) GetExchangeRate(ctx context.Context, fromSymbol, toSymbol string) (*ports.ExchangeRate, error) {
	rate, ok := r.rates[fromSymbol+":"+toSymbol]
	if !ok {
		return nil, fmt.Errorf("no rate for %s:%s", fromSymbol, toSymbol)
	}
	return &ports.ExchangeRate{FromSymbol: fromSymbol, ToSymbol: toSymbol, Rate: rate}, nil
}

func (r *staticRateResolver) IsSupportedCurrency(ctx context.Context, symbol string) bool {
	return true
}

func (r *staticRateResolver) ValidateTradeAmount(ctx context.Context, symbol string, amount decimal.Decimal) bool {
	return amount.Sign() > 0
}
