package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-exchange-api/config"
	"crypto-exchange-api/internal/cache"
	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fallbackSymbols keeps the majors tradeable when the upstream catalog is
// unreachable. Prices still require a live upstream.
var fallbackSymbols = []ports.SymbolInfo{
	{Symbol: "btcusd", MinOrderSize: decimal.RequireFromString("0.00001"), Status: "open"},
	{Symbol: "ethusd", MinOrderSize: decimal.RequireFromString("0.001"), Status: "open"},
}

// RateServiceImpl implements ports.RateResolver. All upstream reads go
// through a process-local TTL cache so a burst of exchange creations does
// not turn into a burst of upstream calls.
type RateServiceImpl struct {
	client    ports.MarketDataClient
	cache     *cache.TTLCache
	priceTTL  time.Duration
	rateTTL   time.Duration
	symbolTTL time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewRateService creates a new RateServiceImpl. A nil clock falls back to
// time.Now.
func NewRateService(client ports.MarketDataClient, cfg config.MarketConfig, now func() time.Time, log zerolog.Logger) *RateServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &RateServiceImpl{
		client:    client,
		cache:     cache.New(cache.Clock(now)),
		priceTTL:  cfg.PriceTTL,
		rateTTL:   cfg.RateTTL,
		symbolTTL: cfg.SymbolTTL,
		now:       now,
		log:       log,
	}
}

// GetSpotPrice returns the USD spot price for a base symbol such as "btc".
func (s *RateServiceImpl) GetSpotPrice(ctx context.Context, symbol string) (*ports.SpotPrice, error) {
	pair := normalizePair(symbol)
	cacheKey := "price:" + pair

	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(*ports.SpotPrice), nil
	}

	if !s.IsSupportedCurrency(ctx, symbol) {
		return nil, apperror.ErrUnsupportedSymbol(symbol)
	}

	price, err := s.client.FetchSpotPrice(ctx, pair)
	if err != nil {
		s.log.Warn().Err(err).Str("pair", pair).Msg("spot price fetch failed")
		return nil, apperror.ErrRateUnavailable(fmt.Errorf("spot price %s: %w", pair, err))
	}

	sp := &ports.SpotPrice{
		Symbol:      baseSymbol(symbol),
		Price:       price,
		LastUpdated: s.now().UTC(),
	}
	s.cache.Set(cacheKey, sp, s.priceTTL)
	return sp, nil
}

// GetExchangeRate resolves the conversion rate between two base symbols as
// the ratio of their USD spot prices. Identical symbols short-circuit to 1.
func (s *RateServiceImpl) GetExchangeRate(ctx context.Context, fromSymbol, toSymbol string) (*ports.ExchangeRate, error) {
	from := baseSymbol(fromSymbol)
	to := baseSymbol(toSymbol)

	if from == to {
		return &ports.ExchangeRate{
			FromSymbol: from,
			ToSymbol:   to,
			Rate:       decimal.NewFromInt(1),
			Timestamp:  s.now().UTC(),
		}, nil
	}

	cacheKey := "rate:" + from + ":" + to
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(*ports.ExchangeRate), nil
	}

	fromPrice, err := s.GetSpotPrice(ctx, from)
	if err != nil {
		return nil, err
	}
	toPrice, err := s.GetSpotPrice(ctx, to)
	if err != nil {
		return nil, err
	}
	if toPrice.Price.IsZero() {
		return nil, apperror.ErrRateUnavailable(fmt.Errorf("zero spot price for %s", to))
	}

	rate := &ports.ExchangeRate{
		FromSymbol: from,
		ToSymbol:   to,
		Rate:       fromPrice.Price.DivRound(toPrice.Price, domain.BalanceScale),
		Timestamp:  s.now().UTC(),
	}
	s.cache.Set(cacheKey, rate, s.rateTTL)
	return rate, nil
}

// IsSupportedCurrency reports whether the base symbol trades against USD in
// the upstream catalog.
func (s *RateServiceImpl) IsSupportedCurrency(ctx context.Context, symbol string) bool {
	_, ok := s.symbolInfo(ctx, symbol)
	return ok
}

// ValidateTradeAmount reports whether amount lies within the tradeable range
// for the symbol: at least the upstream minimum order size and at most the
// global trade ceiling.
func (s *RateServiceImpl) ValidateTradeAmount(ctx context.Context, symbol string, amount decimal.Decimal) bool {
	ceiling := domain.MaxTradeAmount
	info, ok := s.symbolInfo(ctx, symbol)
	if !ok {
		return false
	}
	return amount.GreaterThanOrEqual(info.MinOrderSize) && amount.LessThanOrEqual(ceiling)
}

func (s *RateServiceImpl) symbolInfo(ctx context.Context, symbol string) (ports.SymbolInfo, bool) {
	pair := normalizePair(symbol)
	for _, info := range s.symbols(ctx) {
		if info.Symbol == pair {
			return info, true
		}
	}
	return ports.SymbolInfo{}, false
}

func (s *RateServiceImpl) symbols(ctx context.Context) []ports.SymbolInfo {
	const cacheKey = "symbols"
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.([]ports.SymbolInfo)
	}

	symbols, err := s.client.FetchSymbols(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("symbol catalog fetch failed, using fallback majors")
		return fallbackSymbols
	}

	s.cache.Set(cacheKey, symbols, s.symbolTTL)
	return symbols
}

// normalizePair maps "BTC", "btc" or "btcusd" to the pair name "btcusd".
func normalizePair(symbol string) string {
	return baseSymbol(symbol) + "usd"
}

func baseSymbol(symbol string) string {
	return strings.TrimSuffix(strings.ToLower(symbol), "usd")
}
