package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-exchange-api/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClient(config.MarketConfig{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	}, zerolog.Nop())
}

func TestGeminiClient_FetchSymbols(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/symbols", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`["btcusd","ethusd","dogeusd"]`))
	})
	mux.HandleFunc("/v1/symbols/details", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"symbol":"BTCUSD","base_currency":"BTC","min_order_size":"0.00001","status":"open"},
			{"symbol":"ETHUSD","base_currency":"ETH","min_order_size":"0.001","status":"open"},
			{"symbol":"DOGEUSD","base_currency":"DOGE","min_order_size":"0.1","status":"closed"}
		]`))
	})
	c := newTestClient(t, mux)

	symbols, err := c.FetchSymbols(context.Background())
	require.NoError(t, err)

	require.Len(t, symbols, 2, "closed symbols must be filtered out")
	assert.Equal(t, "btcusd", symbols[0].Symbol)
	assert.Equal(t, "0.00001", symbols[0].MinOrderSize.String())
	assert.Equal(t, "ethusd", symbols[1].Symbol)
	assert.Equal(t, "0.001", symbols[1].MinOrderSize.String())
}

func TestGeminiClient_FetchSymbols_SkipsUnlistedDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/symbols", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`["btcusd","unknownusd"]`))
	})
	mux.HandleFunc("/v1/symbols/details", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"symbol":"BTCUSD","base_currency":"BTC","min_order_size":"0.00001","status":"open"}]`))
	})
	c := newTestClient(t, mux)

	symbols, err := c.FetchSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "btcusd", symbols[0].Symbol)
}

func TestGeminiClient_FetchSpotPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pubticker/btcusd", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"bid":"64999.99","ask":"65000.01","close":"65000.00"}`))
	})
	c := newTestClient(t, mux)

	price, err := c.FetchSpotPrice(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "65000", price.String())
}

func TestGeminiClient_FetchSpotPrice_MissingClose(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pubticker/btcusd", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"bid":"64999.99"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.FetchSpotPrice(context.Background(), "btcusd")
	assert.ErrorContains(t, err, "missing close")
}

func TestGeminiClient_FetchSpotPrice_UpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pubticker/btcusd", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"result":"error","reason":"RateLimited"}`, http.StatusTooManyRequests)
	})
	c := newTestClient(t, mux)

	_, err := c.FetchSpotPrice(context.Background(), "btcusd")
	assert.ErrorContains(t, err, "status 429")
}

func TestGeminiClient_FetchSpotPrice_NonNumericClose(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pubticker/ethusd", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"close":"not-a-number"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.FetchSpotPrice(context.Background(), "ethusd")
	assert.ErrorContains(t, err, "non-numeric")
}
