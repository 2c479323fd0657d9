// Package market implements the upstream price source against the Gemini
// public REST API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crypto-exchange-api/config"
	"crypto-exchange-api/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const userAgent = "crypto-exchange-api/1.0"

// GeminiClient fetches symbols and spot prices from the Gemini public API.
// It does no caching; the rate resolver sits in front of it.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

func NewGeminiClient(cfg config.MarketConfig, logger zerolog.Logger) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger.With().Str("component", "gemini_client").Logger(),
	}
}

type symbolDetails struct {
	Symbol       string `json:"symbol"`
	BaseCurrency string `json:"base_currency"`
	MinOrderSize string `json:"min_order_size"`
	Status       string `json:"status"`
}

type ticker struct {
	Close string `json:"close"`
}

// FetchSymbols returns the open symbols with their minimum order sizes.
// Gemini splits the catalog across two endpoints: /v1/symbols lists the
// tradeable names and /v1/symbols/details carries the metadata.
func (c *GeminiClient) FetchSymbols(ctx context.Context) ([]ports.SymbolInfo, error) {
	var names []string
	if err := c.getJSON(ctx, "/v1/symbols", &names); err != nil {
		return nil, fmt.Errorf("fetch symbol list: %w", err)
	}

	var details []symbolDetails
	if err := c.getJSON(ctx, "/v1/symbols/details", &details); err != nil {
		return nil, fmt.Errorf("fetch symbol details: %w", err)
	}

	byName := make(map[string]symbolDetails, len(details))
	for _, d := range details {
		byName[strings.ToLower(d.Symbol)] = d
	}

	out := make([]ports.SymbolInfo, 0, len(names))
	for _, name := range names {
		d, ok := byName[strings.ToLower(name)]
		if !ok || d.Status != "open" {
			continue
		}
		minSize, err := decimal.NewFromString(d.MinOrderSize)
		if err != nil {
			c.logger.Warn().
				Str("symbol", d.Symbol).
				Str("min_order_size", d.MinOrderSize).
				Msg("skipping symbol with unparseable min order size")
			continue
		}
		out = append(out, ports.SymbolInfo{
			Symbol:       strings.ToLower(d.Symbol),
			MinOrderSize: minSize,
			Status:       d.Status,
		})
	}
	return out, nil
}

// FetchSpotPrice returns the last close price for a trading pair such as
// "btcusd".
func (c *GeminiClient) FetchSpotPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var t ticker
	path := "/v1/pubticker/" + strings.ToLower(symbol)
	if err := c.getJSON(ctx, path, &t); err != nil {
		return decimal.Zero, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}
	if t.Close == "" {
		return decimal.Zero, fmt.Errorf("ticker %s: missing close price", symbol)
	}
	price, err := decimal.NewFromString(t.Close)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker %s: non-numeric close %q: %w", symbol, t.Close, err)
	}
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("ticker %s: non-positive close %s", symbol, price)
	}
	return price, nil
}

func (c *GeminiClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("upstream request")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
