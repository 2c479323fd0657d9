package market

import "context"

// HealthCheck implements ports.HealthChecker for the upstream price source.
type HealthCheck struct {
	client *GeminiClient
}

// NewHealthCheck creates a market-source health checker.
func NewHealthCheck(client *GeminiClient) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping checks upstream reachability by fetching the symbol catalog.
func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.client.FetchSymbols(ctx)
	return err
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "market_source"
}
