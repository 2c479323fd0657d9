package postgres

import (
	"context"
	"time"
)

const healthQueryTimeout = 2 * time.Second

// HealthCheck probes the database behind the ledger. A failing probe
// marks the whole service degraded since every balance read and write
// goes through this pool.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping runs a trivial query with a bounded deadline.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthQueryTimeout)
	defer cancel()
	_, err := h.pool.Exec(ctx, "SELECT 1")
	return err
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
