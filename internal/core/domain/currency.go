package domain

import (
	"time"

	"github.com/google/uuid"
)

// Currency represents a tradeable asset. Inactive currencies are excluded
// from new exchanges but existing wallets and history stay readable.
type Currency struct {
	ID        uuid.UUID `json:"id"`
	Symbol    string    `json:"symbol"` // Upper-case, e.g. "BTC"
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
