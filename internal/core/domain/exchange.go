package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeStatus represents the lifecycle state of an exchange.
type ExchangeStatus string

const (
	ExchangeStatusPending   ExchangeStatus = "pending"
	ExchangeStatusCompleted ExchangeStatus = "completed"
	ExchangeStatusFailed    ExchangeStatus = "failed"
)

// IsValid reports whether s is a known exchange status.
func (s ExchangeStatus) IsValid() bool {
	switch s {
	case ExchangeStatusPending, ExchangeStatusCompleted, ExchangeStatusFailed:
		return true
	}
	return false
}

// ExchangeDirection filters user exchange listings.
type ExchangeDirection string

const (
	ExchangeDirectionAll      ExchangeDirection = "all"
	ExchangeDirectionSent     ExchangeDirection = "sent"
	ExchangeDirectionReceived ExchangeDirection = "received"
)

// IsValid reports whether d is a known listing direction.
func (d ExchangeDirection) IsValid() bool {
	switch d {
	case ExchangeDirectionAll, ExchangeDirectionSent, ExchangeDirectionReceived:
		return true
	}
	return false
}

// Exchange represents one settlement attempt between two users. RateUsed is
// captured when the exchange is created and never re-fetched; terminal rows
// are immutable.
type Exchange struct {
	ID             uuid.UUID       `json:"id"`
	FromUserID     uuid.UUID       `json:"from_user_id"`
	ToUserID       uuid.UUID       `json:"to_user_id"`
	FromCurrencyID uuid.UUID       `json:"from_currency_id"`
	ToCurrencyID   uuid.UUID       `json:"to_currency_id"`
	FromAmount     decimal.Decimal `json:"from_amount"`
	ToAmount       decimal.Decimal `json:"to_amount"`
	RateUsed       decimal.Decimal `json:"rate_used"`
	Status         ExchangeStatus  `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsTerminal returns true if the exchange reached a final state.
func (e *Exchange) IsTerminal() bool {
	return e.Status == ExchangeStatusCompleted || e.Status == ExchangeStatusFailed
}

// IsParticipant reports whether userID is a party to the exchange.
func (e *Exchange) IsParticipant(userID uuid.UUID) bool {
	return e.FromUserID == userID || e.ToUserID == userID
}
