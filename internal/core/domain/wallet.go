package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceOp is the kind of balance mutation applied to a wallet.
type BalanceOp string

const (
	BalanceOpAdd      BalanceOp = "add"
	BalanceOpSubtract BalanceOp = "subtract"
	BalanceOpSet      BalanceOp = "set"
)

// IsValid reports whether the operation is one of add/subtract/set.
func (op BalanceOp) IsValid() bool {
	switch op {
	case BalanceOpAdd, BalanceOpSubtract, BalanceOpSet:
		return true
	}
	return false
}

// Wallet represents one user's holding of one currency.
// At most one wallet exists per (user, currency) pair and the balance
// is never negative.
type Wallet struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	CurrencyID uuid.UUID       `json:"currency_id"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Apply returns the balance that results from applying op with amount.
// The result is rounded to 8 decimal places (banker's rounding). A negative
// result is reported via ok=false and the balance is left unchanged.
func (w *Wallet) Apply(op BalanceOp, amount decimal.Decimal) (decimal.Decimal, bool) {
	var next decimal.Decimal
	switch op {
	case BalanceOpAdd:
		next = w.Balance.Add(amount)
	case BalanceOpSubtract:
		next = w.Balance.Sub(amount)
	case BalanceOpSet:
		next = amount
	default:
		return w.Balance, false
	}
	next = Round8(next)
	if next.IsNegative() {
		return w.Balance, false
	}
	return next, true
}
