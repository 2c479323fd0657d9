package domain

import "github.com/shopspring/decimal"

// BalanceScale is the number of fractional digits kept on every monetary value.
const BalanceScale = 8

// MaxTradeAmount is the hard upper sanity bound on a single trade.
var MaxTradeAmount = decimal.NewFromInt(1_000_000)

// Round8 rounds a monetary value to 8 decimal places using banker's
// (round-half-even) rounding, so repeated add/subtract cycles do not
// accumulate representation error.
func Round8(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(BalanceScale)
}

// ConvertAmount computes the destination amount of an exchange:
// round(fromAmount x rate, 8).
func ConvertAmount(fromAmount, rate decimal.Decimal) decimal.Decimal {
	return Round8(fromAmount.Mul(rate))
}
