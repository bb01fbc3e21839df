// Package core holds the domain model of the tracker: accounts,
// transactions, budgets, minor-unit money and the pure calendar and
// aggregation functions the settlement engine is built on.
package core

import (
	"github.com/shopspring/decimal"
)

// Money is a positive monetary magnitude stored as integer minor units
// (cents). All engine arithmetic happens on Cents; decimal.Decimal is the
// boundary representation for parsing, display and percentage math.
type Money struct {
	Cents int64
}

// NewMoneyFromDecimal converts a decimal amount (e.g. "12.34") to Money.
// Negative amounts and sub-cent precision are rejected.
func NewMoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// ParseMoney parses a decimal string into Money.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return NewMoneyFromDecimal(d)
}

// Decimal returns the amount in major units with two decimal places.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount as a plain decimal, e.g. "12.34".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
