package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundingRate represents a perpetual-swap funding rate observation.
// Positive rates are paid by longs to shorts.
type FundingRate struct {
	Symbol    string
	Timestamp time.Time
	Rate      decimal.Decimal // per funding interval, e.g. 0.0001 = 1 bps
}

// RateBps returns the rate expressed in basis points.
func (f *FundingRate) RateBps() decimal.Decimal {
	return f.Rate.Mul(decimal.NewFromInt(10000))
}
