package risk

import (
	"volharvest/internal/domain"

	"github.com/shopspring/decimal"
)

// Sizer converts signal strength into a position quantity. Sizing is linear
// in strength: a full-strength signal commits the maximum equity fraction at
// the strategy's leverage, a threshold-strength signal commits half of that.
type Sizer struct {
	baseEquity           decimal.Decimal
	maxEquityPerPosition decimal.Decimal
	maxLeverage          decimal.Decimal
}

// NewSizer returns a Sizer for the given equity base, per-position equity
// fraction and mean-reversion leverage cap.
func NewSizer(baseEquity, maxEquityPerPosition, maxLeverage decimal.Decimal) *Sizer {
	return &Sizer{
		baseEquity:           baseEquity,
		maxEquityPerPosition: maxEquityPerPosition,
		maxLeverage:          maxLeverage,
	}
}

// Size returns the base-asset quantity for an entry at price:
//
//	quantity = baseEquity * maxEquityPerPosition * leverage * strength / price
//
// Mean-reversion entries use the configured maximum leverage; momentum entries
// use a fixed lower leverage. Returns zero for non-positive price or strength.
func (s *Sizer) Size(price decimal.Decimal, strategy domain.StrategyType, strength decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !strength.IsPositive() {
		return decimal.Zero
	}

	leverage := s.maxLeverage
	if strategy == domain.StrategyMomentum {
		leverage = momentumLeverage
	}

	notional := s.baseEquity.Mul(s.maxEquityPerPosition).Mul(leverage).Mul(strength)
	return notional.Div(price)
}

// StopLossPrice returns the initial stop for an entry at price: below entry
// for longs, above for shorts.
func (s *Sizer) StopLossPrice(entry decimal.Decimal, side domain.PositionSide, pct decimal.Decimal) decimal.Decimal {
	offset := entry.Mul(pct)
	if side == domain.PositionSideLong {
		return entry.Sub(offset)
	}
	return entry.Add(offset)
}
