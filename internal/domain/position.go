package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide represents the direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// String returns the string representation of PositionSide.
func (s PositionSide) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s PositionSide) IsValid() bool {
	return s == PositionSideLong || s == PositionSideShort
}

// Opposite returns the other side.
func (s PositionSide) Opposite() PositionSide {
	if s == PositionSideLong {
		return PositionSideShort
	}
	return PositionSideLong
}

// StrategyType identifies which trading strategy owns a position.
type StrategyType string

const (
	StrategyMeanReversion StrategyType = "mean_reversion"
	StrategyMomentum      StrategyType = "momentum"
)

// String returns the string representation of StrategyType.
func (t StrategyType) String() string {
	return string(t)
}

// IsValid checks if the strategy type is a valid value.
func (t StrategyType) IsValid() bool {
	return t == StrategyMeanReversion || t == StrategyMomentum
}

// Position represents a single open position. At most one position per
// symbol exists system-wide; the risk manager enforces this. Created on
// a successful "enter" signal, mutated in place by trailing-stop updates,
// removed on any exit.
type Position struct {
	Symbol       string
	Side         PositionSide
	Strategy     StrategyType
	EntryPrice   decimal.Decimal
	Quantity     decimal.Decimal
	EntryTime    time.Time
	StopLossPrice decimal.Decimal

	// TrailingStopPrice is set and tightened by the momentum strategy;
	// zero means no trailing stop has been established yet.
	TrailingStopPrice decimal.Decimal

	// MaxHoldTime bounds how long the position may stay open; zero means
	// no explicit bound (the owning strategy's timeout still applies).
	MaxHoldTime time.Duration
}

// NotionalValue returns entry price * quantity.
func (p *Position) NotionalValue() decimal.Decimal {
	return p.EntryPrice.Mul(p.Quantity)
}

// Age returns how long the position has been open as of now.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// IsExpired reports whether the position has exceeded its max hold time.
// Always false when no bound is set.
func (p *Position) IsExpired(now time.Time) bool {
	if p.MaxHoldTime <= 0 {
		return false
	}
	return p.Age(now) > p.MaxHoldTime
}

// UnrealizedPnL returns the mark-to-market profit at the given price.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Side == PositionSideShort {
		diff = diff.Neg()
	}
	return diff.Mul(p.Quantity)
}
