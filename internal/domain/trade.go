package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide represents the aggressor side of an executed trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// String returns the string representation of TradeSide.
func (s TradeSide) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s TradeSide) IsValid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// Trade represents a single executed trade tick from a market data feed.
// Immutable once created; consumed by VWAP windows and trigger detectors.
type Trade struct {
	Symbol    string          // instrument symbol, e.g. "BTC-USD-PERP"
	Price     decimal.Decimal // execution price
	Size      decimal.Decimal // executed quantity
	Side      TradeSide       // aggressor side
	Timestamp time.Time       // exchange timestamp
}

// Validate checks trade fields at the feed boundary.
func (t *Trade) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("trade: symbol is required")
	}
	if t.Price.Sign() <= 0 {
		return fmt.Errorf("trade %s: price must be positive, got %s", t.Symbol, t.Price)
	}
	if t.Size.Sign() <= 0 {
		return fmt.Errorf("trade %s: size must be positive, got %s", t.Symbol, t.Size)
	}
	if !t.Side.IsValid() {
		return fmt.Errorf("trade %s: invalid side %q", t.Symbol, t.Side)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("trade %s: timestamp is required", t.Symbol)
	}
	return nil
}

// Notional returns price * size.
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Size)
}
