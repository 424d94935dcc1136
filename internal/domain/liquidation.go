package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Liquidation represents a forced-liquidation event on a derivatives venue.
// Immutable; consumed by the liquidation cluster detector and the regime gate.
type Liquidation struct {
	Symbol    string          // instrument symbol
	Side      TradeSide       // side of the liquidated position's closing order
	Value     decimal.Decimal // notional value liquidated, always >= 0
	Timestamp time.Time       // exchange timestamp
}

// Validate checks liquidation fields at the feed boundary.
func (l *Liquidation) Validate() error {
	if l.Symbol == "" {
		return fmt.Errorf("liquidation: symbol is required")
	}
	if l.Value.Sign() < 0 {
		return fmt.Errorf("liquidation %s: value must be non-negative, got %s", l.Symbol, l.Value)
	}
	if l.Timestamp.IsZero() {
		return fmt.Errorf("liquidation %s: timestamp is required", l.Symbol)
	}
	return nil
}
