package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents one OHLCV bar from a historical data provider.
// Corresponds to the candles table in ClickHouse.
type Candle struct {
	Symbol     string
	Timestamp  time.Time // bar open time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	TradeCount int
}

// Validate checks candle consistency at the provider boundary.
func (c *Candle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("candle: symbol is required")
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("candle %s: timestamp is required", c.Symbol)
	}
	for _, p := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close},
	} {
		if p.value.Sign() <= 0 {
			return fmt.Errorf("candle %s @ %s: %s must be positive, got %s",
				c.Symbol, c.Timestamp.Format(time.RFC3339), p.name, p.value)
		}
	}
	if c.High.LessThan(c.Low) {
		return fmt.Errorf("candle %s @ %s: high %s below low %s",
			c.Symbol, c.Timestamp.Format(time.RFC3339), c.High, c.Low)
	}
	if c.Volume.Sign() < 0 {
		return fmt.Errorf("candle %s @ %s: volume must be non-negative, got %s",
			c.Symbol, c.Timestamp.Format(time.RFC3339), c.Volume)
	}
	return nil
}

// TypicalPrice returns (high + low + close) / 3.
func (c *Candle) TypicalPrice() decimal.Decimal {
	return c.High.Add(c.Low).Add(c.Close).Div(decimal.NewFromInt(3))
}

// Range returns high - low.
func (c *Candle) Range() decimal.Decimal {
	return c.High.Sub(c.Low)
}

// BodySize returns |close - open|.
func (c *Candle) BodySize() decimal.Decimal {
	return c.Close.Sub(c.Open).Abs()
}

// Trade converts the candle into a synthetic trade tick at the close
// price, carrying the bar's full volume. The replay loop feeds these
// into the same per-symbol engines the live path uses.
func (c *Candle) Trade() Trade {
	side := TradeSideBuy
	if c.Close.LessThan(c.Open) {
		side = TradeSideSell
	}
	return Trade{
		Symbol:    c.Symbol,
		Price:     c.Close,
		Size:      c.Volume,
		Side:      side,
		Timestamp: c.Timestamp,
	}
}
