// Package feed defines the market data boundary: historical candle and
// funding sources for backtests, and live trade/liquidation streams for
// the bot. Implementations live in subpackages (binance, stub).
package feed

import (
	"context"
	"time"

	"volharvest/internal/domain"
)

// CandleSource provides historical market data.
type CandleSource interface {
	// Candles returns OHLCV bars for a symbol within [from, to] (inclusive),
	// ordered by open time ASC. interval uses exchange notation ("1m", "1h").
	Candles(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error)

	// FundingRates returns funding observations within [from, to] (inclusive),
	// ordered by timestamp ASC.
	FundingRates(ctx context.Context, symbol string, from, to time.Time) ([]*domain.FundingRate, error)
}

// StreamSource provides live trades and forced liquidations.
type StreamSource interface {
	// Subscribe opens the stream for the given symbols. The returned channels
	// stay open across reconnects and close only after Close.
	Subscribe(ctx context.Context, symbols []string) (<-chan domain.Trade, <-chan domain.Liquidation, error)

	// Close terminates the stream and closes the subscription channels.
	Close() error
}
