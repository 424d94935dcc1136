package stub

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
)

// SyntheticCandleSource generates a deterministic price path: a sine wave
// around a base price with periodic volume bursts. It lets backtests run
// with no network access and no stored history, and the wave swings far
// enough from its own rolling VWAP to exercise both strategies.
type SyntheticCandleSource struct {
	BasePrice       decimal.Decimal
	Amplitude       float64 // peak fractional deviation from base
	PeriodBars      int     // bars per full sine cycle
	BaseVolume      decimal.Decimal
	BurstEveryBars  int // every Nth bar carries burst volume, 0 disables
	BurstMultiplier decimal.Decimal
	FundingRate     decimal.Decimal // constant rate emitted every 8h
}

// NewSyntheticCandleSource returns a generator with defaults sized for
// 1m bars: a 4h price cycle swinging ±2% and a volume burst every 97 bars.
func NewSyntheticCandleSource() *SyntheticCandleSource {
	return &SyntheticCandleSource{
		BasePrice:       decimal.NewFromInt(50000),
		Amplitude:       0.02,
		PeriodBars:      240,
		BaseVolume:      decimal.NewFromInt(10),
		BurstEveryBars:  97,
		BurstMultiplier: decimal.NewFromInt(6),
		FundingRate:     decimal.RequireFromString("0.0001"),
	}
}

// Candles generates bars within [from, to] (inclusive). The path depends
// only on the bar's offset from the Unix epoch, so overlapping requests
// agree on every shared bar.
func (s *SyntheticCandleSource) Candles(_ context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error) {
	step, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}

	var candles []*domain.Candle
	for ts := from.Truncate(step); !ts.After(to); ts = ts.Add(step) {
		if ts.Before(from) {
			continue
		}

		bar := ts.UnixMilli() / step.Milliseconds()
		open := s.priceAt(bar)
		close := s.priceAt(bar + 1)

		high := decimal.Max(open, close).Mul(decimal.RequireFromString("1.0005"))
		low := decimal.Min(open, close).Mul(decimal.RequireFromString("0.9995"))

		volume := s.BaseVolume
		tradeCount := 100
		if s.BurstEveryBars > 0 && bar%int64(s.BurstEveryBars) == 0 {
			volume = volume.Mul(s.BurstMultiplier)
			tradeCount = 600
		}

		candles = append(candles, &domain.Candle{
			Symbol:     symbol,
			Timestamp:  ts,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     volume,
			TradeCount: tradeCount,
		})
	}
	return candles, nil
}

// FundingRates emits the constant rate at every 8h boundary in [from, to].
func (s *SyntheticCandleSource) FundingRates(_ context.Context, symbol string, from, to time.Time) ([]*domain.FundingRate, error) {
	const fundingInterval = 8 * time.Hour

	var rates []*domain.FundingRate
	for ts := from.Truncate(fundingInterval); !ts.After(to); ts = ts.Add(fundingInterval) {
		if ts.Before(from) {
			continue
		}
		rates = append(rates, &domain.FundingRate{
			Symbol:    symbol,
			Timestamp: ts,
			Rate:      s.FundingRate,
		})
	}
	return rates, nil
}

func (s *SyntheticCandleSource) priceAt(bar int64) decimal.Decimal {
	phase := 2 * math.Pi * float64(bar%int64(s.PeriodBars)) / float64(s.PeriodBars)
	swing := decimal.NewFromFloat(1 + s.Amplitude*math.Sin(phase))
	return s.BasePrice.Mul(swing)
}

func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "3m":
		return 3 * time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported interval %q", interval)
}
