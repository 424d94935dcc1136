package stub

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func candle(symbol string, ts time.Time) *domain.Candle {
	return &domain.Candle{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      d("50000"),
		High:      d("50100"),
		Low:       d("49900"),
		Close:     d("50050"),
		Volume:    d("10"),
	}
}

func TestCandleSource_FiltersSymbolAndRange(t *testing.T) {
	src := NewCandleSource([]*domain.Candle{
		candle("BTC-USDT-PERP", t0),
		candle("BTC-USDT-PERP", t0.Add(time.Minute)),
		candle("BTC-USDT-PERP", t0.Add(2*time.Minute)),
		candle("ETH-USDT-PERP", t0.Add(time.Minute)),
	}, []*domain.FundingRate{
		{Symbol: "BTC-USDT-PERP", Timestamp: t0, Rate: d("0.0001")},
		{Symbol: "BTC-USDT-PERP", Timestamp: t0.Add(8 * time.Hour), Rate: d("0.0002")},
	})

	ctx := context.Background()

	candles, err := src.Candles(ctx, "BTC-USDT-PERP", "1m", t0, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	// Copies: mutating the result must not touch stored data.
	candles[0].Close = d("1")
	again, _ := src.Candles(ctx, "BTC-USDT-PERP", "1m", t0, t0)
	if !again[0].Close.Equal(d("50050")) {
		t.Error("stored candle mutated through returned copy")
	}

	rates, err := src.FundingRates(ctx, "BTC-USDT-PERP", t0, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("FundingRates: %v", err)
	}
	if len(rates) != 1 {
		t.Fatalf("expected 1 funding rate, got %d", len(rates))
	}
}

func TestStreamSource_DeliversAndCloses(t *testing.T) {
	trades := []domain.Trade{
		{Symbol: "BTC-USDT-PERP", Price: d("50000"), Size: d("1"), Side: domain.TradeSideBuy, Timestamp: t0},
		{Symbol: "ETH-USDT-PERP", Price: d("3000"), Size: d("1"), Side: domain.TradeSideSell, Timestamp: t0},
	}
	liqs := []domain.Liquidation{
		{Symbol: "BTC-USDT-PERP", Side: domain.TradeSideSell, Value: d("600000"), Timestamp: t0},
	}

	src := NewStreamSource(trades, liqs)

	tradeCh, liqCh, err := src.Subscribe(context.Background(), []string{"BTC-USDT-PERP"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []domain.Trade
	for trade := range tradeCh {
		got = append(got, trade)
	}
	if len(got) != 1 || got[0].Symbol != "BTC-USDT-PERP" {
		t.Errorf("expected 1 BTC trade, got %v", got)
	}

	var gotLiqs []domain.Liquidation
	for liq := range liqCh {
		gotLiqs = append(gotLiqs, liq)
	}
	if len(gotLiqs) != 1 {
		t.Errorf("expected 1 liquidation, got %d", len(gotLiqs))
	}

	if _, _, err := src.Subscribe(context.Background(), nil); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestSyntheticCandleSource_Deterministic(t *testing.T) {
	src := NewSyntheticCandleSource()
	ctx := context.Background()

	from := t0
	to := t0.Add(4 * time.Hour)

	first, err := src.Candles(ctx, "BTC-USDT-PERP", "1m", from, to)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	second, err := src.Candles(ctx, "BTC-USDT-PERP", "1m", from, to)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}

	if len(first) != 241 {
		t.Fatalf("expected 241 bars inclusive, got %d", len(first))
	}
	for i := range first {
		if !first[i].Close.Equal(second[i].Close) || !first[i].Volume.Equal(second[i].Volume) {
			t.Fatalf("bar %d differs between runs", i)
		}
	}

	// Every bar passes domain validation.
	for _, c := range first {
		if err := c.Validate(); err != nil {
			t.Fatalf("invalid synthetic candle: %v", err)
		}
	}

	// Overlapping request agrees on shared bars.
	shifted, err := src.Candles(ctx, "BTC-USDT-PERP", "1m", from.Add(time.Hour), to)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if !shifted[0].Close.Equal(first[60].Close) {
		t.Error("overlapping requests disagree on a shared bar")
	}
}

func TestSyntheticCandleSource_VolumeBursts(t *testing.T) {
	src := NewSyntheticCandleSource()

	candles, err := src.Candles(context.Background(), "BTC-USDT-PERP", "1m", t0, t0.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}

	bursts := 0
	for _, c := range candles {
		if c.Volume.GreaterThan(src.BaseVolume) {
			bursts++
		}
	}
	if bursts == 0 {
		t.Error("expected at least one volume burst")
	}
	if bursts == len(candles) {
		t.Error("every bar bursting defeats the spike detector")
	}
}

func TestSyntheticCandleSource_Funding(t *testing.T) {
	src := NewSyntheticCandleSource()

	rates, err := src.FundingRates(context.Background(), "BTC-USDT-PERP", t0, t0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("FundingRates: %v", err)
	}

	if len(rates) != 4 {
		t.Fatalf("expected 4 funding boundaries in 24h inclusive, got %d", len(rates))
	}
	for _, r := range rates {
		if !r.Rate.Equal(src.FundingRate) {
			t.Errorf("unexpected rate %s", r.Rate)
		}
	}
}

func TestIntervalDuration(t *testing.T) {
	if _, err := intervalDuration("7x"); err == nil {
		t.Error("expected error for unsupported interval")
	}
	dur, err := intervalDuration("4h")
	if err != nil || dur != 4*time.Hour {
		t.Errorf("expected 4h, got %v err %v", dur, err)
	}
}
