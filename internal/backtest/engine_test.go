package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
	"volharvest/internal/feed/stub"
)

var eT0 = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

const testSymbol = "BTC-USD-PERP"

func bar(ts time.Time, price string) *domain.Candle {
	p := decimal.RequireFromString(price)
	return &domain.Candle{
		Symbol: testSymbol, Timestamp: ts,
		Open: p, High: p, Low: p, Close: p,
		Volume: decimal.NewFromInt(10),
	}
}

// reversionPath builds a flat tape at 100 followed by a 2% dislocation and
// a snap back: enough to fire the price-deviation trigger, open a
// mean-reversion short at 102 and take profit at the VWAP touch.
func reversionPath() []*domain.Candle {
	var candles []*domain.Candle
	ts := eT0
	for i := 0; i < 35; i++ {
		candles = append(candles, bar(ts, "100"))
		ts = ts.Add(time.Minute)
	}
	candles = append(candles, bar(ts, "102"))
	candles = append(candles, bar(ts.Add(time.Minute), "100"))
	candles = append(candles, bar(ts.Add(2*time.Minute), "100"))
	return candles
}

func runEngine(t *testing.T, candles []*domain.Candle, funding []*domain.FundingRate) *Result {
	t.Helper()

	source := stub.NewCandleSource(candles, funding)
	cfg := DefaultConfig([]string{testSymbol})
	engine := NewEngine(source, cfg, nil).
		WithClock(func() time.Time { return eT0.Add(24 * time.Hour) })

	result, err := engine.Run(context.Background(), eT0, eT0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return result
}

func TestEngineMeanReversionRoundTrip(t *testing.T) {
	result := runEngine(t, reversionPath(), nil)

	if len(result.Ledger) != 1 {
		t.Fatalf("Ledger has %d entries, want 1", len(result.Ledger))
	}

	e := result.Ledger[0]
	if e.Strategy != domain.StrategyMeanReversion.String() {
		t.Errorf("Strategy = %s, want mean_reversion", e.Strategy)
	}
	if e.Side != domain.PositionSideShort.String() {
		t.Errorf("Side = %s, want short (fade the move up)", e.Side)
	}
	if !e.EntryPrice.Equal(decimal.RequireFromString("102")) {
		t.Errorf("EntryPrice = %s, want 102", e.EntryPrice)
	}
	if !e.IsClosed() {
		t.Fatal("entry not closed")
	}
	if !e.GrossPnL().IsPositive() {
		t.Errorf("GrossPnL = %s, want positive (short 102 -> 100)", e.GrossPnL())
	}
	if len(e.TradeID) != 64 {
		t.Errorf("TradeID length = %d, want 64 hex chars", len(e.TradeID))
	}
	if e.RunID != result.Run.RunID {
		t.Errorf("RunID = %s, want %s", e.RunID, result.Run.RunID)
	}

	if result.Metrics.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1", result.Metrics.TotalTrades)
	}
	if !result.Metrics.TotalFees.IsPositive() || !result.Metrics.TotalSlippage.IsPositive() {
		t.Errorf("costs = fees %s, slippage %s, want both positive",
			result.Metrics.TotalFees, result.Metrics.TotalSlippage)
	}
}

func TestEngineEquityCurveStartsAtInitialEquity(t *testing.T) {
	result := runEngine(t, reversionPath(), nil)

	if len(result.EquityCurve) < 2 {
		t.Fatalf("EquityCurve has %d points, want at least 2", len(result.EquityCurve))
	}
	first := result.EquityCurve[0]
	if !first.Equity.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("first equity point = %s, want 100000", first.Equity)
	}

	last := result.EquityCurve[len(result.EquityCurve)-1]
	want := decimal.NewFromInt(100000).Add(result.Metrics.TotalPnL)
	if !last.Equity.Equal(want) {
		t.Errorf("final equity = %s, want initial + total pnl = %s", last.Equity, want)
	}
}

func TestEngineAppliesFundingToOpenPosition(t *testing.T) {
	candles := reversionPath()
	// Entry happens on the 102 bar; a funding timestamp 30s later lands
	// while the short is open. Shorts receive positive rates.
	entryTS := eT0.Add(35 * time.Minute)
	funding := []*domain.FundingRate{
		{Symbol: testSymbol, Timestamp: entryTS.Add(30 * time.Second), Rate: decimal.RequireFromString("0.0001")},
	}

	result := runEngine(t, candles, funding)

	if len(result.Ledger) != 1 {
		t.Fatalf("Ledger has %d entries, want 1", len(result.Ledger))
	}
	if !result.Ledger[0].FundingCost.IsNegative() {
		t.Errorf("FundingCost = %s, want negative (short receives positive rate)",
			result.Ledger[0].FundingCost)
	}
}

func TestEngineClosesOpenPositionsAtHorizon(t *testing.T) {
	// Dislocation with no reversion: the short stays open until the
	// history runs out and must be force-closed.
	var candles []*domain.Candle
	ts := eT0
	for i := 0; i < 35; i++ {
		candles = append(candles, bar(ts, "100"))
		ts = ts.Add(time.Minute)
	}
	candles = append(candles, bar(ts, "102"))
	candles = append(candles, bar(ts.Add(time.Minute), "102"))

	result := runEngine(t, candles, nil)

	if len(result.Ledger) != 1 {
		t.Fatalf("Ledger has %d entries, want 1", len(result.Ledger))
	}
	e := result.Ledger[0]
	if !e.IsClosed() {
		t.Fatal("position not closed at horizon")
	}
	if e.ExitReason != "backtest horizon reached" {
		t.Errorf("ExitReason = %q, want horizon close", e.ExitReason)
	}
}

func TestEngineRunsAreRepeatable(t *testing.T) {
	source := stub.NewCandleSource(reversionPath(), nil)
	cfg := DefaultConfig([]string{testSymbol})
	engine := NewEngine(source, cfg, nil)

	first, err := engine.Run(context.Background(), eT0, eT0.Add(time.Hour))
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	second, err := engine.Run(context.Background(), eT0, eT0.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	if len(first.Ledger) != len(second.Ledger) {
		t.Fatalf("ledger sizes differ: %d vs %d", len(first.Ledger), len(second.Ledger))
	}
	for i := range first.Ledger {
		if !first.Ledger[i].PnL.Equal(second.Ledger[i].PnL) {
			t.Errorf("trade %d PnL differs: %s vs %s",
				i, first.Ledger[i].PnL, second.Ledger[i].PnL)
		}
		if !first.Ledger[i].EntryTime.Equal(second.Ledger[i].EntryTime) {
			t.Errorf("trade %d entry time differs", i)
		}
	}
	if !first.Metrics.TotalPnL.Equal(second.Metrics.TotalPnL) {
		t.Errorf("TotalPnL differs between runs: %s vs %s",
			first.Metrics.TotalPnL, second.Metrics.TotalPnL)
	}
}
