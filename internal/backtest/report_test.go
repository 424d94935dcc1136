package backtest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"volharvest/internal/domain"
	"volharvest/internal/storage/memory"
)

func sampleRun() *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:         "4f9c6f0a-0000-0000-0000-000000000001",
		CreatedAt:     mT0,
		Symbols:       []string{"BTC-USD-PERP"},
		StartDate:     mT0,
		EndDate:       mT0.Add(30 * 24 * time.Hour),
		InitialEquity: d("100000"),
		SlippageBps:   d("5"),
		FeeBps:        d("8"),
		Metrics: &domain.BacktestMetrics{
			StartDate:      mT0,
			EndDate:        mT0.Add(30 * 24 * time.Hour),
			TotalTrades:    100,
			WinningTrades:  60,
			LosingTrades:   40,
			WinRate:        d("0.6"),
			TotalPnL:       d("5000"),
			TotalReturnPct: d("5"),
			MaxDrawdownPct: d("3"),
			SharpeRatio:    d("1.5"),
			ProfitFactor:   d("1.5"),
			Expectancy:     d("50"),
			TotalFees:      d("500"),
			TotalSlippage:  d("100"),
		},
	}
}

func TestBuildReportTargets(t *testing.T) {
	report, err := BuildReport(sampleRun(), mT0.Add(time.Hour))
	if err != nil {
		t.Fatalf("BuildReport() error: %v", err)
	}

	if len(report.Targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(report.Targets))
	}
	if !report.Targets[0].Achieved {
		t.Error("sharpe 1.5 >= target 1.3 should pass")
	}
	if !report.Targets[1].Achieved {
		t.Error("drawdown 3% <= target 8% should pass")
	}
}

func TestBuildReportRequiresMetrics(t *testing.T) {
	run := sampleRun()
	run.Metrics = nil

	if _, err := BuildReport(run, mT0); err == nil {
		t.Fatal("BuildReport() on incomplete run succeeded, want error")
	}
}

func TestRenderMarkdownSections(t *testing.T) {
	report, err := BuildReport(sampleRun(), mT0)
	if err != nil {
		t.Fatalf("BuildReport() error: %v", err)
	}

	md := RenderMarkdown(report)
	for _, section := range []string{"## Summary", "## Performance", "## Trades", "## Costs", "## Targets"} {
		if !strings.Contains(md, section) {
			t.Errorf("markdown missing section %q", section)
		}
	}
	if !strings.Contains(md, "| Total Trades | 100 |") {
		t.Error("markdown missing total trades row")
	}
	if !strings.Contains(md, "PASS") {
		t.Error("markdown missing PASS target status")
	}
}

func TestGeneratorLoadsPersistedRun(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewBacktestRunStore()
	ledger := memory.NewLedgerStore()

	run := sampleRun()
	if err := runs.Insert(ctx, run); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	entry := closedEntry("a1", mT0, "50")
	entry.RunID = run.RunID
	if err := ledger.Insert(ctx, entry); err != nil {
		t.Fatalf("insert ledger entry: %v", err)
	}

	gen := NewGenerator(runs, ledger).WithClock(func() time.Time { return mT0 })
	report, entries, err := gen.Generate(ctx, run.RunID)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if report.RunID != run.RunID {
		t.Errorf("RunID = %s, want %s", report.RunID, run.RunID)
	}
	if !report.GeneratedAt.Equal(mT0) {
		t.Errorf("GeneratedAt = %s, want injected clock value", report.GeneratedAt)
	}
	if len(entries) != 1 {
		t.Errorf("got %d ledger entries, want 1", len(entries))
	}
}

func TestGeneratorUnknownRun(t *testing.T) {
	gen := NewGenerator(memory.NewBacktestRunStore(), memory.NewLedgerStore())
	if _, _, err := gen.Generate(context.Background(), "missing"); err == nil {
		t.Fatal("Generate() for unknown run succeeded, want error")
	}
}

func TestLedgerCSVRoundTrip(t *testing.T) {
	entries := []*domain.LedgerEntry{
		closedEntry("trade-1", mT0, "50"),
	}
	entries[0].Fees = d("8")
	entries[0].FundingCost = d("-2")

	var buf bytes.Buffer
	if err := WriteLedgerCSV(&buf, entries); err != nil {
		t.Fatalf("WriteLedgerCSV() error: %v", err)
	}

	got, err := ReadLedgerCSV(&buf)
	if err != nil {
		t.Fatalf("ReadLedgerCSV() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].TradeID != "trade-1" {
		t.Errorf("TradeID = %q, want trade-1", got[0].TradeID)
	}
	if !got[0].PnL.Equal(d("50")) {
		t.Errorf("PnL = %s, want 50", got[0].PnL)
	}
	if !got[0].EntryTime.Equal(mT0) {
		t.Errorf("EntryTime = %s, want %s", got[0].EntryTime, mT0)
	}
}
