package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
	"volharvest/internal/storage"
)

// Performance targets evaluated in every report.
var (
	SharpeTarget      = decimal.NewFromFloat(1.3)
	MaxDrawdownTarget = decimal.NewFromFloat(8.0) // percent
)

// Target is one pass/fail criterion in the report's targets section.
type Target struct {
	Name     string
	Target   decimal.Decimal
	Actual   decimal.Decimal
	Achieved bool
}

// Report is the renderable summary of one backtest run.
type Report struct {
	GeneratedAt time.Time

	RunID         string
	Symbols       []string
	StartDate     time.Time
	EndDate       time.Time
	InitialEquity decimal.Decimal
	SlippageBps   decimal.Decimal
	FeeBps        decimal.Decimal

	Metrics *domain.BacktestMetrics
	Targets []Target
}

// BuildReport assembles a report from a completed run. Runs without metrics
// cannot be reported on.
func BuildReport(run *domain.BacktestRun, now time.Time) (*Report, error) {
	if run.Metrics == nil {
		return nil, fmt.Errorf("backtest: run %s has no metrics", run.RunID)
	}
	m := run.Metrics

	return &Report{
		GeneratedAt:   now,
		RunID:         run.RunID,
		Symbols:       run.Symbols,
		StartDate:     run.StartDate,
		EndDate:       run.EndDate,
		InitialEquity: run.InitialEquity,
		SlippageBps:   run.SlippageBps,
		FeeBps:        run.FeeBps,
		Metrics:       m,
		Targets: []Target{
			{
				Name:     "Sharpe ratio",
				Target:   SharpeTarget,
				Actual:   m.SharpeRatio,
				Achieved: m.SharpeRatio.GreaterThanOrEqual(SharpeTarget),
			},
			{
				Name:     "Max drawdown %",
				Target:   MaxDrawdownTarget,
				Actual:   m.MaxDrawdownPct,
				Achieved: m.MaxDrawdownPct.LessThanOrEqual(MaxDrawdownTarget),
			},
		},
	}, nil
}

// Generator rebuilds reports for persisted runs.
type Generator struct {
	runs   storage.BacktestRunStore
	ledger storage.LedgerStore
	now    func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator over the given stores.
func NewGenerator(runs storage.BacktestRunStore, ledger storage.LedgerStore) *Generator {
	return &Generator{
		runs:   runs,
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a persisted run and its ledger and builds the report.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, []*domain.LedgerEntry, error) {
	run, err := g.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("backtest: load run %s: %w", runID, err)
	}

	entries, err := g.ledger.GetByRunID(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("backtest: load ledger for run %s: %w", runID, err)
	}

	report, err := BuildReport(run, g.now())
	if err != nil {
		return nil, nil, err
	}
	return report, entries, nil
}
