package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry records one simulated round trip (or still-open position)
// in a backtest. Corresponds to the ledger_entries table in PostgreSQL.
type LedgerEntry struct {
	TradeID  string `csv:"trade_id"` // deterministic hash
	RunID    string `csv:"run_id"`   // owning backtest run
	Symbol   string `csv:"symbol"`
	Strategy string `csv:"strategy"` // mean_reversion | momentum
	Side     string `csv:"side"`     // long | short

	EntryTime   time.Time       `csv:"entry_time"`
	EntryPrice  decimal.Decimal `csv:"entry_price"`
	Quantity    decimal.Decimal `csv:"quantity"`
	EntryReason string          `csv:"entry_reason"`

	ExitTime   time.Time       `csv:"exit_time"`
	ExitPrice  decimal.Decimal `csv:"exit_price"`
	ExitReason string          `csv:"exit_reason"`

	PnL         decimal.Decimal `csv:"pnl"`          // net of costs
	Fees        decimal.Decimal `csv:"fees"`         // taker fees both sides
	FundingCost decimal.Decimal `csv:"funding_cost"` // accumulated funding transfers
	Slippage    decimal.Decimal `csv:"slippage"`     // execution slippage both sides
}

// IsClosed reports whether the trade has an exit fill.
func (e *LedgerEntry) IsClosed() bool {
	return !e.ExitTime.IsZero()
}

// NotionalValue returns entry price * quantity.
func (e *LedgerEntry) NotionalValue() decimal.Decimal {
	return e.EntryPrice.Mul(e.Quantity)
}

// HoldDuration returns the time between entry and exit fills.
// Zero for open trades.
func (e *LedgerEntry) HoldDuration() time.Duration {
	if !e.IsClosed() {
		return 0
	}
	return e.ExitTime.Sub(e.EntryTime)
}

// GrossPnL returns the P&L before fees, funding and slippage.
func (e *LedgerEntry) GrossPnL() decimal.Decimal {
	return e.PnL.Add(e.Fees).Add(e.FundingCost).Add(e.Slippage)
}

// BacktestRun identifies one backtest execution and its configuration
// snapshot. Corresponds to the backtest_runs table in PostgreSQL.
type BacktestRun struct {
	RunID     string // UUID
	CreatedAt time.Time
	Symbols   []string
	StartDate time.Time
	EndDate   time.Time

	InitialEquity decimal.Decimal
	SlippageBps   decimal.Decimal
	FeeBps        decimal.Decimal

	Metrics *BacktestMetrics // nil until the run completes
}
