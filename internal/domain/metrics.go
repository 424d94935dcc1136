package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BacktestMetrics aggregates the performance of one backtest run.
type BacktestMetrics struct {
	StartDate time.Time
	EndDate   time.Time

	// Counts
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal // winning / total

	// Returns
	TotalPnL       decimal.Decimal // net of all costs
	TotalReturnPct decimal.Decimal // vs initial equity
	MaxDrawdownPct decimal.Decimal // worst peak-to-trough on the equity curve
	MaxRunupPct    decimal.Decimal // best trough-to-peak

	// Risk-adjusted
	SharpeRatio  decimal.Decimal // annualized, risk-free rate 0
	SortinoRatio decimal.Decimal // downside deviation denominator

	// Trade quality
	AvgTradeDurationHours decimal.Decimal
	AvgWinningTradePct    decimal.Decimal
	AvgLosingTradePct     decimal.Decimal
	ProfitFactor          decimal.Decimal // gross wins / gross losses
	Expectancy            decimal.Decimal // TotalPnL / TotalTrades

	// Costs
	TotalFees        decimal.Decimal
	TotalFundingCost decimal.Decimal
	TotalSlippage    decimal.Decimal
}

// GrossPnL returns P&L before fees, funding and slippage.
func (m *BacktestMetrics) GrossPnL() decimal.Decimal {
	return m.TotalPnL.Add(m.TotalFees).Add(m.TotalFundingCost).Add(m.TotalSlippage)
}
