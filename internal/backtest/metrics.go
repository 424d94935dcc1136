package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
)

const hoursPerYear = 24 * 365

var hundred = decimal.NewFromInt(100)

// ComputeMetrics aggregates a run's closed ledger and equity curve into
// performance metrics. Entries are re-sorted by (entry time, trade ID)
// before any order-dependent computation so the result does not depend on
// execution bookkeeping order.
func ComputeMetrics(entries []*domain.LedgerEntry, curve []EquityPoint, initialEquity decimal.Decimal, start, end time.Time) *domain.BacktestMetrics {
	m := &domain.BacktestMetrics{
		StartDate: start,
		EndDate:   end,
	}

	n := len(entries)
	if n == 0 {
		return m
	}

	sorted := make([]*domain.LedgerEntry, n)
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].EntryTime.Equal(sorted[j].EntryTime) {
			return sorted[i].EntryTime.Before(sorted[j].EntryTime)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	var (
		grossWins   = decimal.Zero
		grossLosses = decimal.Zero
		winPcts     []float64
		lossPcts    []float64
		durations   []float64
	)

	for _, e := range sorted {
		m.TotalPnL = m.TotalPnL.Add(e.PnL)
		m.TotalFees = m.TotalFees.Add(e.Fees)
		m.TotalFundingCost = m.TotalFundingCost.Add(e.FundingCost)
		m.TotalSlippage = m.TotalSlippage.Add(e.Slippage)

		pct := 0.0
		if notional := e.NotionalValue(); notional.IsPositive() {
			pct = e.PnL.Div(notional).Mul(hundred).InexactFloat64()
		}

		if e.PnL.IsPositive() {
			m.WinningTrades++
			grossWins = grossWins.Add(e.PnL)
			winPcts = append(winPcts, pct)
		} else {
			m.LosingTrades++
			grossLosses = grossLosses.Add(e.PnL.Abs())
			lossPcts = append(lossPcts, pct)
		}

		durations = append(durations, e.HoldDuration().Hours())
	}

	m.TotalTrades = n
	m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).Div(decimal.NewFromInt(int64(n)))
	m.Expectancy = m.TotalPnL.Div(decimal.NewFromInt(int64(n)))
	if initialEquity.IsPositive() {
		m.TotalReturnPct = m.TotalPnL.Div(initialEquity).Mul(hundred)
	}

	// Profit factor is undefined without losing trades; reported as zero.
	if grossLosses.IsPositive() {
		m.ProfitFactor = grossWins.Div(grossLosses)
	}

	m.AvgTradeDurationHours = decimalMean(durations)
	m.AvgWinningTradePct = decimalMean(winPcts)
	m.AvgLosingTradePct = decimalMean(lossPcts)

	m.MaxDrawdownPct, m.MaxRunupPct = drawdownRunup(curve)
	m.SharpeRatio, m.SortinoRatio = riskAdjusted(curve)

	return m
}

// decimalMean returns the mean of the samples as a decimal, zero when empty.
func decimalMean(samples []float64) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(mean)
}

// drawdownRunup walks the equity curve tracking the running peak and trough,
// returning the worst peak-to-trough drawdown and the best trough-to-peak
// runup, both in percent.
func drawdownRunup(curve []EquityPoint) (drawdown, runup decimal.Decimal) {
	if len(curve) == 0 {
		return decimal.Zero, decimal.Zero
	}

	peak := curve[0].Equity
	trough := curve[0].Equity
	maxDD := decimal.Zero
	maxRU := decimal.Zero

	for _, p := range curve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		if p.Equity.LessThan(trough) {
			trough = p.Equity
		}
		if peak.IsPositive() {
			if dd := peak.Sub(p.Equity).Div(peak).Mul(hundred); dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
		if trough.IsPositive() {
			if ru := p.Equity.Sub(trough).Div(trough).Mul(hundred); ru.GreaterThan(maxRU) {
				maxRU = ru
			}
		}
	}
	return maxDD, maxRU
}

// riskAdjusted computes annualized Sharpe (risk-free rate zero) and Sortino
// ratios from consecutive equity curve returns. The annualization factor
// derives from the average spacing between curve points. Fewer than two
// returns, or zero dispersion, yields zero.
func riskAdjusted(curve []EquityPoint) (sharpe, sortino decimal.Decimal) {
	if len(curve) < 3 {
		return decimal.Zero, decimal.Zero
	}

	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if !prev.IsPositive() {
			continue
		}
		returns = append(returns, curve[i].Equity.Sub(prev).Div(prev).InexactFloat64())
	}
	if len(returns) < 2 {
		return decimal.Zero, decimal.Zero
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return decimal.Zero, decimal.Zero
	}
	stddev, err := stats.StandardDeviation(returns)
	if err != nil {
		return decimal.Zero, decimal.Zero
	}

	spanHours := curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp).Hours()
	if spanHours <= 0 {
		return decimal.Zero, decimal.Zero
	}
	periodsPerYear := hoursPerYear / (spanHours / float64(len(returns)))
	annualize := math.Sqrt(periodsPerYear)

	if stddev > 0 {
		sharpe = decimal.NewFromFloat(mean / stddev * annualize)
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		} else {
			downside = append(downside, 0)
		}
	}
	downsideDev, err := stats.StandardDeviationPopulation(downside)
	if err == nil && downsideDev > 0 {
		sortino = decimal.NewFromFloat(mean / downsideDev * annualize)
	}

	return sharpe, sortino
}
