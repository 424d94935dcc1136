package backtest

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string with the
// summary, performance, trades, costs and targets sections.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	m := r.Metrics

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Symbols | %s |\n", strings.Join(r.Symbols, ", ")))
	sb.WriteString(fmt.Sprintf("| Period | %s to %s |\n",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("| Initial Equity | %s |\n", r.InitialEquity.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Total Return | %s%% |\n", m.TotalReturnPct.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", m.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s%% |\n", m.WinRate.Mul(hundred).StringFixed(1)))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %s |\n", m.SharpeRatio.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %s%% |\n", m.MaxDrawdownPct.StringFixed(2)))
	sb.WriteString("\n")

	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total P&L | %s |\n", m.TotalPnL.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Gross P&L | %s |\n", m.GrossPnL().StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", m.ProfitFactor.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Expectancy | %s |\n", m.Expectancy.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Sortino Ratio | %s |\n", m.SortinoRatio.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Max Runup | %s%% |\n", m.MaxRunupPct.StringFixed(2)))
	sb.WriteString("\n")

	sb.WriteString("## Trades\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Winning Trades | %d |\n", m.WinningTrades))
	sb.WriteString(fmt.Sprintf("| Losing Trades | %d |\n", m.LosingTrades))
	sb.WriteString(fmt.Sprintf("| Avg Win | %s%% |\n", m.AvgWinningTradePct.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Avg Loss | %s%% |\n", m.AvgLosingTradePct.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Avg Duration | %s h |\n", m.AvgTradeDurationHours.StringFixed(1)))
	sb.WriteString("\n")

	sb.WriteString("## Costs\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Fees | %s |\n", m.TotalFees.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Slippage | %s |\n", m.TotalSlippage.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Funding | %s |\n", m.TotalFundingCost.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Slippage Model | %s bps/side |\n", r.SlippageBps.StringFixed(0)))
	sb.WriteString(fmt.Sprintf("| Fee Model | %s bps/side |\n", r.FeeBps.StringFixed(0)))
	sb.WriteString("\n")

	sb.WriteString("## Targets\n\n")
	sb.WriteString("| Target | Threshold | Actual | Status |\n")
	sb.WriteString("|--------|-----------|--------|--------|\n")
	for _, t := range r.Targets {
		status := "FAIL"
		if t.Achieved {
			status = "PASS"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			t.Name, t.Target.StringFixed(2), t.Actual.StringFixed(2), status))
	}
	sb.WriteString("\n")

	return sb.String()
}
