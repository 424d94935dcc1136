package backtest

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"volharvest/internal/domain"
)

// RenderConsole writes the report as aligned tables for terminal output.
func RenderConsole(w io.Writer, r *Report) {
	m := r.Metrics

	fmt.Fprintf(w, "Backtest %s\n", r.RunID)
	fmt.Fprintf(w, "%s to %s | %s\n\n",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
		strings.Join(r.Symbols, ", "))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{"Total Return", m.TotalReturnPct.StringFixed(2) + "%"})
	table.Append([]string{"Total P&L", m.TotalPnL.StringFixed(2)})
	table.Append([]string{"Gross P&L", m.GrossPnL().StringFixed(2)})
	table.Append([]string{"Total Trades", fmt.Sprintf("%d", m.TotalTrades)})
	table.Append([]string{"Win Rate", m.WinRate.Mul(hundred).StringFixed(1) + "%"})
	table.Append([]string{"Profit Factor", m.ProfitFactor.StringFixed(2)})
	table.Append([]string{"Expectancy", m.Expectancy.StringFixed(2)})
	table.Append([]string{"Sharpe", m.SharpeRatio.StringFixed(2)})
	table.Append([]string{"Sortino", m.SortinoRatio.StringFixed(2)})
	table.Append([]string{"Max Drawdown", m.MaxDrawdownPct.StringFixed(2) + "%"})
	table.Append([]string{"Fees", m.TotalFees.StringFixed(2)})
	table.Append([]string{"Slippage", m.TotalSlippage.StringFixed(2)})
	table.Append([]string{"Funding", m.TotalFundingCost.StringFixed(2)})
	table.Render()

	fmt.Fprintln(w)
	targets := tablewriter.NewWriter(w)
	targets.SetHeader([]string{"Target", "Threshold", "Actual", "Status"})
	targets.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, t := range r.Targets {
		status := "FAIL"
		if t.Achieved {
			status = "PASS"
		}
		targets.Append([]string{t.Name, t.Target.StringFixed(2), t.Actual.StringFixed(2), status})
	}
	targets.Render()
}

// RenderLedgerConsole writes the closed trades as a table, newest last.
func RenderLedgerConsole(w io.Writer, entries []*domain.LedgerEntry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Strategy", "Side", "Entry", "Exit", "Qty", "P&L", "Reason"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range entries {
		exit := "open"
		if e.IsClosed() {
			exit = e.ExitPrice.StringFixed(2)
		}
		table.Append([]string{
			e.Symbol,
			e.Strategy,
			e.Side,
			e.EntryPrice.StringFixed(2),
			exit,
			e.Quantity.StringFixed(4),
			e.PnL.StringFixed(2),
			e.ExitReason,
		})
	}
	table.Render()
}
