package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
	"volharvest/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
//
// The metric columns are nullable: a run is inserted with its configuration
// when the backtest starts, and the completed row (metrics included) is a
// separate insert under a new run ID. NULL total_trades marks a run without
// metrics.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const runColumns = `
		run_id, created_at, symbols, start_date, end_date,
		initial_equity, slippage_bps, fee_bps,
		total_trades, winning_trades, losing_trades, win_rate,
		total_pnl, total_return_pct, max_drawdown_pct, max_runup_pct,
		sharpe_ratio, sortino_ratio,
		avg_trade_duration_hours, avg_winning_trade_pct, avg_losing_trade_pct,
		profit_factor, expectancy,
		total_fees, total_funding_cost, total_slippage`

const runInsertQuery = `
	INSERT INTO backtest_runs (` + runColumns + `
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8,
		$9, $10, $11, $12,
		$13, $14, $15, $16,
		$17, $18,
		$19, $20, $21,
		$22, $23,
		$24, $25, $26
	)
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r.RunID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, runInsertQuery, runInsertArgs(r)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetAll retrieves all runs ordered by creation time.
func (s *BacktestRunStore) GetAll(ctx context.Context) ([]*domain.BacktestRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all backtest runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// runInsertArgs flattens a run into the 26 insert parameters. The 18 metric
// parameters are NULL when the run has no metrics yet.
func runInsertArgs(r *domain.BacktestRun) []interface{} {
	args := []interface{}{
		r.RunID, r.CreatedAt, r.Symbols, r.StartDate, r.EndDate,
		r.InitialEquity, r.SlippageBps, r.FeeBps,
	}

	if r.Metrics == nil {
		for i := 0; i < 18; i++ {
			args = append(args, nil)
		}
		return args
	}

	m := r.Metrics
	return append(args,
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate,
		m.TotalPnL, m.TotalReturnPct, m.MaxDrawdownPct, m.MaxRunupPct,
		m.SharpeRatio, m.SortinoRatio,
		m.AvgTradeDurationHours, m.AvgWinningTradePct, m.AvgLosingTradePct,
		m.ProfitFactor, m.Expectancy,
		m.TotalFees, m.TotalFundingCost, m.TotalSlippage,
	)
}

// runRow holds the nullable metric columns during a scan.
type runRow struct {
	totalTrades   sql.NullInt64
	winningTrades sql.NullInt64
	losingTrades  sql.NullInt64

	winRate        decimal.NullDecimal
	totalPnL       decimal.NullDecimal
	totalReturnPct decimal.NullDecimal
	maxDrawdownPct decimal.NullDecimal
	maxRunupPct    decimal.NullDecimal
	sharpeRatio    decimal.NullDecimal
	sortinoRatio   decimal.NullDecimal

	avgTradeDurationHours decimal.NullDecimal
	avgWinningTradePct    decimal.NullDecimal
	avgLosingTradePct     decimal.NullDecimal
	profitFactor          decimal.NullDecimal
	expectancy            decimal.NullDecimal

	totalFees        decimal.NullDecimal
	totalFundingCost decimal.NullDecimal
	totalSlippage    decimal.NullDecimal
}

func (rr *runRow) dest(r *domain.BacktestRun) []interface{} {
	return []interface{}{
		&r.RunID, &r.CreatedAt, &r.Symbols, &r.StartDate, &r.EndDate,
		&r.InitialEquity, &r.SlippageBps, &r.FeeBps,
		&rr.totalTrades, &rr.winningTrades, &rr.losingTrades, &rr.winRate,
		&rr.totalPnL, &rr.totalReturnPct, &rr.maxDrawdownPct, &rr.maxRunupPct,
		&rr.sharpeRatio, &rr.sortinoRatio,
		&rr.avgTradeDurationHours, &rr.avgWinningTradePct, &rr.avgLosingTradePct,
		&rr.profitFactor, &rr.expectancy,
		&rr.totalFees, &rr.totalFundingCost, &rr.totalSlippage,
	}
}

// metrics rebuilds the metrics struct, or nil for an incomplete run.
func (rr *runRow) metrics(r *domain.BacktestRun) *domain.BacktestMetrics {
	if !rr.totalTrades.Valid {
		return nil
	}

	return &domain.BacktestMetrics{
		StartDate: r.StartDate,
		EndDate:   r.EndDate,

		TotalTrades:   int(rr.totalTrades.Int64),
		WinningTrades: int(rr.winningTrades.Int64),
		LosingTrades:  int(rr.losingTrades.Int64),
		WinRate:       rr.winRate.Decimal,

		TotalPnL:       rr.totalPnL.Decimal,
		TotalReturnPct: rr.totalReturnPct.Decimal,
		MaxDrawdownPct: rr.maxDrawdownPct.Decimal,
		MaxRunupPct:    rr.maxRunupPct.Decimal,

		SharpeRatio:  rr.sharpeRatio.Decimal,
		SortinoRatio: rr.sortinoRatio.Decimal,

		AvgTradeDurationHours: rr.avgTradeDurationHours.Decimal,
		AvgWinningTradePct:    rr.avgWinningTradePct.Decimal,
		AvgLosingTradePct:     rr.avgLosingTradePct.Decimal,
		ProfitFactor:          rr.profitFactor.Decimal,
		Expectancy:            rr.expectancy.Decimal,

		TotalFees:        rr.totalFees.Decimal,
		TotalFundingCost: rr.totalFundingCost.Decimal,
		TotalSlippage:    rr.totalSlippage.Decimal,
	}
}

// scanRun scans a single row into a BacktestRun.
func scanRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var rr runRow

	if err := row.Scan(rr.dest(&r)...); err != nil {
		return nil, err
	}
	r.Metrics = rr.metrics(&r)

	return &r, nil
}

// scanRuns scans multiple rows into a slice of BacktestRun.
func scanRuns(rows pgx.Rows) ([]*domain.BacktestRun, error) {
	var runs []*domain.BacktestRun

	for rows.Next() {
		var r domain.BacktestRun
		var rr runRow

		if err := rows.Scan(rr.dest(&r)...); err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		r.Metrics = rr.metrics(&r)

		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}
