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

// LedgerStore implements storage.LedgerStore using PostgreSQL.
//
// Open trades carry NULL exit_time and exit_price; everything else is
// NOT NULL. The deterministic trade ID is the primary key, so replaying
// a run over already persisted data fails loudly instead of silently
// rewriting history.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

const ledgerColumns = `
		trade_id, run_id, symbol, strategy, side,
		entry_time, entry_price, quantity, entry_reason,
		exit_time, exit_price, exit_reason,
		pnl, fees, funding_cost, slippage`

const ledgerInsertQuery = `
	INSERT INTO ledger_entries (` + ledgerColumns + `
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11, $12,
		$13, $14, $15, $16
	)
`

// Insert adds a new ledger entry. Returns ErrDuplicateKey if trade_id exists.
func (s *LedgerStore) Insert(ctx context.Context, e *domain.LedgerEntry) error {
	if e.TradeID == "" || e.RunID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, ledgerInsertQuery, ledgerInsertArgs(e)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// InsertBulk adds multiple entries atomically. Fails entire batch on any
// duplicate or invalid entry.
func (s *LedgerStore) InsertBulk(ctx context.Context, entries []*domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		if e.TradeID == "" || e.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		_, err := tx.Exec(ctx, ledgerInsertQuery, ledgerInsertArgs(e)...)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert ledger entry in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all entries for a run ordered by entry time.
func (s *LedgerStore) GetByRunID(ctx context.Context, runID string) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE run_id = $1
		ORDER BY entry_time ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get ledger entries by run id: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// GetAll retrieves all entries across all runs.
func (s *LedgerStore) GetAll(ctx context.Context) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		ORDER BY entry_time ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all ledger entries: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// ledgerInsertArgs flattens an entry into the 16 insert parameters,
// mapping the zero exit values of an open trade to NULL.
func ledgerInsertArgs(e *domain.LedgerEntry) []interface{} {
	var exitTime interface{}
	var exitPrice interface{}
	if e.IsClosed() {
		exitTime = e.ExitTime
		exitPrice = e.ExitPrice
	}

	return []interface{}{
		e.TradeID, e.RunID, e.Symbol, e.Strategy, e.Side,
		e.EntryTime, e.EntryPrice, e.Quantity, e.EntryReason,
		exitTime, exitPrice, e.ExitReason,
		e.PnL, e.Fees, e.FundingCost, e.Slippage,
	}
}

// scanLedgerEntry scans a single row into a LedgerEntry.
func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var exitTime sql.NullTime
	var exitPrice decimal.NullDecimal

	err := row.Scan(
		&e.TradeID, &e.RunID, &e.Symbol, &e.Strategy, &e.Side,
		&e.EntryTime, &e.EntryPrice, &e.Quantity, &e.EntryReason,
		&exitTime, &exitPrice, &e.ExitReason,
		&e.PnL, &e.Fees, &e.FundingCost, &e.Slippage,
	)
	if err != nil {
		return nil, err
	}

	if exitTime.Valid {
		e.ExitTime = exitTime.Time.UTC()
		e.ExitPrice = exitPrice.Decimal
	}

	return &e, nil
}

// scanLedgerEntries scans multiple rows into a slice of LedgerEntry.
func scanLedgerEntries(rows pgx.Rows) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry

	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entry rows: %w", err)
	}

	return entries, nil
}
