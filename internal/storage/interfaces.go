package storage

import (
	"context"
	"time"

	"volharvest/internal/domain"
)

// CandleStore provides access to historical candle storage. Used as a local
// cache in front of exchange REST APIs so repeated backtests over the same
// range do not refetch.
type CandleStore interface {
	// Insert adds a single candle. Returns ErrDuplicateKey if
	// (symbol, timestamp) exists.
	Insert(ctx context.Context, c *domain.Candle) error

	// InsertBulk adds multiple candles atomically. Fails entire batch on any
	// duplicate.
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetBySymbol retrieves candles for a symbol within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error)

	// Count returns the number of candles stored for a symbol.
	Count(ctx context.Context, symbol string) (int64, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a completed run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetAll retrieves all runs ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.BacktestRun, error)
}

// LedgerStore provides access to ledger_entries storage.
type LedgerStore interface {
	// Insert adds a new ledger entry. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, e *domain.LedgerEntry) error

	// InsertBulk adds multiple entries atomically. Fails entire batch on any
	// duplicate.
	InsertBulk(ctx context.Context, entries []*domain.LedgerEntry) error

	// GetByRunID retrieves all entries for a run, ordered by entry_time ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.LedgerEntry, error)

	// GetAll retrieves all entries ordered by entry_time ASC.
	GetAll(ctx context.Context) ([]*domain.LedgerEntry, error)
}
