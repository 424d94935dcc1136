package clickhouse

import (
	"context"
	"fmt"
	"time"

	"volharvest/internal/domain"
	"volharvest/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
//
// MergeTree does not enforce uniqueness, so duplicates are rejected with
// explicit existence checks before the batch is sent. That keeps the
// append-only contract identical to the in-memory store at the cost of
// one count query per inserted candle.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// Insert adds a single candle. Returns ErrDuplicateKey if (symbol, timestamp)
// exists.
func (s *CandleStore) Insert(ctx context.Context, c *domain.Candle) error {
	return s.InsertBulk(ctx, []*domain.Candle{c})
}

// InsertBulk adds multiple candles. Fails entire batch on duplicate
// (symbol, timestamp).
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for _, c := range candles {
		if c.Symbol == "" || c.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol      string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, c := range candles {
		k := key{c.Symbol, c.Timestamp.UnixMilli()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, c := range candles {
		exists, err := s.exists(ctx, c.Symbol, c.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, timestamp, open, high, low, close, volume, trade_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, c.Timestamp,
			c.Open, c.High, c.Low, c.Close, c.Volume,
			uint64(c.TradeCount),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves candles for a symbol within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *CandleStore) GetBySymbol(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, timestamp, open, high, low, close, volume, trade_count
		FROM candles
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query candles by symbol: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// Count returns the number of candles stored for a symbol.
func (s *CandleStore) Count(ctx context.Context, symbol string) (int64, error) {
	query := `SELECT count(*) FROM candles WHERE symbol = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, symbol).Scan(&count); err != nil {
		return 0, fmt.Errorf("count candles: %w", err)
	}
	return int64(count), nil
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, symbol string, ts time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE symbol = ? AND timestamp = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, ts).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanCandles scans multiple rows into a slice of Candle.
func scanCandles(rows chRows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle
		var tradeCount uint64

		err := rows.Scan(
			&c.Symbol, &c.Timestamp,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
			&tradeCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.TradeCount = int(tradeCount)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
