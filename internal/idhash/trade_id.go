package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"volharvest/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|symbol|strategy|entry_time_ms)
// Returns hex-encoded hash (64 characters).
//
// The same entry replayed in the same run always hashes to the same ID, so
// re-persisting a backtest is idempotent at the storage layer.
func ComputeTradeID(
	runID string,
	symbol string,
	strategy domain.StrategyType,
	entryTime time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		runID,
		symbol,
		strategy,
		entryTime.UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
