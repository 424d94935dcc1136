package trigger

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
)

type liquidationEvent struct {
	value decimal.Decimal
	ts    time.Time
}

// LiquidationTracker fires when forced-liquidation notional inside the
// window reaches the configured minimum sum. Events are kept in arrival
// order and evicted once they age past the window on every check.
type LiquidationTracker struct {
	symbol string
	minSum decimal.Decimal
	events []liquidationEvent

	fired     bool
	lastFired time.Time
}

// NewLiquidationTracker creates the detector for one symbol.
func NewLiquidationTracker(symbol string, minSum decimal.Decimal) *LiquidationTracker {
	return &LiquidationTracker{symbol: symbol, minSum: minSum}
}

// OnLiquidation records one liquidation and returns a signal when the
// windowed sum reaches the minimum outside the cooldown.
func (l *LiquidationTracker) OnLiquidation(value decimal.Decimal, ts time.Time) *domain.TriggerSignal {
	l.events = append(l.events, liquidationEvent{value: value, ts: ts})
	l.evict(ts)

	sum := decimal.Zero
	for _, e := range l.events {
		sum = sum.Add(e.value)
	}
	if sum.LessThan(l.minSum) {
		return nil
	}
	if onCooldown(l.fired, l.lastFired, ts, LiquidationCooldown) {
		return nil
	}

	l.fired = true
	l.lastFired = ts
	return &domain.TriggerSignal{
		Kind:      domain.TriggerLiquidationCluster,
		Strength:  strength(sum, l.minSum),
		Timestamp: ts,
		Symbol:    l.symbol,
		Metadata: map[string]string{
			"liquidation_sum":   sum.String(),
			"liquidation_count": strconv.Itoa(len(l.events)),
		},
	}
}

// WindowSum returns the liquidation notional currently inside the window
// without recording anything.
func (l *LiquidationTracker) WindowSum(asOf time.Time) decimal.Decimal {
	sum := decimal.Zero
	cutoff := asOf.Add(-LiquidationWindow)
	for _, e := range l.events {
		if e.ts.After(cutoff) && !e.ts.After(asOf) {
			sum = sum.Add(e.value)
		}
	}
	return sum
}

func (l *LiquidationTracker) evict(asOf time.Time) {
	cutoff := asOf.Add(-LiquidationWindow)
	keep := l.events[:0]
	for _, e := range l.events {
		if e.ts.After(cutoff) {
			keep = append(keep, e)
		}
	}
	l.events = keep
}
