package trigger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
	"volharvest/internal/window"
)

// Engine runs all three detectors for one symbol and keeps a bounded
// history of everything they fire. Safe for concurrent use; stream
// handlers and status queries may hit it from different goroutines.
type Engine struct {
	mu sync.Mutex

	symbol   string
	priceDev *PriceDeviation
	volSpike *VolumeSpike
	liq      *LiquidationTracker
	history  *window.Ring[domain.TriggerSignal]
}

// NewEngine creates the detector set for one symbol.
func NewEngine(symbol string, cfg Config) *Engine {
	return &Engine{
		symbol:   symbol,
		priceDev: NewPriceDeviation(symbol, cfg.PriceDeviationThreshold),
		volSpike: NewVolumeSpike(symbol, cfg.VolumeMultiplier),
		liq:      NewLiquidationTracker(symbol, cfg.LiquidationMinSum),
		history:  window.NewRing[domain.TriggerSignal](HistoryLimit),
	}
}

// Symbol returns the symbol this engine watches.
func (e *Engine) Symbol() string {
	return e.symbol
}

// ProcessTrade feeds one tick through the price-deviation and
// volume-spike detectors and returns whatever fired, in that order.
func (e *Engine) ProcessTrade(price, volume decimal.Decimal, ts time.Time) []domain.TriggerSignal {
	e.mu.Lock()
	defer e.mu.Unlock()

	var signals []domain.TriggerSignal
	if s := e.priceDev.OnTrade(price, volume, ts); s != nil {
		signals = append(signals, *s)
	}
	if s := e.volSpike.OnTrade(volume, ts); s != nil {
		signals = append(signals, *s)
	}
	for _, s := range signals {
		e.history.Push(s)
	}
	return signals
}

// ProcessLiquidation feeds one liquidation through the cluster detector.
// Returns nil when nothing fired.
func (e *Engine) ProcessLiquidation(value decimal.Decimal, ts time.Time) *domain.TriggerSignal {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.liq.OnLiquidation(value, ts)
	if s != nil {
		e.history.Push(*s)
	}
	return s
}

// RecentSignals returns retained signals with timestamps in
// (asOf-lookback, asOf], oldest first. Signals evicted by the history
// bound are gone regardless of age.
func (e *Engine) RecentSignals(lookback time.Duration, asOf time.Time) []domain.TriggerSignal {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := asOf.Add(-lookback)
	var out []domain.TriggerSignal
	e.history.Each(func(s domain.TriggerSignal) bool {
		if s.Timestamp.After(cutoff) && !s.Timestamp.After(asOf) {
			out = append(out, s)
		}
		return true
	})
	return out
}

// SignalCounts returns per-kind counts over the same window as
// RecentSignals.
func (e *Engine) SignalCounts(lookback time.Duration, asOf time.Time) map[domain.TriggerKind]int {
	counts := make(map[domain.TriggerKind]int)
	for _, s := range e.RecentSignals(lookback, asOf) {
		counts[s.Kind]++
	}
	return counts
}

// LiquidationSum reports the liquidation notional currently inside the
// cluster detector's window, for regime assessment.
func (e *Engine) LiquidationSum(asOf time.Time) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liq.WindowSum(asOf)
}

// ClearHistory drops all retained signals. Detector state, including
// cooldowns, is untouched.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Clear()
}
