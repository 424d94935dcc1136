// Package trigger detects short-horizon market dislocations on a per-symbol
// trade and liquidation stream. Three detectors run side by side: price
// deviation from the 30 minute VWAP, current-window volume spikes against a
// historical baseline, and clustered liquidation flow. Each detector rates
// its own firings on a shared strength scale and enforces a per-detector
// cooldown so one sustained dislocation cannot flood downstream consumers.
package trigger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Detector defaults. Thresholds are tunable through Config; windows,
// lookback depth and cooldowns are fixed characteristics of each detector.
const (
	PriceDeviationWindow   = 30 * time.Minute
	PriceDeviationCooldown = 60 * time.Second

	VolumeSpikeWindow   = 3 * time.Minute
	VolumeSpikeLookback = 10
	VolumeSpikeCooldown = 180 * time.Second

	LiquidationWindow   = 3 * time.Minute
	LiquidationCooldown = 180 * time.Second

	// HistoryLimit bounds the engine's retained signal history.
	HistoryLimit = 1000
)

// Config holds the tunable detector thresholds.
type Config struct {
	// PriceDeviationThreshold is the fractional VWAP deviation that
	// fires the price detector, e.g. 0.01 for one percent.
	PriceDeviationThreshold decimal.Decimal
	// VolumeMultiplier is the current/baseline volume ratio that fires
	// the spike detector.
	VolumeMultiplier decimal.Decimal
	// LiquidationMinSum is the windowed liquidation notional that fires
	// the cluster detector, in quote currency.
	LiquidationMinSum decimal.Decimal
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		PriceDeviationThreshold: decimal.NewFromFloat(0.01),
		VolumeMultiplier:        decimal.NewFromInt(3),
		LiquidationMinSum:       decimal.NewFromInt(100000),
	}
}

var two = decimal.NewFromInt(2)

// strength maps a detector ratio onto the shared [0,1] scale:
// min(ratio/threshold, 2) / 2. A firing at exactly its threshold scores
// 0.5 and the scale saturates at twice the threshold, so strengths are
// comparable across detectors.
func strength(ratio, threshold decimal.Decimal) decimal.Decimal {
	if !threshold.IsPositive() {
		return decimal.Zero
	}
	r := ratio.Div(threshold)
	if r.GreaterThan(two) {
		r = two
	}
	if r.IsNegative() {
		r = decimal.Zero
	}
	return r.Div(two)
}

// onCooldown reports whether a detector that last fired at lastFired is
// still suppressed at now. The boundary instant is open: a detector may
// fire again exactly one cooldown after its last signal.
func onCooldown(fired bool, lastFired, now time.Time, cooldown time.Duration) bool {
	return fired && now.Sub(lastFired) < cooldown
}
