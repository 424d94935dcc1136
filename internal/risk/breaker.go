package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

var bpsPerUnit = decimal.NewFromInt(10000)

// CircuitBreaker halts new entries after a run of consecutive losing trades.
// Once tripped it stays paused for a fixed duration and un-pauses lazily on
// the next IsPaused check. It is not safe for concurrent use on its own; the
// Manager's lock is the synchronization boundary.
type CircuitBreaker struct {
	maxConsecutiveLosses int
	pauseDuration        time.Duration
	slippageThresholdBps decimal.Decimal

	consecutiveLosses int
	paused            bool
	pausedSince       time.Time
}

// NewCircuitBreaker returns a breaker that trips after maxConsecutiveLosses
// losing trades and pauses trading for pauseDuration.
func NewCircuitBreaker(maxConsecutiveLosses int, pauseDuration time.Duration, slippageThresholdBps decimal.Decimal) *CircuitBreaker {
	return &CircuitBreaker{
		maxConsecutiveLosses: maxConsecutiveLosses,
		pauseDuration:        pauseDuration,
		slippageThresholdBps: slippageThresholdBps,
	}
}

// RecordOutcome feeds a closed-trade result to the breaker. A profitable
// trade resets the loss streak; a losing trade extends it and trips the
// breaker when the streak reaches the configured maximum.
func (b *CircuitBreaker) RecordOutcome(profitable bool, now time.Time) {
	if profitable {
		b.consecutiveLosses = 0
		return
	}

	b.consecutiveLosses++
	if b.consecutiveLosses >= b.maxConsecutiveLosses {
		b.Trip(now)
	}
}

// Trip pauses trading immediately and resets the loss streak so the streak
// restarts clean after the pause expires.
func (b *CircuitBreaker) Trip(now time.Time) {
	b.paused = true
	b.pausedSince = now
	b.consecutiveLosses = 0
}

// IsPaused reports whether trading is currently halted. The pause expires
// lazily: the first check after pauseDuration has elapsed flips the breaker
// back to active.
func (b *CircuitBreaker) IsPaused(now time.Time) bool {
	if b.paused && now.Sub(b.pausedSince) > b.pauseDuration {
		b.paused = false
	}
	return b.paused
}

// ConsecutiveLosses returns the current loss streak length.
func (b *CircuitBreaker) ConsecutiveLosses() int {
	return b.consecutiveLosses
}

// CheckSlippage reports whether a fill at actual is acceptably close to the
// expected price: |actual-expected| / expected in basis points must not
// exceed the configured threshold. A non-positive expected price is rejected.
func (b *CircuitBreaker) CheckSlippage(expected, actual decimal.Decimal) bool {
	if !expected.IsPositive() {
		return false
	}
	slippageBps := actual.Sub(expected).Abs().Div(expected).Mul(bpsPerUnit)
	return slippageBps.LessThanOrEqual(b.slippageThresholdBps)
}
