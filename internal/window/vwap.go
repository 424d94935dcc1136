package window

import (
	"time"

	"github.com/shopspring/decimal"
)

// sample is one observed trade tick retained for windowed aggregation.
type sample struct {
	price  decimal.Decimal
	volume decimal.Decimal
	ts     time.Time
}

// VWAP computes the volume-weighted average price over a sliding time
// window. Samples are held in a ring sized for roughly one trade per
// second over the window span; under sustained faster flow the oldest
// ticks are evicted first, which only ever narrows the effective window.
//
// A query at time t covers the half-open interval (t-window, t]: a tick
// stamped exactly at the lower bound is excluded, one stamped exactly at
// t is included. The most recent result is memoized per exact query
// timestamp, so repeated reads at the same as-of time between trades are
// O(1). Any new trade invalidates the memo.
type VWAP struct {
	window  time.Duration
	samples *Ring[sample]

	memoAsOf  time.Time
	memoValue decimal.Decimal
	memoOK    bool
	memoValid bool
}

// Retention budget: one sample per second across the window span.
const samplesPerSecond = 1

func ringCapacity(window time.Duration, spans int) int {
	c := int(window.Seconds()) * samplesPerSecond * spans
	if c < 64 {
		c = 64
	}
	return c
}

// NewVWAP creates a VWAP window over the given duration.
func NewVWAP(window time.Duration) *VWAP {
	return &VWAP{
		window:  window,
		samples: NewRing[sample](ringCapacity(window, 1)),
	}
}

// Window returns the configured window duration.
func (v *VWAP) Window() time.Duration {
	return v.window
}

// AddTrade records a tick and invalidates the memoized result.
// Timestamps are taken as given; out-of-order ticks within the window
// still contribute to the aggregate.
func (v *VWAP) AddTrade(price, volume decimal.Decimal, ts time.Time) {
	v.samples.Push(sample{price: price, volume: volume, ts: ts})
	v.memoValid = false
}

// VWAP returns sum(price*volume)/sum(volume) over samples in
// (asOf-window, asOf]. The second return is false when no samples fall
// in the window or their volumes sum to zero.
func (v *VWAP) VWAP(asOf time.Time) (decimal.Decimal, bool) {
	if v.memoValid && asOf.Equal(v.memoAsOf) {
		return v.memoValue, v.memoOK
	}

	cutoff := asOf.Add(-v.window)
	notional := decimal.Zero
	volume := decimal.Zero
	v.samples.Each(func(s sample) bool {
		if !s.ts.After(cutoff) || s.ts.After(asOf) {
			return true
		}
		notional = notional.Add(s.price.Mul(s.volume))
		volume = volume.Add(s.volume)
		return true
	})

	var value decimal.Decimal
	ok := volume.IsPositive()
	if ok {
		value = notional.Div(volume)
	}

	v.memoAsOf = asOf
	v.memoValue = value
	v.memoOK = ok
	v.memoValid = true
	return value, ok
}

// Deviation returns (price - vwap) / vwap as a signed fraction: positive
// when price is above the window VWAP, negative below. The second return
// is false when the window has no value.
func (v *VWAP) Deviation(price decimal.Decimal, asOf time.Time) (decimal.Decimal, bool) {
	value, ok := v.VWAP(asOf)
	if !ok || value.IsZero() {
		return decimal.Decimal{}, false
	}
	return price.Sub(value).Div(value), true
}

// Len returns the number of retained samples, including any that have
// aged out of the query window but not yet been evicted.
func (v *VWAP) Len() int {
	return v.samples.Len()
}
