package window

import (
	"time"

	"github.com/shopspring/decimal"
)

// Volume tracks per-trade volumes for rolling totals and for historical
// per-period averages used as a spike baseline. The ring retains enough
// samples to answer Average queries up to lookback periods deep at the
// usual one-sample-per-second budget.
type Volume struct {
	window   time.Duration
	lookback int
	samples  *Ring[sample]
}

// NewVolume creates a volume window over the given duration, retaining
// history for Average queries up to lookback periods.
func NewVolume(window time.Duration, lookback int) *Volume {
	if lookback < 1 {
		lookback = 1
	}
	return &Volume{
		window:   window,
		lookback: lookback,
		samples:  NewRing[sample](ringCapacity(window, lookback+1)),
	}
}

// Window returns the configured period duration.
func (v *Volume) Window() time.Duration {
	return v.window
}

// AddVolume records one tick's volume.
func (v *Volume) AddVolume(volume decimal.Decimal, ts time.Time) {
	v.samples.Push(sample{volume: volume, ts: ts})
}

// Total returns the summed volume over (asOf-window, asOf]. An empty
// window totals zero; the bool mirrors the VWAP contract and is false
// only when no samples fall in range.
func (v *Volume) Total(asOf time.Time) (decimal.Decimal, bool) {
	cutoff := asOf.Add(-v.window)
	total := decimal.Zero
	seen := false
	v.samples.Each(func(s sample) bool {
		if !s.ts.After(cutoff) || s.ts.After(asOf) {
			return true
		}
		total = total.Add(s.volume)
		seen = true
		return true
	})
	return total, seen
}

// Average returns the mean per-period volume over the given number of
// contiguous periods ending at asOf. Period i covers
// (asOf-(i+1)*window, asOf-i*window]; each period is summed
// independently and periods with no samples contribute zero, so thin
// history drags the baseline down instead of hiding it. The bool is
// false only when periods is not positive or no period holds a sample.
func (v *Volume) Average(periods int, asOf time.Time) (decimal.Decimal, bool) {
	if periods <= 0 {
		return decimal.Decimal{}, false
	}

	totals := make([]decimal.Decimal, periods)
	for i := range totals {
		totals[i] = decimal.Zero
	}
	oldest := asOf.Add(-time.Duration(periods) * v.window)
	seen := false
	v.samples.Each(func(s sample) bool {
		if !s.ts.After(oldest) || s.ts.After(asOf) {
			return true
		}
		// Integer division of the age floors to the covering period
		// index. A sample sitting exactly on a period boundary lands
		// in the older period, matching that period's inclusive upper
		// edge under the half-open convention.
		idx := int(asOf.Sub(s.ts) / v.window)
		if idx >= 0 && idx < periods {
			totals[idx] = totals[idx].Add(s.volume)
			seen = true
		}
		return true
	})
	if !seen {
		return decimal.Decimal{}, false
	}

	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum.Div(decimal.NewFromInt(int64(periods))), true
}
