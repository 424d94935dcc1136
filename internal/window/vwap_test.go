package window

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestVWAPWeightsByVolume(t *testing.T) {
	v := NewVWAP(30 * time.Minute)
	v.AddTrade(d("100"), d("10"), t0.Add(-2*time.Minute))
	v.AddTrade(d("110"), d("10"), t0.Add(-1*time.Minute))

	got, ok := v.VWAP(t0)
	if !ok {
		t.Fatal("VWAP() has no value")
	}
	if !got.Equal(d("105")) {
		t.Fatalf("VWAP() = %s, want 105", got)
	}
}

func TestVWAPUnevenWeights(t *testing.T) {
	v := NewVWAP(30 * time.Minute)
	v.AddTrade(d("100"), d("30"), t0.Add(-3*time.Minute))
	v.AddTrade(d("120"), d("10"), t0.Add(-1*time.Minute))

	// (100*30 + 120*10) / 40 = 105 exactly.
	got, ok := v.VWAP(t0)
	if !ok {
		t.Fatal("VWAP() has no value")
	}
	if !got.Equal(d("105")) {
		t.Fatalf("VWAP() = %s, want 105", got)
	}
}

func TestVWAPWindowBoundaries(t *testing.T) {
	window := 30 * time.Minute
	cases := []struct {
		name     string
		offset   time.Duration
		included bool
	}{
		{"inside window", -10 * time.Minute, true},
		{"exactly at as-of", 0, true},
		{"exactly at lower bound", -window, false},
		{"just inside lower bound", -window + time.Second, true},
		{"older than window", -window - time.Second, false},
		{"after as-of", time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := NewVWAP(window)
			// Anchor sample well inside the window so the aggregate
			// always has a value.
			v.AddTrade(d("100"), d("1"), t0.Add(-time.Minute))
			v.AddTrade(d("200"), d("1"), t0.Add(tc.offset))

			got, ok := v.VWAP(t0)
			if !ok {
				t.Fatal("VWAP() has no value")
			}
			want := d("100")
			if tc.included {
				want = d("150")
			}
			if !got.Equal(want) {
				t.Fatalf("VWAP() = %s, want %s", got, want)
			}
		})
	}
}

func TestVWAPEmptyWindow(t *testing.T) {
	v := NewVWAP(30 * time.Minute)

	if _, ok := v.VWAP(t0); ok {
		t.Fatal("VWAP() = ok on empty window")
	}

	v.AddTrade(d("100"), d("5"), t0.Add(-2*time.Hour))
	if _, ok := v.VWAP(t0); ok {
		t.Fatal("VWAP() = ok with all samples aged out")
	}
}

func TestVWAPZeroVolumeHasNoValue(t *testing.T) {
	v := NewVWAP(30 * time.Minute)
	v.AddTrade(d("100"), d("0"), t0.Add(-time.Minute))

	if _, ok := v.VWAP(t0); ok {
		t.Fatal("VWAP() = ok with zero summed volume, want no value")
	}
}

func TestVWAPMemoInvalidatedByTrade(t *testing.T) {
	v := NewVWAP(30 * time.Minute)
	v.AddTrade(d("100"), d("1"), t0.Add(-2*time.Minute))

	first, ok := v.VWAP(t0)
	if !ok || !first.Equal(d("100")) {
		t.Fatalf("VWAP() = %s ok=%v, want 100", first, ok)
	}

	// Same as-of, no new trades: memoized result must match a fresh
	// computation.
	again, ok := v.VWAP(t0)
	if !ok || !again.Equal(first) {
		t.Fatalf("repeated VWAP() = %s ok=%v, want %s", again, ok, first)
	}

	// A new trade invalidates the memo even for the same as-of.
	v.AddTrade(d("200"), d("1"), t0.Add(-time.Minute))
	updated, ok := v.VWAP(t0)
	if !ok || !updated.Equal(d("150")) {
		t.Fatalf("VWAP() after new trade = %s ok=%v, want 150", updated, ok)
	}
}

func TestVWAPMemoKeyedByExactAsOf(t *testing.T) {
	v := NewVWAP(30 * time.Minute)
	v.AddTrade(d("100"), d("1"), t0.Add(-29*time.Minute))
	v.AddTrade(d("200"), d("1"), t0.Add(-time.Minute))

	got, ok := v.VWAP(t0)
	if !ok || !got.Equal(d("150")) {
		t.Fatalf("VWAP(t0) = %s ok=%v, want 150", got, ok)
	}

	// A different as-of must recompute: the older sample is now out of
	// range, so a stale memo would be visible immediately.
	later, ok := v.VWAP(t0.Add(2 * time.Minute))
	if !ok || !later.Equal(d("200")) {
		t.Fatalf("VWAP(t0+2m) = %s ok=%v, want 200", later, ok)
	}
}

func TestVWAPDeviation(t *testing.T) {
	v := NewVWAP(30 * time.Minute)
	v.AddTrade(d("100"), d("1"), t0.Add(-time.Minute))

	cases := []struct {
		price string
		want  string
	}{
		{"105", "0.05"},
		{"95", "-0.05"},
		{"100", "0"},
		{"102", "0.02"},
	}
	for _, tc := range cases {
		got, ok := v.Deviation(d(tc.price), t0)
		if !ok {
			t.Fatalf("Deviation(%s) has no value", tc.price)
		}
		if !got.Equal(d(tc.want)) {
			t.Errorf("Deviation(%s) = %s, want %s", tc.price, got, tc.want)
		}
	}
}

func TestVWAPDeviationEmptyWindow(t *testing.T) {
	v := NewVWAP(30 * time.Minute)
	if _, ok := v.Deviation(d("100"), t0); ok {
		t.Fatal("Deviation() = ok on empty window")
	}
}

func TestVWAPDeterministicAcrossRepeats(t *testing.T) {
	build := func() *VWAP {
		v := NewVWAP(30 * time.Minute)
		for i := 0; i < 50; i++ {
			price := decimal.NewFromInt(int64(100 + i%7))
			vol := decimal.NewFromInt(int64(1 + i%3))
			v.AddTrade(price, vol, t0.Add(time.Duration(i-50)*10*time.Second))
		}
		return v
	}

	first, ok := build().VWAP(t0)
	if !ok {
		t.Fatal("VWAP() has no value")
	}
	for i := 0; i < 5; i++ {
		got, ok := build().VWAP(t0)
		if !ok || !got.Equal(first) {
			t.Fatalf("run %d: VWAP() = %s ok=%v, want %s", i, got, ok, first)
		}
	}
}
