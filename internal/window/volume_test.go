package window

import (
	"testing"
	"time"
)

func TestVolumeTotal(t *testing.T) {
	v := NewVolume(3*time.Minute, 10)
	v.AddVolume(d("10"), t0.Add(-2*time.Minute))
	v.AddVolume(d("5"), t0.Add(-1*time.Minute))
	v.AddVolume(d("7"), t0.Add(-10*time.Minute)) // outside the window

	got, ok := v.Total(t0)
	if !ok {
		t.Fatal("Total() has no value")
	}
	if !got.Equal(d("15")) {
		t.Fatalf("Total() = %s, want 15", got)
	}
}

func TestVolumeTotalEmpty(t *testing.T) {
	v := NewVolume(3*time.Minute, 10)
	if _, ok := v.Total(t0); ok {
		t.Fatal("Total() = ok with no samples")
	}

	v.AddVolume(d("10"), t0.Add(-time.Hour))
	if _, ok := v.Total(t0); ok {
		t.Fatal("Total() = ok with all samples out of range")
	}
}

func TestVolumeAverageCountsEmptyPeriods(t *testing.T) {
	window := time.Minute
	v := NewVolume(window, 10)
	// Period 0: (t0-1m, t0], one sample of 30.
	v.AddVolume(d("30"), t0.Add(-30*time.Second))
	// Period 2: (t0-3m, t0-2m], one sample of 60. Period 1 stays empty.
	v.AddVolume(d("60"), t0.Add(-150*time.Second))

	got, ok := v.Average(3, t0)
	if !ok {
		t.Fatal("Average() has no value")
	}
	// (30 + 0 + 60) / 3: the empty middle period drags the mean down.
	if !got.Equal(d("30")) {
		t.Fatalf("Average(3) = %s, want 30", got)
	}
}

func TestVolumeAveragePeriodBoundaries(t *testing.T) {
	window := time.Minute
	v := NewVolume(window, 10)
	// Exactly on the period-0/period-1 boundary: belongs to period 1.
	v.AddVolume(d("12"), t0.Add(-window))

	got, ok := v.Average(2, t0)
	if !ok {
		t.Fatal("Average() has no value")
	}
	if !got.Equal(d("6")) {
		t.Fatalf("Average(2) = %s, want 6", got)
	}

	// At one period deep the boundary sample is out of range entirely.
	if _, ok := v.Average(1, t0); ok {
		t.Fatal("Average(1) = ok, boundary sample should be excluded")
	}
}

func TestVolumeAverageMatchesSpikeBaseline(t *testing.T) {
	window := 3 * time.Minute
	v := NewVolume(window, 10)
	// Ten historical periods each holding volume 100, then a hot
	// current period of 500.
	for p := 1; p <= 10; p++ {
		ts := t0.Add(-time.Duration(p)*window - 30*time.Second)
		v.AddVolume(d("100"), ts)
	}
	v.AddVolume(d("500"), t0.Add(-time.Minute))

	// Baseline over the ten periods preceding the current one.
	base, ok := v.Average(10, t0.Add(-window))
	if !ok {
		t.Fatal("Average() has no value")
	}
	if !base.Equal(d("100")) {
		t.Fatalf("Average(10) = %s, want 100", base)
	}

	current, ok := v.Total(t0)
	if !ok {
		t.Fatal("Total() has no value")
	}
	if !current.Equal(d("500")) {
		t.Fatalf("Total() = %s, want 500", current)
	}
}

func TestVolumeAverageInvalidPeriods(t *testing.T) {
	v := NewVolume(time.Minute, 10)
	v.AddVolume(d("10"), t0)

	if _, ok := v.Average(0, t0); ok {
		t.Fatal("Average(0) = ok, want no value")
	}
	if _, ok := v.Average(-3, t0); ok {
		t.Fatal("Average(-3) = ok, want no value")
	}
}
