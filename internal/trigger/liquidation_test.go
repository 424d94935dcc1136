package trigger

import (
	"testing"
	"time"

	"volharvest/internal/domain"
)

func TestLiquidationClusterAccumulates(t *testing.T) {
	l := NewLiquidationTracker("BTC-USDT-PERP", d("100000"))

	if s := l.OnLiquidation(d("70000"), t0); s != nil {
		t.Fatalf("signal below minimum sum: %+v", s)
	}
	s := l.OnLiquidation(d("50000"), t0.Add(time.Minute))
	if s == nil {
		t.Fatal("no signal at 120000 windowed sum with 100000 minimum")
	}

	if s.Kind != domain.TriggerLiquidationCluster {
		t.Errorf("Kind = %s, want %s", s.Kind, domain.TriggerLiquidationCluster)
	}
	if got := s.Meta("liquidation_sum"); got != "120000" {
		t.Errorf("liquidation_sum = %q, want 120000", got)
	}
	if got := s.Meta("liquidation_count"); got != "2" {
		t.Errorf("liquidation_count = %q, want 2", got)
	}
	// 1.2x the minimum on the saturating scale.
	if !s.Strength.Equal(d("0.6")) {
		t.Errorf("Strength = %s, want 0.6", s.Strength)
	}
}

func TestLiquidationEvictsOutsideWindow(t *testing.T) {
	l := NewLiquidationTracker("BTC-USDT-PERP", d("100000"))

	l.OnLiquidation(d("70000"), t0)
	// Four minutes later the first event has aged out of the 3 minute
	// window; the sum restarts from the new event alone.
	if s := l.OnLiquidation(d("50000"), t0.Add(4*time.Minute)); s != nil {
		t.Fatalf("signal fired across evicted history: %+v", s)
	}

	if got := l.WindowSum(t0.Add(4 * time.Minute)); !got.Equal(d("50000")) {
		t.Errorf("WindowSum = %s, want 50000", got)
	}
}

func TestLiquidationSingleLargeEvent(t *testing.T) {
	l := NewLiquidationTracker("BTC-USDT-PERP", d("100000"))

	s := l.OnLiquidation(d("250000"), t0)
	if s == nil {
		t.Fatal("no signal for single event above minimum")
	}
	if !s.Strength.Equal(d("1")) {
		t.Errorf("Strength = %s, want 1 (2.5x saturates)", s.Strength)
	}
	if got := s.Meta("liquidation_count"); got != "1" {
		t.Errorf("liquidation_count = %q, want 1", got)
	}
}

func TestLiquidationCooldown(t *testing.T) {
	l := NewLiquidationTracker("BTC-USDT-PERP", d("100000"))

	if s := l.OnLiquidation(d("150000"), t0); s == nil {
		t.Fatal("no initial signal")
	}
	if s := l.OnLiquidation(d("150000"), t0.Add(time.Minute)); s != nil {
		t.Fatalf("signal inside 180s cooldown: %+v", s)
	}
	if s := l.OnLiquidation(d("150000"), t0.Add(3*time.Minute)); s == nil {
		t.Fatal("no signal exactly one cooldown after the last")
	}
}

func TestLiquidationWindowSumBoundaries(t *testing.T) {
	l := NewLiquidationTracker("BTC-USDT-PERP", d("100000"))
	l.OnLiquidation(d("10000"), t0.Add(-LiquidationWindow)) // exactly at the bound
	l.OnLiquidation(d("20000"), t0.Add(-time.Minute))

	if got := l.WindowSum(t0); !got.Equal(d("20000")) {
		t.Errorf("WindowSum = %s, want 20000; the bound sample is excluded", got)
	}
}
