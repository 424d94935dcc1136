package trigger

import (
	"testing"
	"time"

	"volharvest/internal/domain"
)

// seedVolumeHistory feeds one 1000-volume tick into each of the ten
// periods preceding the window that ends at t0. Warmup ticks may fire
// while the baseline is still thin; callers ignore those signals.
func seedVolumeHistory(v *VolumeSpike) {
	for i := 0; i < 10; i++ {
		ts := t0.Add(-time.Duration(10-i)*VolumeSpikeWindow - 90*time.Second)
		v.OnTrade(d("1000"), ts)
	}
}

func TestVolumeSpikeFiresAtFiveTimesBaseline(t *testing.T) {
	v := NewVolumeSpike("BTC-USDT-PERP", d("3"))
	seedVolumeHistory(v)

	// Ten periods of 1000, then 5000 in the current window: ratio 5.
	s := v.OnTrade(d("5000"), t0)
	if s == nil {
		t.Fatal("no signal at 5x baseline with 3x multiplier")
	}

	if s.Kind != domain.TriggerVolumeSpike {
		t.Errorf("Kind = %s, want %s", s.Kind, domain.TriggerVolumeSpike)
	}
	if got := s.Meta("volume_ratio"); got != "5" {
		t.Errorf("volume_ratio = %q, want 5", got)
	}
	if got := s.Meta("current_volume"); got != "5000" {
		t.Errorf("current_volume = %q, want 5000", got)
	}
	if got := s.Meta("average_volume"); got != "1000" {
		t.Errorf("average_volume = %q, want 1000", got)
	}
	want := d("5").Div(d("3")).Div(d("2"))
	if !s.Strength.Equal(want) {
		t.Errorf("Strength = %s, want %s (about 0.833)", s.Strength, want)
	}
}

func TestVolumeSpikeBelowMultiplier(t *testing.T) {
	v := NewVolumeSpike("BTC-USDT-PERP", d("3"))
	seedVolumeHistory(v)

	if s := v.OnTrade(d("2000"), t0); s != nil {
		t.Fatalf("signal at 2x baseline with 3x multiplier: %+v", s)
	}
}

func TestVolumeSpikeNoBaselineNeverFires(t *testing.T) {
	v := NewVolumeSpike("BTC-USDT-PERP", d("3"))

	// However large the burst, an absent baseline cannot spike.
	if s := v.OnTrade(d("1000000"), t0); s != nil {
		t.Fatalf("signal with no baseline history: %+v", s)
	}
}

func TestVolumeSpikeSparseHistoryDepressesBaseline(t *testing.T) {
	v := NewVolumeSpike("BTC-USDT-PERP", d("3"))
	// One tick of 100 two periods back: the other nine lookback periods
	// count as zero, so the baseline is 10.
	v.OnTrade(d("100"), t0.Add(-2*VolumeSpikeWindow+30*time.Second))

	s := v.OnTrade(d("100"), t0)
	if s == nil {
		t.Fatal("no signal; sparse history should depress the baseline")
	}
	if got := s.Meta("average_volume"); got != "10" {
		t.Errorf("average_volume = %q, want 10", got)
	}
	if got := s.Meta("volume_ratio"); got != "10" {
		t.Errorf("volume_ratio = %q, want 10", got)
	}
}

func TestVolumeSpikeCooldown(t *testing.T) {
	v := NewVolumeSpike("BTC-USDT-PERP", d("3"))
	seedVolumeHistory(v)

	if s := v.OnTrade(d("5000"), t0); s == nil {
		t.Fatal("no initial signal")
	}
	if s := v.OnTrade(d("5000"), t0.Add(time.Minute)); s != nil {
		t.Fatalf("signal inside 180s cooldown: %+v", s)
	}
}
