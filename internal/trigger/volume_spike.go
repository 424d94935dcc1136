package trigger

import (
	"time"

	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
	"volharvest/internal/window"
)

// VolumeSpike fires when the volume traded in the current window reaches
// a multiple of the historical per-window average. The baseline covers
// the lookback periods immediately preceding the current window, so the
// spike itself never inflates its own reference.
type VolumeSpike struct {
	symbol     string
	multiplier decimal.Decimal
	volumes    *window.Volume

	fired     bool
	lastFired time.Time
}

// NewVolumeSpike creates the detector for one symbol.
func NewVolumeSpike(symbol string, multiplier decimal.Decimal) *VolumeSpike {
	return &VolumeSpike{
		symbol:     symbol,
		multiplier: multiplier,
		volumes:    window.NewVolume(VolumeSpikeWindow, VolumeSpikeLookback),
	}
}

// OnTrade feeds one tick's volume and returns a signal when the current
// window runs hot against the baseline outside the cooldown. A missing
// or zero baseline never fires: with no history there is nothing to
// spike against.
func (v *VolumeSpike) OnTrade(volume decimal.Decimal, ts time.Time) *domain.TriggerSignal {
	v.volumes.AddVolume(volume, ts)

	current, ok := v.volumes.Total(ts)
	if !ok {
		return nil
	}
	base, ok := v.volumes.Average(VolumeSpikeLookback, ts.Add(-VolumeSpikeWindow))
	if !ok || !base.IsPositive() {
		return nil
	}

	ratio := current.Div(base)
	if ratio.LessThan(v.multiplier) {
		return nil
	}
	if onCooldown(v.fired, v.lastFired, ts, VolumeSpikeCooldown) {
		return nil
	}

	v.fired = true
	v.lastFired = ts
	return &domain.TriggerSignal{
		Kind:      domain.TriggerVolumeSpike,
		Strength:  strength(ratio, v.multiplier),
		Timestamp: ts,
		Symbol:    v.symbol,
		Metadata: map[string]string{
			"volume_ratio":   ratio.String(),
			"current_volume": current.String(),
			"average_volume": base.String(),
		},
	}
}
