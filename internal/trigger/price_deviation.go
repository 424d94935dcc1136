package trigger

import (
	"time"

	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
	"volharvest/internal/window"
)

// PriceDeviation fires when the traded price strays from the 30 minute
// VWAP by at least the configured fraction, in either direction. The
// detector maintains its own VWAP window from the trades it observes.
type PriceDeviation struct {
	symbol    string
	threshold decimal.Decimal
	vwap      *window.VWAP

	fired     bool
	lastFired time.Time
}

// NewPriceDeviation creates the detector for one symbol.
func NewPriceDeviation(symbol string, threshold decimal.Decimal) *PriceDeviation {
	return &PriceDeviation{
		symbol:    symbol,
		threshold: threshold,
		vwap:      window.NewVWAP(PriceDeviationWindow),
	}
}

// OnTrade feeds one tick and returns a signal when the updated deviation
// breaches the threshold outside the cooldown. The tick itself is part
// of the window it is checked against.
func (p *PriceDeviation) OnTrade(price, volume decimal.Decimal, ts time.Time) *domain.TriggerSignal {
	p.vwap.AddTrade(price, volume, ts)

	dev, ok := p.vwap.Deviation(price, ts)
	if !ok {
		return nil
	}
	if dev.Abs().LessThan(p.threshold) {
		return nil
	}
	if onCooldown(p.fired, p.lastFired, ts, PriceDeviationCooldown) {
		return nil
	}

	vwap, _ := p.vwap.VWAP(ts)
	direction := "above"
	if dev.IsNegative() {
		direction = "below"
	}
	p.fired = true
	p.lastFired = ts
	return &domain.TriggerSignal{
		Kind:      domain.TriggerPriceDeviation,
		Strength:  strength(dev.Abs(), p.threshold),
		Timestamp: ts,
		Symbol:    p.symbol,
		Metadata: map[string]string{
			"deviation": dev.String(),
			"vwap":      vwap.String(),
			"price":     price.String(),
			"direction": direction,
		},
	}
}
