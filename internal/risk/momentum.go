package risk

import (
	"fmt"
	"time"

	"volharvest/internal/domain"
	"volharvest/internal/window"

	"github.com/shopspring/decimal"
)

// momentum rides volume-confirmed moves: a volume-spike trigger plus price
// displaced from the 4-hour VWAP opens a position in the direction of the
// move. There is no profit target; the position trails a stop anchored to
// the 4-hour VWAP until the move gives back or the hold limit expires.
type momentum struct {
	sizer  *Sizer
	params Params
}

func newMomentum(sizer *Sizer, params Params) *momentum {
	return &momentum{sizer: sizer, params: params}
}

func (m *momentum) Type() domain.StrategyType {
	return domain.StrategyMomentum
}

// Entry requires a volume_spike trigger and price displaced beyond the
// pullback threshold from the 4-hour VWAP; the side follows the displacement
// direction. When the 3-minute VWAP is known, price must sit on the same side
// of it, so entries are skipped mid-pullback.
func (m *momentum) Entry(symbol string, price decimal.Decimal, vwaps VWAPs, triggers []domain.TriggerSignal, now time.Time) *domain.TradeSignal {
	vwap4h, ok := vwaps[window.Timeframe4Hour]
	if !ok || !price.IsPositive() || !vwap4h.IsPositive() {
		return nil
	}

	trig := firstTrigger(triggers, domain.TriggerVolumeSpike)
	if trig == nil {
		return nil
	}

	displacement := price.Sub(vwap4h).Div(vwap4h)

	var side domain.PositionSide
	switch {
	case displacement.GreaterThan(m.params.MomentumPullbackPct):
		side = domain.PositionSideLong
	case displacement.LessThan(m.params.MomentumPullbackPct.Neg()):
		side = domain.PositionSideShort
	default:
		return nil
	}

	if vwap3m, ok := vwaps[window.Timeframe3Min]; ok {
		consistent := (side == domain.PositionSideLong && price.GreaterThan(vwap3m)) ||
			(side == domain.PositionSideShort && price.LessThan(vwap3m))
		if !consistent {
			return nil
		}
	}

	quantity := m.sizer.Size(price, domain.StrategyMomentum, trig.Strength)
	if !quantity.IsPositive() {
		return nil
	}

	return &domain.TradeSignal{
		Symbol:    symbol,
		Strategy:  domain.StrategyMomentum,
		Side:      side,
		Action:    domain.ActionEnter,
		Price:     price,
		Quantity:  quantity,
		Timestamp: now,
		Reason:    fmt.Sprintf("momentum: price %s displaced %s from 4hour VWAP %s on volume spike", price, displacement.StringFixed(4), vwap4h),
		Metadata: map[string]string{
			"vwap_4hour":   vwap4h.String(),
			"displacement": displacement.String(),
			"strength":     trig.Strength.String(),
		},
	}
}

// Exit first re-anchors the trailing stop to the current 4-hour VWAP, then
// checks the stop and the maximum hold period. The trailing stop only ever
// tightens; until one is established the initial stop-loss level applies.
func (m *momentum) Exit(pos *domain.Position, price decimal.Decimal, vwaps VWAPs, now time.Time) *domain.TradeSignal {
	if vwap4h, ok := vwaps[window.Timeframe4Hour]; ok && vwap4h.IsPositive() {
		m.updateTrailingStop(pos, vwap4h)
	}

	stop := pos.TrailingStopPrice
	if stop.IsZero() {
		stop = pos.StopLossPrice
	}
	stopped := (pos.Side == domain.PositionSideLong && price.LessThanOrEqual(stop)) ||
		(pos.Side == domain.PositionSideShort && price.GreaterThanOrEqual(stop))
	if stopped {
		reason := fmt.Sprintf("stop loss: price %s crossed stop %s", price, stop)
		return closeSignal(pos, domain.ActionStopLoss, price, now, reason)
	}

	maxHold := pos.MaxHoldTime
	if maxHold <= 0 {
		maxHold = momentumMaxHold
	}
	if pos.Age(now) > maxHold {
		reason := fmt.Sprintf("Maximum hold period reached after %s", pos.Age(now).Round(time.Minute))
		return closeSignal(pos, domain.ActionExit, price, now, reason)
	}

	return nil
}

// updateTrailingStop recomputes the stop from the current 4-hour VWAP and
// applies it only if tighter than the existing one: higher for longs, lower
// for shorts.
func (m *momentum) updateTrailingStop(pos *domain.Position, vwap4h decimal.Decimal) {
	offset := vwap4h.Mul(m.params.TrailingStopPct)

	if pos.Side == domain.PositionSideLong {
		candidate := vwap4h.Sub(offset)
		if pos.TrailingStopPrice.IsZero() || candidate.GreaterThan(pos.TrailingStopPrice) {
			pos.TrailingStopPrice = candidate
		}
		return
	}

	candidate := vwap4h.Add(offset)
	if pos.TrailingStopPrice.IsZero() || candidate.LessThan(pos.TrailingStopPrice) {
		pos.TrailingStopPrice = candidate
	}
}
