package risk

import (
	"fmt"
	"time"

	"volharvest/internal/domain"
	"volharvest/internal/window"

	"github.com/shopspring/decimal"
)

// meanReversion fades price dislocations: when a price-deviation trigger
// fires it enters against the move and waits for price to revert to the
// 30-minute VWAP.
type meanReversion struct {
	sizer  *Sizer
	params Params
}

func newMeanReversion(sizer *Sizer, params Params) *meanReversion {
	return &meanReversion{sizer: sizer, params: params}
}

func (m *meanReversion) Type() domain.StrategyType {
	return domain.StrategyMeanReversion
}

// Entry enters opposite the deviation direction: price above VWAP opens a
// short, price below opens a long. Requires a price_deviation trigger and a
// populated 30-minute VWAP window.
func (m *meanReversion) Entry(symbol string, price decimal.Decimal, vwaps VWAPs, triggers []domain.TriggerSignal, now time.Time) *domain.TradeSignal {
	vwap, ok := vwaps[window.Timeframe30Min]
	if !ok || !price.IsPositive() {
		return nil
	}

	trig := firstTrigger(triggers, domain.TriggerPriceDeviation)
	if trig == nil {
		return nil
	}

	var side domain.PositionSide
	switch {
	case price.GreaterThan(vwap):
		side = domain.PositionSideShort
	case price.LessThan(vwap):
		side = domain.PositionSideLong
	default:
		return nil
	}

	quantity := m.sizer.Size(price, domain.StrategyMeanReversion, trig.Strength)
	if !quantity.IsPositive() {
		return nil
	}

	return &domain.TradeSignal{
		Symbol:    symbol,
		Strategy:  domain.StrategyMeanReversion,
		Side:      side,
		Action:    domain.ActionEnter,
		Price:     price,
		Quantity:  quantity,
		Timestamp: now,
		Reason:    fmt.Sprintf("mean reversion: price %s deviates from 30min VWAP %s", price, vwap),
		Metadata: map[string]string{
			"vwap_30min": vwap.String(),
			"deviation":  trig.Meta("deviation"),
			"strength":   trig.Strength.String(),
		},
	}
}

// Exit checks, in priority order: reversion to the 30-minute VWAP
// (take profit), position timeout, stop-loss cross. The first matching
// condition wins.
func (m *meanReversion) Exit(pos *domain.Position, price decimal.Decimal, vwaps VWAPs, now time.Time) *domain.TradeSignal {
	if vwap, ok := vwaps[window.Timeframe30Min]; ok {
		touched := (pos.Side == domain.PositionSideLong && price.GreaterThanOrEqual(vwap)) ||
			(pos.Side == domain.PositionSideShort && price.LessThanOrEqual(vwap))
		if touched {
			reason := fmt.Sprintf("VWAP touch: price %s reached 30min VWAP %s", price, vwap)
			return closeSignal(pos, domain.ActionTakeProfit, price, now, reason)
		}
	}

	if pos.Age(now) > meanReversionTimeout {
		reason := fmt.Sprintf("timeout: held %s without reversion", pos.Age(now).Round(time.Minute))
		return closeSignal(pos, domain.ActionExit, price, now, reason)
	}

	stopped := (pos.Side == domain.PositionSideLong && price.LessThanOrEqual(pos.StopLossPrice)) ||
		(pos.Side == domain.PositionSideShort && price.GreaterThanOrEqual(pos.StopLossPrice))
	if stopped {
		reason := fmt.Sprintf("stop loss: price %s crossed stop %s", price, pos.StopLossPrice)
		return closeSignal(pos, domain.ActionStopLoss, price, now, reason)
	}

	return nil
}
