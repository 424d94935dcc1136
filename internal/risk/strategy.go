package risk

import (
	"time"

	"volharvest/internal/domain"
	"volharvest/internal/window"

	"github.com/shopspring/decimal"
)

// VWAPs carries the current per-timeframe VWAP values for one symbol, as
// produced by window.MultiVWAP.AllVWAPs. A missing timeframe means that
// window holds no samples yet; strategies treat that as "not enough data"
// rather than an error.
type VWAPs map[window.Timeframe]decimal.Decimal

// Strategy is one of the two trading variants. A strategy's entry turns
// trigger signals into an "enter" trade signal; its exit decides when an open
// position it owns should close. The set of implementations is fixed: the
// Manager dispatches on Position.Strategy, so each position is managed by the
// variant that opened it for its whole life.
type Strategy interface {
	// Type identifies the variant; recorded on positions this strategy opens.
	Type() domain.StrategyType

	// Entry returns an enter signal when current conditions justify a new
	// position in symbol, or nil.
	Entry(symbol string, price decimal.Decimal, vwaps VWAPs, triggers []domain.TriggerSignal, now time.Time) *domain.TradeSignal

	// Exit returns an exit signal when pos should close, or nil. Exit may
	// mutate pos (trailing-stop tightening).
	Exit(pos *domain.Position, price decimal.Decimal, vwaps VWAPs, now time.Time) *domain.TradeSignal
}

// firstTrigger returns the first signal of the given kind, or nil. Trigger
// slices arrive oldest-first so this picks the earliest still-relevant firing.
func firstTrigger(triggers []domain.TriggerSignal, kind domain.TriggerKind) *domain.TriggerSignal {
	for i := range triggers {
		if triggers[i].Kind == kind {
			return &triggers[i]
		}
	}
	return nil
}

// closeSignal builds an exit-side TradeSignal for the full position quantity.
func closeSignal(pos *domain.Position, action domain.SignalAction, price decimal.Decimal, now time.Time, reason string) *domain.TradeSignal {
	return &domain.TradeSignal{
		Symbol:    pos.Symbol,
		Strategy:  pos.Strategy,
		Side:      pos.Side,
		Action:    action,
		Price:     price,
		Quantity:  pos.Quantity,
		Timestamp: now,
		Reason:    reason,
	}
}
