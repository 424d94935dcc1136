package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TriggerKind identifies which detector produced a trigger signal.
type TriggerKind string

const (
	TriggerPriceDeviation     TriggerKind = "price_deviation"
	TriggerVolumeSpike        TriggerKind = "volume_spike"
	TriggerLiquidationCluster TriggerKind = "liquidation_cluster"
)

// String returns the string representation of TriggerKind.
func (k TriggerKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerPriceDeviation, TriggerVolumeSpike, TriggerLiquidationCluster:
		return true
	}
	return false
}

// TriggerSignal is a typed, strength-scored event emitted by a detector
// at the moment its threshold condition is crossed. Immutable; retained
// in the trigger engine's bounded history.
type TriggerSignal struct {
	Kind      TriggerKind
	Strength  decimal.Decimal // confidence in [0, 1]; 0.5 at threshold, 1.0 at 2x
	Timestamp time.Time
	Symbol    string
	Metadata  map[string]string // detector-specific context (deviation, vwap, volume_ratio, ...)
}

// Meta returns the metadata value for key, or "" when absent.
func (s *TriggerSignal) Meta(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// SignalAction describes what a trade signal instructs the executor to do.
type SignalAction string

const (
	ActionEnter      SignalAction = "enter"
	ActionExit       SignalAction = "exit"
	ActionStopLoss   SignalAction = "stop_loss"
	ActionTakeProfit SignalAction = "take_profit"
)

// String returns the string representation of SignalAction.
func (a SignalAction) String() string {
	return string(a)
}

// IsExit reports whether the action closes an open position.
func (a SignalAction) IsExit() bool {
	return a == ActionExit || a == ActionStopLoss || a == ActionTakeProfit
}

// TradeSignal is an ephemeral entry/exit instruction produced by a strategy.
// Not retained after execution.
type TradeSignal struct {
	Symbol    string
	Strategy  StrategyType
	Side      PositionSide
	Action    SignalAction
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp time.Time
	Reason    string
	Metadata  map[string]string
}
