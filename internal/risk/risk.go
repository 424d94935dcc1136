// Package risk decides when and how much capital deploys. A Manager owns the
// open-position table (at most one position per symbol), a per-symbol cooldown
// list and a circuit breaker; strategies generate entry and exit signals which
// the Manager executes against that state. All money math uses
// shopspring/decimal and all methods take caller-supplied time, so behavior is
// identical live and in backtests.
package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fixed strategy behavior. These are properties of the strategies themselves,
// not deployment knobs, so they are not part of Params.
var (
	// momentumLeverage is the fixed leverage for momentum entries. Momentum
	// positions run without a profit target, so they size below the
	// mean-reversion maximum.
	momentumLeverage = decimal.NewFromInt(2)

	// meanReversionTimeout bounds how long a mean-reversion position waits
	// for the reversion to play out.
	meanReversionTimeout = 36 * time.Hour

	// momentumMaxHold bounds momentum positions that never hit the trailing stop.
	momentumMaxHold = 72 * time.Hour
)

// Params configures a Manager and the strategies it drives.
type Params struct {
	// BaseEquity is the account equity position sizing is computed against.
	BaseEquity decimal.Decimal

	// MaxEquityPerPosition caps the equity fraction a single position may
	// commit, e.g. 0.25 for a quarter of equity.
	MaxEquityPerPosition decimal.Decimal

	// MaxLeverage is the leverage applied to full-strength mean-reversion
	// entries.
	MaxLeverage decimal.Decimal

	// StopLossPct is the fractional distance of the initial stop from the
	// entry price, e.g. 0.01 for 1%.
	StopLossPct decimal.Decimal

	// TrailingStopPct is the fractional offset of the momentum trailing stop
	// from the extended VWAP, e.g. 0.009.
	TrailingStopPct decimal.Decimal

	// MomentumPullbackPct is the minimum fractional displacement of price
	// from the extended VWAP before a momentum entry is considered.
	MomentumPullbackPct decimal.Decimal

	// Cooldown is how long a symbol stays untradeable after a stop-loss exit.
	Cooldown time.Duration

	// MaxConsecutiveLosses trips the circuit breaker.
	MaxConsecutiveLosses int

	// PauseDuration is how long the circuit breaker pauses trading once tripped.
	PauseDuration time.Duration

	// SlippageThresholdBps is the maximum acceptable fill slippage in basis
	// points before an execution is rejected.
	SlippageThresholdBps decimal.Decimal
}

// DefaultParams returns the stock configuration: quarter-equity positions at
// 3x leverage against 100k equity, 1% stops, 0.9% trailing offset, 6h
// stop-loss cooldown and a 3-loss / 2h circuit breaker at 15 bps slippage.
func DefaultParams() Params {
	return Params{
		BaseEquity:           decimal.NewFromInt(100000),
		MaxEquityPerPosition: decimal.NewFromFloat(0.25),
		MaxLeverage:          decimal.NewFromInt(3),
		StopLossPct:          decimal.NewFromFloat(0.01),
		TrailingStopPct:      decimal.NewFromFloat(0.009),
		MomentumPullbackPct:  decimal.NewFromFloat(0.005),
		Cooldown:             6 * time.Hour,
		MaxConsecutiveLosses: 3,
		PauseDuration:        2 * time.Hour,
		SlippageThresholdBps: decimal.NewFromInt(15),
	}
}
