package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Regime labels the current market condition as judged by the regime gate.
type Regime string

const (
	RegimeNeutral          Regime = "neutral"
	RegimeLiquidationNoise Regime = "liquidation_noise"
	RegimeVolatilitySpike  Regime = "volatility_spike"
	RegimeHeadlineRisk     Regime = "headline_risk"
)

// String returns the string representation of Regime.
func (r Regime) String() string {
	return string(r)
}

// RegimeAssessment is one classification of market conditions for a symbol
// at a point in time, produced by the heuristic regime classifier.
type RegimeAssessment struct {
	Timestamp  time.Time
	Symbol     string
	Regime     Regime
	Confidence decimal.Decimal // in [0, 1]
	Indicators map[string]string

	HeadlinePresent bool
	VolumeAnomaly   bool
	PriceVolatility decimal.Decimal // recent range / mean price
}
