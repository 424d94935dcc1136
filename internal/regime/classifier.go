// Package regime is a heuristic market-condition gate. It stands in for an
// external assessor: entries already justified by triggers are vetoed when
// the tape looks like forced-liquidation noise or a headline event rather
// than the dislocations the strategies are built for.
package regime

import (
	"fmt"
	"time"

	"volharvest/internal/domain"
	"volharvest/internal/window"

	"github.com/shopspring/decimal"
)

// recentTradeCapacity bounds how many trades feed the volatility estimate.
const recentTradeCapacity = 256

// Config sets the classifier thresholds.
type Config struct {
	// LiquidationVolumeThreshold is the windowed liquidation notional above
	// which the tape is classified as liquidation noise.
	LiquidationVolumeThreshold decimal.Decimal

	// VolatilitySpikeThreshold is the recent (max-min)/mean price ratio above
	// which the tape is classified as a volatility spike.
	VolatilitySpikeThreshold decimal.Decimal

	// ConfidenceThreshold is the minimum assessment confidence required
	// before a classification may veto an entry.
	ConfidenceThreshold decimal.Decimal
}

// DefaultConfig returns the stock thresholds: 500k liquidation notional,
// 5% price range, 0.65 veto confidence.
func DefaultConfig() Config {
	return Config{
		LiquidationVolumeThreshold: decimal.NewFromInt(500000),
		VolatilitySpikeThreshold:   decimal.NewFromFloat(0.05),
		ConfidenceThreshold:        decimal.NewFromFloat(0.65),
	}
}

// Observation carries the evidence the classifier cannot derive from the
// trade tape itself.
type Observation struct {
	// LiquidationSum is the current windowed liquidation notional for the
	// symbol, as tracked by the trigger engine.
	LiquidationSum decimal.Decimal

	// HeadlinePresent flags an active headline event; set by the caller
	// (manual flag or an external feed).
	HeadlinePresent bool
}

// Classifier turns recent trades plus caller-supplied evidence into a regime
// assessment. Not safe for concurrent use; the caller serializes per symbol.
type Classifier struct {
	cfg    Config
	trades *window.Ring[domain.Trade]
}

// NewClassifier returns a Classifier with the given thresholds.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:    cfg,
		trades: window.NewRing[domain.Trade](recentTradeCapacity),
	}
}

// AddTrade records a trade for the volatility estimate. Oldest trades fall
// off once the ring is full.
func (c *Classifier) AddTrade(t domain.Trade) {
	c.trades.Push(t)
}

// Classify assesses the current regime for symbol at price. Precedence:
// headline risk, then liquidation noise, then volatility spike, then neutral.
// Confidence scales with how far the evidence exceeds its threshold.
func (c *Classifier) Classify(now time.Time, symbol string, price decimal.Decimal, obs Observation) domain.RegimeAssessment {
	volatility := c.priceVolatility()

	a := domain.RegimeAssessment{
		Timestamp:       now,
		Symbol:          symbol,
		Regime:          domain.RegimeNeutral,
		Confidence:      decimal.NewFromFloat(0.6),
		HeadlinePresent: obs.HeadlinePresent,
		PriceVolatility: volatility,
		Indicators: map[string]string{
			"price":           price.String(),
			"trade_count":     fmt.Sprintf("%d", c.trades.Len()),
			"volatility":      volatility.String(),
			"liquidation_sum": obs.LiquidationSum.String(),
		},
	}

	switch {
	case obs.HeadlinePresent:
		a.Regime = domain.RegimeHeadlineRisk
		a.Confidence = decimal.NewFromFloat(0.9)

	case c.cfg.LiquidationVolumeThreshold.IsPositive() &&
		obs.LiquidationSum.GreaterThanOrEqual(c.cfg.LiquidationVolumeThreshold):
		a.Regime = domain.RegimeLiquidationNoise
		a.VolumeAnomaly = true
		a.Confidence = scaledConfidence(obs.LiquidationSum.Div(c.cfg.LiquidationVolumeThreshold))

	case c.cfg.VolatilitySpikeThreshold.IsPositive() &&
		volatility.GreaterThanOrEqual(c.cfg.VolatilitySpikeThreshold):
		a.Regime = domain.RegimeVolatilitySpike
		a.Confidence = scaledConfidence(volatility.Div(c.cfg.VolatilitySpikeThreshold))
	}

	return a
}

// ShouldTrade reports whether an entry for the given strategy is permitted
// under the assessment. Only high-confidence assessments veto: liquidation
// noise blocks mean reversion (cascade prints poison the VWAP reference) and
// headline risk blocks momentum (news moves do not trail cleanly). Neutral
// never blocks.
func (c *Classifier) ShouldTrade(a domain.RegimeAssessment, strategy domain.StrategyType) bool {
	if a.Confidence.LessThan(c.cfg.ConfidenceThreshold) {
		return true
	}

	switch a.Regime {
	case domain.RegimeLiquidationNoise:
		return strategy != domain.StrategyMeanReversion
	case domain.RegimeHeadlineRisk:
		return strategy != domain.StrategyMomentum
	}
	return true
}

// priceVolatility returns (max-min)/mean over the recent trade ring, zero
// when fewer than two trades are held.
func (c *Classifier) priceVolatility() decimal.Decimal {
	if c.trades.Len() < 2 {
		return decimal.Zero
	}

	var minPrice, maxPrice, sum decimal.Decimal
	first := true
	c.trades.Each(func(t domain.Trade) bool {
		if first {
			minPrice, maxPrice = t.Price, t.Price
			first = false
		} else {
			if t.Price.LessThan(minPrice) {
				minPrice = t.Price
			}
			if t.Price.GreaterThan(maxPrice) {
				maxPrice = t.Price
			}
		}
		sum = sum.Add(t.Price)
		return true
	})

	mean := sum.Div(decimal.NewFromInt(int64(c.trades.Len())))
	if !mean.IsPositive() {
		return decimal.Zero
	}
	return maxPrice.Sub(minPrice).Div(mean)
}

var (
	confidenceBase = decimal.NewFromFloat(0.5)
	confidenceGain = decimal.NewFromFloat(0.2)
	confidenceCap  = decimal.NewFromFloat(0.95)
)

// scaledConfidence maps an evidence ratio (>= 1 when firing) to a confidence:
// 0.7 at the threshold, rising 0.2 per threshold multiple, capped at 0.95.
func scaledConfidence(ratio decimal.Decimal) decimal.Decimal {
	conf := confidenceBase.Add(confidenceGain.Mul(ratio))
	if conf.GreaterThan(confidenceCap) {
		return confidenceCap
	}
	return conf
}
