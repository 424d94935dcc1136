package backtest

import (
	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
)

var bpsDenominator = decimal.NewFromInt(10000)

// CostModel applies the execution cost assumptions to simulated fills.
// Fills themselves book at the signal price; slippage and fees accrue as
// separate ledger columns so a report can show gross performance next to
// what the costs consumed.
type CostModel struct {
	slippageBps decimal.Decimal
	feeBps      decimal.Decimal
}

// NewCostModel returns a model charging the given slippage and taker fee,
// both in basis points of notional per side.
func NewCostModel(slippageBps, feeBps decimal.Decimal) *CostModel {
	return &CostModel{slippageBps: slippageBps, feeBps: feeBps}
}

// Slippage returns the adverse execution cost of one fill at the given
// price and quantity.
func (c *CostModel) Slippage(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity).Mul(c.slippageBps).Div(bpsDenominator)
}

// Fee returns the taker fee of one fill at the given price and quantity.
func (c *CostModel) Fee(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity).Mul(c.feeBps).Div(bpsDenominator)
}

// FundingTransfer returns the funding payment for holding a position of the
// given side and notional through one funding timestamp. Positive values are
// costs: longs pay positive rates, shorts receive them.
func (c *CostModel) FundingTransfer(rate decimal.Decimal, side domain.PositionSide, notional decimal.Decimal) decimal.Decimal {
	transfer := rate.Mul(notional)
	if side == domain.PositionSideShort {
		return transfer.Neg()
	}
	return transfer
}
