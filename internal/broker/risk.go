package broker

import (
	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

// RiskManager enforces the pre-trade cash and option margin rules of the
// simulated account.
type RiskManager struct {
	marginMultiple decimal.Decimal
}

// NewRiskManager creates a RiskManager. marginMultiple is the fraction of
// written option notional that must be backed by cash: with 0.3, one dollar
// of cash backs 1/0.3 dollars of notional.
func NewRiskManager(marginMultiple decimal.Decimal) *RiskManager {
	return &RiskManager{marginMultiple: marginMultiple}
}

// MarginMultiple returns the configured margin multiple.
func (rm *RiskManager) MarginMultiple() decimal.Decimal { return rm.marginMultiple }

// OptionBuyingPower returns the value of surplus cover shares plus
// cashAvailable / margin multiple. A cover deficit left by earlier writes is
// already reflected in cash and counts as zero.
func (rm *RiskManager) OptionBuyingPower(cover int, underlying, cashAvailable decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(max(cover, 0))).Mul(underlying).
		Add(cashAvailable.Div(rm.marginMultiple))
}

// CheckOrder decides whether an order costing cost and moving the cover
// counter by coverDelta may be placed.
func (rm *RiskManager) CheckOrder(cash, cost decimal.Decimal, cover, coverDelta int, underlying decimal.Decimal) domain.OrderStatus {
	if cost.GreaterThan(cash) {
		return domain.OrderStatusInsufficientCash
	}
	if coverDelta >= 0 {
		return domain.OrderStatusPlaced
	}
	needed := decimal.NewFromInt(int64(-coverDelta)).Mul(underlying)
	if needed.GreaterThan(rm.OptionBuyingPower(cover, underlying, cash.Sub(cost))) {
		return domain.OrderStatusInsufficientBuyingPower
	}
	return domain.OrderStatusPlaced
}

// coverDelta returns how much an option leg of qty changes the cover counter
// given the net quantity already held. Only the change in short contracts
// counts: opening a write pledges 100 shares per contract, buying it back
// releases them, and long contracts never pledge anything.
func coverDelta(held, qty int) int {
	return -(shortContracts(held+qty) - shortContracts(held)) * domain.OptionMultiplier
}

func shortContracts(net int) int {
	if net < 0 {
		return -net
	}
	return 0
}
