// Package builtins provides built-in strategy implementations that ship with
// tyche.
package builtins

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/broker"
	"tyche/internal/domain"
	"tyche/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*BuyHold)(nil)

// BuyHold spends all available cash on the underlying whenever it holds
// nothing, then holds.
type BuyHold struct {
	strategy.Base
	symbol string
}

// NewBuyHold creates a BuyHold strategy.
func NewBuyHold() *BuyHold { return &BuyHold{} }

// Name returns "buy-hold".
func (s *BuyHold) Name() string { return "buy-hold" }

// Init records the traded symbol.
func (s *BuyHold) Init(_ context.Context, symbol string) error {
	s.symbol = symbol
	return nil
}

// OnDay buys as many whole shares as cash allows when flat.
func (s *BuyHold) OnDay(_ context.Context, _ time.Time, b broker.Broker) ([]domain.Order, error) {
	if len(b.Positions()) > 0 {
		return nil, nil
	}
	price, err := b.Quote().Price()
	if err != nil {
		return nil, err
	}
	n := sharesFor(b.StockBuyingPower(), price)
	if n == 0 {
		return nil, nil
	}
	return []domain.Order{
		domain.NewOrder(domain.Leg{Instrument: domain.Equity(s.symbol), Quantity: n}),
	}, nil
}

// sharesFor returns how many whole units of price fit in cash.
func sharesFor(cash, price decimal.Decimal) int {
	if !price.IsPositive() || !cash.IsPositive() {
		return 0
	}
	return int(cash.Div(price).Floor().IntPart())
}
