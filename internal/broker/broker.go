// Package broker defines the Broker interface strategies trade through and
// the simulated broker that runs the daily account cycle of a backtest.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
	"tyche/internal/market"
)

var (
	// ErrEndOfData is returned when a date past the end of the market data
	// is opened. It ends a run.
	ErrEndOfData = errors.New("end of market data")

	// ErrDateNotOpen is returned by operations that need an open date.
	ErrDateNotOpen = errors.New("no date is open")
)

// Broker is the account surface a strategy sees during a run.
type Broker interface {
	// Name returns the broker identifier (e.g. "simulator").
	Name() string

	// CurrentDate returns the open trading date.
	CurrentDate() time.Time

	// PlaceOrder prices every leg at the current market and applies the
	// order if the account can afford it. Rejections are reported through
	// the status; an error means a leg could not be priced.
	PlaceOrder(ctx context.Context, order domain.Order) (domain.OrderStatus, error)

	// Positions returns one merged position per open instrument.
	Positions() []domain.Position

	// StockBuyingPower returns the cash available for stock purchases.
	StockBuyingPower() decimal.Decimal

	// OptionBuyingPower returns the notional that may be written against
	// the given cash plus the account's cover shares.
	OptionBuyingPower(cashAvailable decimal.Decimal) decimal.Decimal

	// NetLiquid returns cash plus the liquidation value of open positions.
	NetLiquid() decimal.Decimal

	// Account returns a snapshot of the account's financial metrics.
	Account() domain.AccountInfo

	// Chain returns the option chain positioned on the current date.
	Chain() *market.Chain

	// Quote returns the stock quote positioned on the current date.
	Quote() *market.Quote
}
