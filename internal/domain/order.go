package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the outcome of submitting an order to the broker.
type OrderStatus string

const (
	OrderStatusPlaced                  OrderStatus = "placed"
	OrderStatusInsufficientCash        OrderStatus = "insufficient_cash"
	OrderStatusInsufficientBuyingPower OrderStatus = "insufficient_option_buying_power"
	OrderStatusEmpty                   OrderStatus = "empty"
)

// Accepted reports whether the order was applied.
func (s OrderStatus) Accepted() bool { return s == OrderStatusPlaced }

// Reason returns a human readable description of the status.
func (s OrderStatus) Reason() string {
	switch s {
	case OrderStatusPlaced:
		return "Order Placed"
	case OrderStatusInsufficientCash:
		return "Insufficient Cash"
	case OrderStatusInsufficientBuyingPower:
		return "Insufficient Option Buying Power"
	case OrderStatusEmpty:
		return "Empty Order"
	}
	return string(s)
}

// Leg is one instrument and signed quantity inside an order. Legs carry no
// price; the broker fills at the current market price.
type Leg struct {
	Instrument
	Quantity int
}

// Order is a set of legs the broker validates and applies atomically.
type Order struct {
	Legs []Leg
}

// NewOrder builds an order from legs.
func NewOrder(legs ...Leg) Order {
	return Order{Legs: legs}
}

// Fill is a priced leg, the unit the ledger reconciles.
type Fill struct {
	Instrument
	Quantity int
	Price    decimal.Decimal
	Date     time.Time
}

// AccountInfo is a snapshot of a simulated account.
type AccountInfo struct {
	Date            time.Time
	Cash            decimal.Decimal
	HighBalance     decimal.Decimal
	LowBalance      decimal.Decimal
	CoverShares     int
	MarginMultiple  decimal.Decimal
	UnderlyingPrice decimal.Decimal
	OpenPL          decimal.Decimal
	ClosedPL        decimal.Decimal
	PositionValue   decimal.Decimal
	NetLiquid       decimal.Decimal
	BuyingPower     decimal.Decimal
}

// DailySnapshot is the account state at the end of one trading day.
type DailySnapshot struct {
	Date      time.Time
	Cash      decimal.Decimal
	NetLiquid decimal.Decimal
	OpenPL    decimal.Decimal
	ClosedPL  decimal.Decimal
}
