package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Position is a holding of one instrument as seen by a strategy. Quantity is
// signed: positive is long, negative is short.
type Position struct {
	Instrument
	Quantity     int
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
}

// PL returns the unrealized profit or loss:
// quantity × (current − entry) × multiplier.
func (p Position) PL() decimal.Decimal {
	return decimal.NewFromInt(int64(p.Quantity)).
		Mul(p.CurrentPrice.Sub(p.EntryPrice)).
		Mul(p.Multiplier())
}

// Value returns the liquidation value: quantity × current × multiplier.
func (p Position) Value() decimal.Decimal {
	return decimal.NewFromInt(int64(p.Quantity)).
		Mul(p.CurrentPrice).
		Mul(p.Multiplier())
}

// IsLong reports whether the position is long.
func (p Position) IsLong() bool { return p.Quantity > 0 }

// IsShort reports whether the position is short.
func (p Position) IsShort() bool { return p.Quantity < 0 }

func (p Position) String() string {
	return fmt.Sprintf("%s x %d @ $%s / $%s",
		p.Key(), p.Quantity, p.CurrentPrice.StringFixed(2), p.EntryPrice.StringFixed(2))
}

// Lot is one discrete order record held by the ledger. Open lots have a zero
// CloseDate. For a closed lot, CurrentPrice holds the exit price.
type Lot struct {
	Position
	OpenDate  time.Time
	CloseDate time.Time
}

// Closed reports whether the lot has been closed.
func (l Lot) Closed() bool { return !l.CloseDate.IsZero() }

func (l Lot) String() string {
	return "Lot: " + l.Position.String()
}
