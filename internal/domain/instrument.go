// Package domain defines the core value types shared across tyche: instruments,
// positions, lots, orders and account snapshots.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes equity from derivative instruments.
type Kind string

const (
	KindEquity     Kind = "equity"
	KindDerivative Kind = "derivative"
)

// Right is the option right of a derivative instrument.
type Right string

const (
	RightCall Right = "C"
	RightPut  Right = "P"
)

// ParseRight accepts "C", "call", "Call", "P", "PUT", ... and returns the
// matching Right.
func ParseRight(s string) (Right, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL":
		return RightCall, nil
	case "P", "PUT":
		return RightPut, nil
	}
	return "", fmt.Errorf("unknown option right %q", s)
}

// OptionMultiplier is the number of shares covered by one option contract.
const OptionMultiplier = 100

// Instrument identifies one tradeable thing: either the underlying equity or
// one option contract on it. Strike, Right and Expiration are only meaningful
// for KindDerivative and are always zero for KindEquity.
type Instrument struct {
	Underlying string
	Kind       Kind
	Right      Right
	Strike     decimal.Decimal
	Expiration time.Time
}

// Equity returns the stock instrument for symbol.
func Equity(symbol string) Instrument {
	return Instrument{Underlying: symbol, Kind: KindEquity}
}

// Option returns the option contract instrument. Expiration is truncated to
// the calendar day.
func Option(underlying string, right Right, strike decimal.Decimal, expiration time.Time) Instrument {
	return Instrument{
		Underlying: underlying,
		Kind:       KindDerivative,
		Right:      right,
		Strike:     strike,
		Expiration: Day(expiration),
	}
}

// Normalize rebuilds the instrument through Equity or Option, so stock never
// carries a strike, right or expiration.
func (i Instrument) Normalize() Instrument {
	if i.IsOption() {
		return Option(i.Underlying, i.Right, i.Strike, i.Expiration)
	}
	return Equity(i.Underlying)
}

// IsOption reports whether the instrument is a derivative.
func (i Instrument) IsOption() bool { return i.Kind == KindDerivative }

// IsCall reports whether the instrument is a call option.
func (i Instrument) IsCall() bool { return i.IsOption() && i.Right == RightCall }

// IsPut reports whether the instrument is a put option.
func (i Instrument) IsPut() bool { return i.IsOption() && i.Right == RightPut }

// Multiplier returns the contract multiplier: 100 for options, 1 for stock.
func (i Instrument) Multiplier() decimal.Decimal {
	if i.IsOption() {
		return decimal.NewFromInt(OptionMultiplier)
	}
	return decimal.NewFromInt(1)
}

// Key returns the instrument key used to match lots: the OPRA code for an
// option and the bare symbol for stock.
func (i Instrument) Key() string {
	if !i.IsOption() {
		return i.Underlying
	}
	return EncodeKey(i.Underlying, i.Expiration, i.Strike, i.Right)
}

// InTheMoney reports whether the option would be exercised with the
// underlying at price. Stock is never in the money.
func (i Instrument) InTheMoney(price decimal.Decimal) bool {
	switch {
	case i.IsCall():
		return i.Strike.LessThanOrEqual(price)
	case i.IsPut():
		return i.Strike.GreaterThanOrEqual(price)
	}
	return false
}

func (i Instrument) String() string {
	return i.Key()
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
