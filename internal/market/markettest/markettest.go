// Package markettest builds small in-memory datasets for tests.
package markettest

import (
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
	"tyche/internal/market"
)

// Builder accumulates bars and option rows for one symbol.
type Builder struct {
	symbol  string
	bars    []domain.Bar
	options []domain.OptionQuote
}

// New returns an empty Builder for symbol.
func New(symbol string) *Builder {
	return &Builder{symbol: symbol}
}

// Date is shorthand for a UTC midnight date.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Bar adds a daily bar whose open, high, low and close all equal price.
func (b *Builder) Bar(date time.Time, price string) *Builder {
	p := decimal.RequireFromString(price)
	b.bars = append(b.bars, domain.Bar{
		Symbol:        b.symbol,
		Date:          date,
		Open:          p,
		High:          p,
		Low:           p,
		Close:         p,
		AdjustedClose: p,
		Volume:        1000,
	})
	return b
}

// Bars adds one bar per weekday in [from, to] at price.
func (b *Builder) Bars(from, to time.Time, price string) *Builder {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		b.Bar(d, price)
	}
	return b
}

// Option adds one chain row quoted on date.
func (b *Builder) Option(date, exp time.Time, right domain.Right, strike, bid, ask, underlying string) *Builder {
	inst := domain.Option(b.symbol, right, decimal.RequireFromString(strike), exp)
	bidD := decimal.RequireFromString(bid)
	askD := decimal.RequireFromString(ask)
	b.options = append(b.options, domain.OptionQuote{
		Key:             inst.Key(),
		Underlying:      b.symbol,
		UnderlyingPrice: decimal.RequireFromString(underlying),
		Right:           right,
		Expiration:      inst.Expiration,
		DataDate:        date,
		Strike:          inst.Strike,
		Last:            bidD.Add(askD).Div(decimal.NewFromInt(2)),
		Bid:             bidD,
		Ask:             askD,
		Volume:          10,
		OpenInterest:    100,
	})
	return b
}

// BarRows returns the accumulated bars.
func (b *Builder) BarRows() []domain.Bar { return b.bars }

// OptionRows returns the accumulated option rows.
func (b *Builder) OptionRows() []domain.OptionQuote { return b.options }

// Dataset builds the immutable dataset.
func (b *Builder) Dataset() *market.Dataset {
	return market.NewDataset(b.symbol, b.options, b.bars)
}
