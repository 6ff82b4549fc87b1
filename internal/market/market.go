// Package market provides read-only, date-scoped views over historical option
// chains and stock quotes.
//
// Datasets (ChainData, QuoteData) are immutable once built and may be shared
// by concurrent runs. Each run takes its own cursor with View and moves it
// with SetCurrentDate.
package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

var (
	// ErrInvalidDate is the family of errors returned when a view cannot be
	// positioned on a date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrOutOfRange means the date lies outside the dataset's date range.
	ErrOutOfRange = fmt.Errorf("%w: outside data range", ErrInvalidDate)
	// ErrNoData means the date is inside the range but has no rows, such as
	// a market holiday.
	ErrNoData = fmt.Errorf("%w: no data for date", ErrInvalidDate)

	// ErrUnknownInstrument is returned for lookups of a key that has no row
	// on the current date.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrNoDate is returned by lookups made before SetCurrentDate succeeded.
	ErrNoDate = errors.New("no current date set")
)

// Dataset pairs the option chain and stock quotes of one underlying.
type Dataset struct {
	Symbol string
	Chain  *ChainData
	Quote  *QuoteData
}

// NewDataset builds a dataset from raw rows.
func NewDataset(symbol string, options []domain.OptionQuote, bars []domain.Bar) *Dataset {
	return &Dataset{
		Symbol: symbol,
		Chain:  NewChainData(symbol, options),
		Quote:  NewQuoteData(symbol, bars),
	}
}

// View returns a fresh cursor pair over the dataset.
func (d *Dataset) View() *Market {
	return &Market{Chain: d.Chain.View(), Quote: d.Quote.View()}
}

// Market is one run's cursor over a Dataset. It is what the broker prices
// against.
type Market struct {
	Chain *Chain
	Quote *Quote
}

// DateRange returns the span covered by both views. An empty option chain
// does not constrain the range, so stock-only datasets still work.
func (m *Market) DateRange() (time.Time, time.Time) {
	from, to := m.Quote.DateRange()
	if m.Chain.Len() == 0 {
		return from, to
	}
	cf, ct := m.Chain.DateRange()
	if cf.After(from) {
		from = cf
	}
	if ct.Before(to) {
		to = ct
	}
	return from, to
}

// SetCurrentDate positions both views on date. It fails with an
// ErrInvalidDate error if either has no data for it.
func (m *Market) SetCurrentDate(date time.Time) error {
	if err := m.Quote.SetCurrentDate(date); err != nil {
		return err
	}
	if m.Chain.Len() == 0 {
		return nil
	}
	return m.Chain.SetCurrentDate(date)
}

// CurrentDate returns the date the views are positioned on.
func (m *Market) CurrentDate() time.Time { return m.Quote.CurrentDate() }

// PriceFor returns the current price of inst: the chain's bid or ask for
// options depending on the sign of qty, and the quote close for stock.
func (m *Market) PriceFor(inst domain.Instrument, qty int) (decimal.Decimal, error) {
	if inst.IsOption() {
		return m.Chain.Price(inst.Key(), qty)
	}
	if inst.Underlying != m.Quote.Symbol() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownInstrument, inst.Underlying)
	}
	return m.Quote.Price()
}
