package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

// QuoteData is the daily bar history of one stock.
type QuoteData struct {
	symbol string
	bars   map[time.Time]domain.Bar
	from   time.Time
	to     time.Time
}

// NewQuoteData indexes bars by date. Bars for other symbols are ignored.
func NewQuoteData(symbol string, bars []domain.Bar) *QuoteData {
	q := &QuoteData{symbol: symbol, bars: make(map[time.Time]domain.Bar, len(bars))}
	for _, b := range bars {
		if b.Symbol != symbol {
			continue
		}
		b.Date = domain.Day(b.Date)
		q.bars[b.Date] = b
		if q.from.IsZero() || b.Date.Before(q.from) {
			q.from = b.Date
		}
		if b.Date.After(q.to) {
			q.to = b.Date
		}
	}
	return q
}

// Symbol returns the stock symbol.
func (q *QuoteData) Symbol() string { return q.symbol }

// Len returns the number of bars held.
func (q *QuoteData) Len() int { return len(q.bars) }

// DateRange returns the first and last bar dates.
func (q *QuoteData) DateRange() (time.Time, time.Time) { return q.from, q.to }

// View returns a new cursor with no current date.
func (q *QuoteData) View() *Quote { return &Quote{data: q} }

// Quote is a cursor over QuoteData positioned on one date.
type Quote struct {
	data *QuoteData
	date time.Time
	bar  *domain.Bar
}

// Symbol returns the stock symbol.
func (q *Quote) Symbol() string { return q.data.symbol }

// DateRange returns the first and last bar dates of the dataset.
func (q *Quote) DateRange() (time.Time, time.Time) { return q.data.DateRange() }

// CurrentDate returns the date the cursor is on.
func (q *Quote) CurrentDate() time.Time { return q.date }

// SetCurrentDate moves the cursor. On failure the cursor is left where it was.
func (q *Quote) SetCurrentDate(date time.Time) error {
	date = domain.Day(date)
	if len(q.data.bars) == 0 || date.Before(q.data.from) || date.After(q.data.to) {
		return fmt.Errorf("quote %s %s: %w", q.data.symbol, date.Format(time.DateOnly), ErrOutOfRange)
	}
	bar, ok := q.data.bars[date]
	if !ok {
		return fmt.Errorf("quote %s %s: %w", q.data.symbol, date.Format(time.DateOnly), ErrNoData)
	}
	q.date, q.bar = date, &bar
	return nil
}

// Bar returns the current day's bar.
func (q *Quote) Bar() (domain.Bar, error) {
	if q.bar == nil {
		return domain.Bar{}, ErrNoDate
	}
	return *q.bar, nil
}

// Price returns the current day's close.
func (q *Quote) Price() (decimal.Decimal, error) {
	b, err := q.Bar()
	if err != nil {
		return decimal.Zero, err
	}
	return b.Close, nil
}
