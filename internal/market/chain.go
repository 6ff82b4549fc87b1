package market

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

// chainDay is every contract quoted on one data date, sorted by key.
type chainDay struct {
	rows  []domain.OptionQuote
	index map[string]int
}

// ChainData is the full option history of one underlying.
type ChainData struct {
	symbol string
	days   map[time.Time]*chainDay
	from   time.Time
	to     time.Time
	len    int
}

// NewChainData indexes rows by data date and key. Rows for other
// underlyings are ignored; later duplicates of a key on the same date win.
func NewChainData(symbol string, rows []domain.OptionQuote) *ChainData {
	c := &ChainData{symbol: symbol, days: make(map[time.Time]*chainDay)}

	byDate := make(map[time.Time]map[string]domain.OptionQuote)
	for _, r := range rows {
		if r.Underlying != symbol {
			continue
		}
		date := domain.Day(r.DataDate)
		r.DataDate = date
		r.Expiration = domain.Day(r.Expiration)
		if r.Key == "" {
			r.Key = r.Instrument().Key()
		}
		if byDate[date] == nil {
			byDate[date] = make(map[string]domain.OptionQuote)
		}
		byDate[date][r.Key] = r
	}

	for date, m := range byDate {
		day := &chainDay{index: make(map[string]int, len(m))}
		for _, r := range m {
			day.rows = append(day.rows, r)
		}
		slices.SortFunc(day.rows, func(a, b domain.OptionQuote) int {
			return cmp.Compare(a.Key, b.Key)
		})
		for i, r := range day.rows {
			day.index[r.Key] = i
		}
		c.days[date] = day
		c.len += len(day.rows)

		if c.from.IsZero() || date.Before(c.from) {
			c.from = date
		}
		if date.After(c.to) {
			c.to = date
		}
	}
	return c
}

// Symbol returns the underlying symbol.
func (c *ChainData) Symbol() string { return c.symbol }

// Len returns the number of rows held.
func (c *ChainData) Len() int { return c.len }

// DateRange returns the first and last data dates.
func (c *ChainData) DateRange() (time.Time, time.Time) { return c.from, c.to }

// View returns a new cursor with no current date.
func (c *ChainData) View() *Chain { return &Chain{data: c} }

// Chain is a cursor over ChainData positioned on one data date.
type Chain struct {
	data *ChainData
	date time.Time
	day  *chainDay
}

// Symbol returns the underlying symbol.
func (c *Chain) Symbol() string { return c.data.symbol }

// Len returns the number of rows in the underlying dataset.
func (c *Chain) Len() int { return c.data.len }

// DateRange returns the first and last data dates of the dataset.
func (c *Chain) DateRange() (time.Time, time.Time) { return c.data.DateRange() }

// CurrentDate returns the date the cursor is on, zero before the first
// successful SetCurrentDate.
func (c *Chain) CurrentDate() time.Time { return c.date }

// SetCurrentDate moves the cursor. On failure the cursor is left where it was.
func (c *Chain) SetCurrentDate(date time.Time) error {
	date = domain.Day(date)
	if c.data.len == 0 || date.Before(c.data.from) || date.After(c.data.to) {
		return fmt.Errorf("chain %s %s: %w", c.data.symbol, date.Format(time.DateOnly), ErrOutOfRange)
	}
	day, ok := c.data.days[date]
	if !ok {
		return fmt.Errorf("chain %s %s: %w", c.data.symbol, date.Format(time.DateOnly), ErrNoData)
	}
	c.date, c.day = date, day
	return nil
}

// Get returns the row for key on the current date.
func (c *Chain) Get(key string) (domain.OptionQuote, error) {
	if c.day == nil {
		return domain.OptionQuote{}, ErrNoDate
	}
	i, ok := c.day.index[key]
	if !ok {
		return domain.OptionQuote{}, fmt.Errorf("%w: %s on %s", ErrUnknownInstrument, key, c.date.Format(time.DateOnly))
	}
	return c.day.rows[i], nil
}

// Price returns the price a position of qty would be marked at: the bid for
// longs and the ask for shorts.
func (c *Chain) Price(key string, qty int) (decimal.Decimal, error) {
	row, err := c.Get(key)
	if err != nil {
		return decimal.Zero, err
	}
	if qty > 0 {
		return row.Bid, nil
	}
	return row.Ask, nil
}

// UnderlyingPrice returns the underlying's price recorded on key's row.
func (c *Chain) UnderlyingPrice(key string) (decimal.Decimal, error) {
	row, err := c.Get(key)
	if err != nil {
		return decimal.Zero, err
	}
	return row.UnderlyingPrice, nil
}

// Contracts returns the rows of the current date accepted by keep, ordered by
// key. A nil keep returns every row.
func (c *Chain) Contracts(keep func(domain.OptionQuote) bool) []domain.OptionQuote {
	if c.day == nil {
		return nil
	}
	var out []domain.OptionQuote
	for _, r := range c.day.rows {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Expirations returns the distinct expirations quoted on the current date in
// ascending order.
func (c *Chain) Expirations() []time.Time {
	if c.day == nil {
		return nil
	}
	var out []time.Time
	for _, r := range c.day.rows {
		out = append(out, r.Expiration)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}
