package util

import (
	"time"
)

// TradingCalendar knows which calendar days the US equity market trades on.
// Weekends are always closed; holidays are whatever the caller registers.
type TradingCalendar struct {
	holidays map[time.Time]struct{}
}

// NewTradingCalendar creates a TradingCalendar with the given market holidays.
func NewTradingCalendar(holidays ...time.Time) *TradingCalendar {
	tc := &TradingCalendar{holidays: make(map[time.Time]struct{}, len(holidays))}
	for _, h := range holidays {
		tc.AddHoliday(h)
	}
	return tc
}

// AddHoliday marks the calendar date of t as closed.
func (tc *TradingCalendar) AddHoliday(t time.Time) {
	tc.holidays[dateOf(t)] = struct{}{}
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsTradingDay returns whether the market trades on the calendar date of t.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	if IsWeekend(t) {
		return false
	}
	_, closed := tc.holidays[dateOf(t)]
	return !closed
}

// NextTradingDay returns the first trading day at or after t, never earlier.
func (tc *TradingCalendar) NextTradingDay(t time.Time) time.Time {
	d := dateOf(t)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
