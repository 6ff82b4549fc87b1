// Package store persists and loads the historical market data backtests run
// on: option chains, daily stock bars and run equity curves.
package store

import (
	"context"
	"fmt"
	"time"

	"tyche/internal/domain"
	"tyche/internal/market"
)

// OptionStore persists end-of-day option chain rows.
type OptionStore interface {
	// WriteOptionQuotes upserts rows keyed by (OPRA key, data date).
	WriteOptionQuotes(ctx context.Context, rows []domain.OptionQuote) error

	// ReadOptionQuotes returns the rows of one underlying quoted in
	// [start, end], ordered by data date then key. A zero bound is open.
	ReadOptionQuotes(ctx context.Context, underlying string, start, end time.Time) ([]domain.OptionQuote, error)

	// ListSymbols returns the underlyings that have stored chains.
	ListSymbols(ctx context.Context) ([]string, error)
}

// BarStore persists daily stock bars.
type BarStore interface {
	// WriteBars upserts bars keyed by (symbol, date).
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns the bars of symbol dated in [start, end] in date
	// order. A zero bound is open.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Source is the read side a backtest loads its market data from.
type Source interface {
	ReadOptionQuotes(ctx context.Context, underlying string, start, end time.Time) ([]domain.OptionQuote, error)
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// RunStore persists the daily equity curve of a finished run.
type RunStore interface {
	WriteEquityCurve(ctx context.Context, runID string, curve []domain.DailySnapshot) error
	ReadEquityCurve(ctx context.Context, runID string) ([]domain.DailySnapshot, error)
}

// Loader builds market datasets from a Source.
type Loader struct {
	Source Source
}

// NewLoader returns a Loader reading from src.
func NewLoader(src Source) *Loader {
	return &Loader{Source: src}
}

// LoadDataset reads the chain and bars of symbol in [start, end] and indexes
// them. A symbol without bars cannot be traded and is an error; a symbol
// without option rows yields a stock-only dataset.
func (l *Loader) LoadDataset(ctx context.Context, symbol string, start, end time.Time) (*market.Dataset, error) {
	bars, err := l.Source.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s between %s and %s", symbol, fmtDate(start), fmtDate(end))
	}
	options, err := l.Source.ReadOptionQuotes(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading option chain for %s: %w", symbol, err)
	}
	return market.NewDataset(symbol, options, bars), nil
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// inRange reports whether t lies in [start, end], treating zero bounds as open.
func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
