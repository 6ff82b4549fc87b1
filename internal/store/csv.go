package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

var _ Source = (*CSVStore)(nil)

// CSVStore reads option chains and quotes from per-symbol CSV exports:
//
//	<Dir>/options/<SYMBOL>.csv
//	<Dir>/quotes/<SYMBOL>.csv
//
// Columns not mapped below are ignored.
type CSVStore struct {
	Dir string
}

// NewCSVStore returns a CSVStore rooted at dir.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{Dir: dir}
}

// csvDate accepts ISO dates and the month/day/year form of the exports.
type csvDate struct {
	time.Time
}

var csvDateLayouts = []string{time.DateOnly, "1/2/2006", "2006-01-02 15:04:05", time.RFC3339}

func (d *csvDate) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = domain.Day(t)
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", s)
}

func (d csvDate) MarshalCSV() (string, error) {
	return d.Format(time.DateOnly), nil
}

// OptionCSV is one row of an option chain export.
type OptionCSV struct {
	OptionSymbol     string  `csv:"OptionSymbol"`
	UnderlyingSymbol string  `csv:"UnderlyingSymbol"`
	UnderlyingPrice  string  `csv:"UnderlyingPrice"`
	Type             string  `csv:"Type"`
	Expiration       csvDate `csv:"Expiration"`
	DataDate         csvDate `csv:"DataDate"`
	Strike           string  `csv:"Strike"`
	Last             string  `csv:"Last"`
	Bid              string  `csv:"Bid"`
	Ask              string  `csv:"Ask"`
	Volume           int64   `csv:"Volume"`
	OpenInterest     int64   `csv:"OpenInterest"`
	IV               float64 `csv:"IV"`
	Delta            float64 `csv:"Delta"`
}

// ToModel converts the row, re-deriving the OPRA key from its fields.
func (r OptionCSV) ToModel() (domain.OptionQuote, error) {
	right, err := domain.ParseRight(r.Type)
	if err != nil {
		return domain.OptionQuote{}, err
	}
	q := domain.OptionQuote{
		Underlying:   r.UnderlyingSymbol,
		Right:        right,
		Expiration:   r.Expiration.Time,
		DataDate:     r.DataDate.Time,
		Volume:       r.Volume,
		OpenInterest: r.OpenInterest,
		IV:           r.IV,
		Delta:        r.Delta,
	}
	if err := parseDecimals(
		csvDecimal(r.UnderlyingPrice, &q.UnderlyingPrice),
		csvDecimal(r.Strike, &q.Strike),
		csvDecimal(r.Last, &q.Last),
		csvDecimal(r.Bid, &q.Bid),
		csvDecimal(r.Ask, &q.Ask),
	); err != nil {
		return domain.OptionQuote{}, err
	}
	q.Key = q.Instrument().Key()
	return q, nil
}

// QuoteCSV is one row of a daily quote export.
type QuoteCSV struct {
	Symbol        string  `csv:"symbol"`
	QuoteDate     csvDate `csv:"quotedate"`
	Open          string  `csv:"open"`
	High          string  `csv:"high"`
	Low           string  `csv:"low"`
	Close         string  `csv:"close"`
	Volume        int64   `csv:"volume"`
	AdjustedClose string  `csv:"adjustedclose"`
}

// ToModel converts the row. A blank adjusted close falls back to the close.
func (r QuoteCSV) ToModel() (domain.Bar, error) {
	b := domain.Bar{
		Symbol: r.Symbol,
		Date:   r.QuoteDate.Time,
		Volume: r.Volume,
	}
	if err := parseDecimals(
		csvDecimal(r.Open, &b.Open),
		csvDecimal(r.High, &b.High),
		csvDecimal(r.Low, &b.Low),
		csvDecimal(r.Close, &b.Close),
		csvDecimal(r.AdjustedClose, &b.AdjustedClose),
	); err != nil {
		return domain.Bar{}, err
	}
	if strings.TrimSpace(r.AdjustedClose) == "" {
		b.AdjustedClose = b.Close
	}
	return b, nil
}

// csvDecimal maps blank cells to zero.
func csvDecimal(s string, dst *decimal.Decimal) decimalField {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "0"
	}
	return decimalField{s, dst}
}

// ReadOptionQuotes reads <Dir>/options/<underlying>.csv and keeps the rows
// quoted in [start, end]. A missing file reads as an empty chain.
func (s *CSVStore) ReadOptionQuotes(_ context.Context, underlying string, start, end time.Time) ([]domain.OptionQuote, error) {
	var rows []OptionCSV
	if err := unmarshalCSVFile(filepath.Join(s.Dir, "options", underlying+".csv"), &rows); err != nil {
		return nil, err
	}

	out := make([]domain.OptionQuote, 0, len(rows))
	for i, r := range rows {
		if !inRange(r.DataDate.Time, start, end) {
			continue
		}
		q, err := r.ToModel()
		if err != nil {
			return nil, fmt.Errorf("%s options row %d: %w", underlying, i+1, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// ReadBars reads <Dir>/quotes/<symbol>.csv and keeps the rows dated in
// [start, end]. A missing file reads as empty.
func (s *CSVStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var rows []QuoteCSV
	if err := unmarshalCSVFile(filepath.Join(s.Dir, "quotes", symbol+".csv"), &rows); err != nil {
		return nil, err
	}

	out := make([]domain.Bar, 0, len(rows))
	for i, r := range rows {
		if !inRange(r.QuoteDate.Time, start, end) {
			continue
		}
		b, err := r.ToModel()
		if err != nil {
			return nil, fmt.Errorf("%s quotes row %d: %w", symbol, i+1, err)
		}
		if b.Symbol == "" {
			b.Symbol = symbol
		}
		out = append(out, b)
	}
	return out, nil
}

// ListSymbols returns the symbols that have an options export.
func (s *CSVStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Dir, "options"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".csv" {
			symbols = append(symbols, strings.TrimSuffix(e.Name(), ".csv"))
		}
	}
	return symbols, nil
}

func unmarshalCSVFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
