package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

// Compile-time interface checks.
var _ OptionStore = (*ParquetStore)(nil)
var _ BarStore = (*ParquetStore)(nil)
var _ RunStore = (*ParquetStore)(nil)
var _ Source = (*ParquetStore)(nil)

// ParquetStore implements OptionStore, BarStore and RunStore using Parquet
// files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// OptionRecord is the Parquet schema for one option chain row.
type OptionRecord struct {
	Key             string  `parquet:"key"`
	Underlying      string  `parquet:"underlying"`
	UnderlyingPrice float64 `parquet:"underlying_price"`
	Right           string  `parquet:"right"`
	Expiration      int64   `parquet:"expiration,timestamp(millisecond)"`
	DataDate        int64   `parquet:"data_date,timestamp(millisecond)"`
	Strike          float64 `parquet:"strike"`
	Last            float64 `parquet:"last"`
	Bid             float64 `parquet:"bid"`
	Ask             float64 `parquet:"ask"`
	Volume          int64   `parquet:"volume"`
	OpenInterest    int64   `parquet:"open_interest"`
	IV              float64 `parquet:"iv"`
	Delta           float64 `parquet:"delta"`
}

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol        string  `parquet:"symbol"`
	Timestamp     int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open          float64 `parquet:"open"`
	High          float64 `parquet:"high"`
	Low           float64 `parquet:"low"`
	Close         float64 `parquet:"close"`
	AdjustedClose float64 `parquet:"adjusted_close"`
	Volume        int64   `parquet:"volume"`
}

// EquityRecord is the Parquet schema for one day of a run's equity curve.
type EquityRecord struct {
	Date      int64   `parquet:"date,timestamp(millisecond)"`
	Cash      float64 `parquet:"cash"`
	NetLiquid float64 `parquet:"net_liquid"`
	OpenPL    float64 `parquet:"open_pl"`
	ClosedPL  float64 `parquet:"closed_pl"`
}

// ---------------------------------------------------------------------------
// OptionStore implementation
// ---------------------------------------------------------------------------

// WriteOptionQuotes writes chain rows grouped by underlying and year of the
// data date:
//
//	<DataDir>/options/<UNDERLYING>/<YYYY>.parquet
func (s *ParquetStore) WriteOptionQuotes(_ context.Context, rows []domain.OptionQuote) error {
	if len(rows) == 0 {
		return nil
	}

	groups := make(map[string][]OptionRecord)
	for _, q := range rows {
		p := s.optionPath(q.Underlying, q.DataDate)
		groups[p] = append(groups[p], toOptionRecord(q))
	}

	for path, records := range groups {
		existing, err := readIfExists[OptionRecord](path)
		if err != nil {
			return fmt.Errorf("reading existing chain file %s: %w", path, err)
		}
		merged := mergeRecords(existing, records,
			func(r OptionRecord) string { return r.Key + "@" + strconv.FormatInt(r.DataDate, 10) },
			func(a, b OptionRecord) int {
				return cmp.Or(cmp.Compare(a.DataDate, b.DataDate), cmp.Compare(a.Key, b.Key))
			})
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing chain file %s: %w", path, err)
		}
	}
	return nil
}

// ReadOptionQuotes reads the chain rows of underlying quoted in [start, end].
func (s *ParquetStore) ReadOptionQuotes(_ context.Context, underlying string, start, end time.Time) ([]domain.OptionQuote, error) {
	dir := filepath.Join(s.DataDir, "options", underlying)
	records, err := readYears[OptionRecord](dir, start, end)
	if err != nil {
		return nil, err
	}

	var out []domain.OptionQuote
	for _, r := range records {
		q := fromOptionRecord(r)
		if inRange(q.DataDate, start, end) {
			out = append(out, q)
		}
	}
	return out, nil
}

// ListSymbols returns the underlyings that have a chain directory.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "options"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	return symbols, nil
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bars grouped by symbol and year:
//
//	<DataDir>/quotes/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	groups := make(map[string][]BarRecord)
	for _, b := range bars {
		p := s.barPath(b.Symbol, b.Date)
		groups[p] = append(groups[p], toBarRecord(b))
	}

	for path, records := range groups {
		existing, err := readIfExists[BarRecord](path)
		if err != nil {
			return fmt.Errorf("reading existing bar file %s: %w", path, err)
		}
		merged := mergeRecords(existing, records,
			func(r BarRecord) int64 { return r.Timestamp },
			func(a, b BarRecord) int { return cmp.Compare(a.Timestamp, b.Timestamp) })
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bar file %s: %w", path, err)
		}
	}
	return nil
}

// ReadBars reads the bars of symbol dated in [start, end].
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	dir := filepath.Join(s.DataDir, "quotes", symbol)
	records, err := readYears[BarRecord](dir, start, end)
	if err != nil {
		return nil, err
	}

	var out []domain.Bar
	for _, r := range records {
		b := fromBarRecord(r)
		if inRange(b.Date, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// WriteEquityCurve replaces the curve stored for runID.
func (s *ParquetStore) WriteEquityCurve(_ context.Context, runID string, curve []domain.DailySnapshot) error {
	records := make([]EquityRecord, len(curve))
	for i, d := range curve {
		records[i] = EquityRecord{
			Date:      d.Date.UnixMilli(),
			Cash:      d.Cash.InexactFloat64(),
			NetLiquid: d.NetLiquid.InexactFloat64(),
			OpenPL:    d.OpenPL.InexactFloat64(),
			ClosedPL:  d.ClosedPL.InexactFloat64(),
		}
	}
	return writeParquetFile(s.runPath(runID), records)
}

// ReadEquityCurve returns the curve stored for runID.
func (s *ParquetStore) ReadEquityCurve(_ context.Context, runID string) ([]domain.DailySnapshot, error) {
	records, err := readParquetFile[EquityRecord](s.runPath(runID))
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}
	out := make([]domain.DailySnapshot, len(records))
	for i, r := range records {
		out[i] = domain.DailySnapshot{
			Date:      fromMillis(r.Date),
			Cash:      decimal.NewFromFloat(r.Cash),
			NetLiquid: decimal.NewFromFloat(r.NetLiquid),
			OpenPL:    decimal.NewFromFloat(r.OpenPL),
			ClosedPL:  decimal.NewFromFloat(r.ClosedPL),
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

func (s *ParquetStore) optionPath(underlying string, t time.Time) string {
	return filepath.Join(s.DataDir, "options", underlying, fmt.Sprintf("%d.parquet", t.Year()))
}

func (s *ParquetStore) barPath(symbol string, t time.Time) string {
	return filepath.Join(s.DataDir, "quotes", symbol, fmt.Sprintf("%d.parquet", t.Year()))
}

func (s *ParquetStore) runPath(runID string) string {
	return filepath.Join(s.DataDir, "runs", runID+".parquet")
}

// ---------------------------------------------------------------------------
// Record conversion
// ---------------------------------------------------------------------------

func toOptionRecord(q domain.OptionQuote) OptionRecord {
	return OptionRecord{
		Key:             q.Key,
		Underlying:      q.Underlying,
		UnderlyingPrice: q.UnderlyingPrice.InexactFloat64(),
		Right:           string(q.Right),
		Expiration:      q.Expiration.UnixMilli(),
		DataDate:        q.DataDate.UnixMilli(),
		Strike:          q.Strike.InexactFloat64(),
		Last:            q.Last.InexactFloat64(),
		Bid:             q.Bid.InexactFloat64(),
		Ask:             q.Ask.InexactFloat64(),
		Volume:          q.Volume,
		OpenInterest:    q.OpenInterest,
		IV:              q.IV,
		Delta:           q.Delta,
	}
}

func fromOptionRecord(r OptionRecord) domain.OptionQuote {
	return domain.OptionQuote{
		Key:             r.Key,
		Underlying:      r.Underlying,
		UnderlyingPrice: decimal.NewFromFloat(r.UnderlyingPrice),
		Right:           domain.Right(r.Right),
		Expiration:      fromMillis(r.Expiration),
		DataDate:        fromMillis(r.DataDate),
		Strike:          decimal.NewFromFloat(r.Strike),
		Last:            decimal.NewFromFloat(r.Last),
		Bid:             decimal.NewFromFloat(r.Bid),
		Ask:             decimal.NewFromFloat(r.Ask),
		Volume:          r.Volume,
		OpenInterest:    r.OpenInterest,
		IV:              r.IV,
		Delta:           r.Delta,
	}
}

func toBarRecord(b domain.Bar) BarRecord {
	return BarRecord{
		Symbol:        b.Symbol,
		Timestamp:     b.Date.UnixMilli(),
		Open:          b.Open.InexactFloat64(),
		High:          b.High.InexactFloat64(),
		Low:           b.Low.InexactFloat64(),
		Close:         b.Close.InexactFloat64(),
		AdjustedClose: b.AdjustedClose.InexactFloat64(),
		Volume:        b.Volume,
	}
}

func fromBarRecord(r BarRecord) domain.Bar {
	return domain.Bar{
		Symbol:        r.Symbol,
		Date:          fromMillis(r.Timestamp),
		Open:          decimal.NewFromFloat(r.Open),
		High:          decimal.NewFromFloat(r.High),
		Low:           decimal.NewFromFloat(r.Low),
		Close:         decimal.NewFromFloat(r.Close),
		AdjustedClose: decimal.NewFromFloat(r.AdjustedClose),
		Volume:        r.Volume,
	}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ---------------------------------------------------------------------------
// File helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func readIfExists[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return readParquetFile[T](path)
}

// readYears reads every <YYYY>.parquet file under dir whose year overlaps
// [start, end], in year order. A missing dir reads as empty.
func readYears[T any](dir string, start, end time.Time) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []T
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSuffix(name, ".parquet"))
		if err != nil {
			continue
		}
		if (!start.IsZero() && year < start.Year()) || (!end.IsZero() && year > end.Year()) {
			continue
		}
		rows, err := readParquetFile[T](filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// mergeRecords deduplicates records by key, preferring incoming over
// existing, and sorts the result.
func mergeRecords[T any, K comparable](existing, incoming []T, key func(T) K, compare func(a, b T) int) []T {
	seen := make(map[K]T, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key(r)] = r
	}
	for _, r := range incoming {
		seen[key(r)] = r
	}

	merged := make([]T, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	slices.SortFunc(merged, compare)
	return merged
}
