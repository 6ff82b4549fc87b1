package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
	"tyche/internal/market/markettest"
)

var (
	mon = markettest.Date(2018, 6, 11)
	tue = markettest.Date(2018, 6, 12)
	fri = markettest.Date(2018, 6, 15)
)

func sampleData() ([]domain.OptionQuote, []domain.Bar) {
	b := markettest.New("TEAM").
		Bar(mon, "66.12").Bar(tue, "67").Bar(fri, "68.5").
		Option(mon, fri, domain.RightPut, "65", "0.3", "0.4", "66.12").
		Option(mon, fri, domain.RightCall, "65", "1.4", "1.6", "66.12").
		Option(tue, fri, domain.RightPut, "65", "0.25", "0.35", "67")
	return b.OptionRows(), b.BarRows()
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	if got, want := ps.optionPath("TEAM", mon), filepath.Join("/data", "options", "TEAM", "2018.parquet"); got != want {
		t.Errorf("optionPath = %s, want %s", got, want)
	}
	if got, want := ps.barPath("TEAM", mon), filepath.Join("/data", "quotes", "TEAM", "2018.parquet"); got != want {
		t.Errorf("barPath = %s, want %s", got, want)
	}
	if got, want := ps.runPath("abc"), filepath.Join("/data", "runs", "abc.parquet"); got != want {
		t.Errorf("runPath = %s, want %s", got, want)
	}
}

func TestParquetStoreOptionQuotes(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()
	options, _ := sampleData()

	if err := ps.WriteOptionQuotes(ctx, options); err != nil {
		t.Fatalf("WriteOptionQuotes: %v", err)
	}
	got, err := ps.ReadOptionQuotes(ctx, "TEAM", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadOptionQuotes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(got))
	}
	first := got[0]
	if !first.DataDate.Equal(mon) || !first.Expiration.Equal(fri) {
		t.Errorf("first row dates = %v, %v; want %v, %v", first.DataDate, first.Expiration, mon, fri)
	}
	if !first.Bid.Equal(decimal.RequireFromString("0.3")) && !first.Bid.Equal(decimal.RequireFromString("1.4")) {
		t.Errorf("first row bid = %s, want 0.3 or 1.4", first.Bid)
	}
	if first.Key != first.Instrument().Key() {
		t.Errorf("Key = %s, want %s", first.Key, first.Instrument().Key())
	}

	onlyTue, err := ps.ReadOptionQuotes(ctx, "TEAM", tue, tue)
	if err != nil {
		t.Fatalf("ReadOptionQuotes(tue): %v", err)
	}
	if len(onlyTue) != 1 || !onlyTue[0].Bid.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("ReadOptionQuotes(tue) = %+v, want the single 0.25 put", onlyTue)
	}

	symbols, err := ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "TEAM" {
		t.Errorf("ListSymbols = %v, want [TEAM]", symbols)
	}
}

func TestParquetStoreWriteBarsMerges(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()
	_, bars := sampleData()

	if err := ps.WriteBars(ctx, bars[:2]); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	updated := bars[1]
	updated.Close = decimal.NewFromInt(70)
	if err := ps.WriteBars(ctx, []domain.Bar{updated, bars[2]}); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, "TEAM", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(bars) = %d, want 3", len(got))
	}
	for i, want := range []time.Time{mon, tue, fri} {
		if !got[i].Date.Equal(want) {
			t.Errorf("bars[%d].Date = %v, want %v", i, got[i].Date, want)
		}
	}
	if !got[1].Close.Equal(decimal.NewFromInt(70)) {
		t.Errorf("merged close = %s, want 70", got[1].Close)
	}
	if !got[0].Close.Equal(decimal.RequireFromString("66.12")) {
		t.Errorf("bars[0].Close = %s, want 66.12", got[0].Close)
	}
}

func TestParquetStoreReadMissing(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	bars, err := ps.ReadBars(context.Background(), "NONE", time.Time{}, time.Time{})
	if err != nil || len(bars) != 0 {
		t.Errorf("ReadBars(missing) = %v, %v; want empty, nil", bars, err)
	}
	symbols, err := ps.ListSymbols(context.Background())
	if err != nil || len(symbols) != 0 {
		t.Errorf("ListSymbols(empty) = %v, %v; want empty, nil", symbols, err)
	}
}

func TestParquetStoreEquityCurve(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()
	curve := []domain.DailySnapshot{
		{Date: mon, Cash: decimal.NewFromInt(10000), NetLiquid: decimal.NewFromInt(10000)},
		{Date: tue, Cash: decimal.NewFromInt(10030), NetLiquid: decimal.RequireFromString("9990.5"), OpenPL: decimal.RequireFromString("-39.5")},
	}
	if err := ps.WriteEquityCurve(ctx, "run-1", curve); err != nil {
		t.Fatalf("WriteEquityCurve: %v", err)
	}
	got, err := ps.ReadEquityCurve(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadEquityCurve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(curve) = %d, want 2", len(got))
	}
	if !got[1].Date.Equal(tue) || !got[1].NetLiquid.Equal(decimal.RequireFromString("9990.5")) {
		t.Errorf("curve[1] = %+v, want tue at 9990.5", got[1])
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tyche.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	options, bars := sampleData()

	if err := s.WriteOptionQuotes(ctx, options); err != nil {
		t.Fatalf("WriteOptionQuotes: %v", err)
	}
	// Writing the same rows again must upsert, not duplicate.
	if err := s.WriteOptionQuotes(ctx, options); err != nil {
		t.Fatalf("WriteOptionQuotes (again): %v", err)
	}
	if err := s.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	gotOpts, err := s.ReadOptionQuotes(ctx, "TEAM", mon, mon)
	if err != nil {
		t.Fatalf("ReadOptionQuotes: %v", err)
	}
	if len(gotOpts) != 2 {
		t.Fatalf("len(mon rows) = %d, want 2", len(gotOpts))
	}
	for _, q := range gotOpts {
		if !q.DataDate.Equal(mon) || !q.Expiration.Equal(fri) {
			t.Errorf("row %s dates = %v, %v", q.Key, q.DataDate, q.Expiration)
		}
		if !q.Strike.Equal(decimal.NewFromInt(65)) {
			t.Errorf("row %s strike = %s, want 65", q.Key, q.Strike)
		}
	}

	gotBars, err := s.ReadBars(ctx, "TEAM", time.Time{}, tue)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(gotBars) != 2 {
		t.Fatalf("len(bars) = %d, want 2", len(gotBars))
	}
	if gotBars[0].Close.String() != "66.12" {
		t.Errorf("bars[0].Close = %s, want 66.12", gotBars[0].Close)
	}

	symbols, err := s.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "TEAM" {
		t.Errorf("ListSymbols = %v, want [TEAM]", symbols)
	}
}

const optionsCSV = `OptionSymbol,,UnderlyingSymbol,UnderlyingPrice,Exchange,OptionExt,Type,Expiration,DataDate,Strike,Last,Bid,Ask,Volume,OpenInterest,IV,Delta,Gamma,Theta,Vega,AKA
TEAM180615C00065000,1,TEAM,66.12,*,,call,6/15/2018,6/11/2018,65,1.5,1.4,1.6,12,300,0.3,0.62,0,0,0,TEAM180615C00065000
TEAM180615P00065000,2,TEAM,66.12,*,,put,6/15/2018,6/11/2018,65,0.35,0.3,0.4,5,120,0.31,-0.38,0,0,0,TEAM180615P00065000
TEAM180615P00065000,3,TEAM,67,*,,put,6/15/2018,6/12/2018,65,0.3,0.25,0.35,0,120,0.3,-0.3,0,0,0,TEAM180615P00065000
`

const quotesCSV = `,symbol,quotedate,open,high,low,close,volume,adjustedclose
3571,TEAM,6/11/2018,65.5,66.5,65.1,66.12,1358735,66.12
3572,TEAM,6/12/2018,66.2,67.3,66,67,1200000,
`

func writeCSVFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for path, body := range map[string]string{
		filepath.Join(dir, "options", "TEAM.csv"): optionsCSV,
		filepath.Join(dir, "quotes", "TEAM.csv"):  quotesCSV,
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCSVStore(t *testing.T) {
	cs := NewCSVStore(writeCSVFixture(t))
	ctx := context.Background()

	opts, err := cs.ReadOptionQuotes(ctx, "TEAM", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadOptionQuotes: %v", err)
	}
	if len(opts) != 3 {
		t.Fatalf("len(options) = %d, want 3", len(opts))
	}
	call := opts[0]
	if call.Key != "TEAM180615C00065000" {
		t.Errorf("Key = %s, want TEAM180615C00065000", call.Key)
	}
	if call.Right != domain.RightCall || !call.DataDate.Equal(mon) || !call.Expiration.Equal(fri) {
		t.Errorf("call row = %+v", call)
	}
	if !call.Ask.Equal(decimal.RequireFromString("1.6")) || call.OpenInterest != 300 {
		t.Errorf("call ask/oi = %s/%d, want 1.6/300", call.Ask, call.OpenInterest)
	}

	bars, err := cs.ReadBars(ctx, "TEAM", tue, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("len(bars) = %d, want 1", len(bars))
	}
	if !bars[0].AdjustedClose.Equal(decimal.NewFromInt(67)) {
		t.Errorf("blank adjusted close = %s, want close 67", bars[0].AdjustedClose)
	}

	symbols, err := cs.ListSymbols(ctx)
	if err != nil || len(symbols) != 1 || symbols[0] != "TEAM" {
		t.Errorf("ListSymbols = %v, %v; want [TEAM]", symbols, err)
	}
}

func TestCSVDate(t *testing.T) {
	for _, in := range []string{"2018-06-15", "6/15/2018", " 6/15/2018 "} {
		var d csvDate
		if err := d.UnmarshalCSV(in); err != nil {
			t.Errorf("UnmarshalCSV(%q): %v", in, err)
			continue
		}
		if !d.Equal(fri) {
			t.Errorf("UnmarshalCSV(%q) = %v, want %v", in, d.Time, fri)
		}
	}
	var d csvDate
	if err := d.UnmarshalCSV("June 15"); err == nil {
		t.Error("UnmarshalCSV(\"June 15\") succeeded, want error")
	}
}

func TestLoaderLoadDataset(t *testing.T) {
	l := NewLoader(NewCSVStore(writeCSVFixture(t)))
	ctx := context.Background()

	ds, err := l.LoadDataset(ctx, "TEAM", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	m := ds.View()
	from, to := m.DateRange()
	if !from.Equal(mon) || !to.Equal(tue) {
		t.Errorf("DateRange = %v, %v; want %v, %v", from, to, mon, tue)
	}
	if err := m.SetCurrentDate(tue); err != nil {
		t.Fatalf("SetCurrentDate: %v", err)
	}
	put := domain.Option("TEAM", domain.RightPut, decimal.NewFromInt(65), fri)
	price, err := m.PriceFor(put, -1)
	if err != nil {
		t.Fatalf("PriceFor: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("0.35")) {
		t.Errorf("PriceFor(short put) = %s, want 0.35", price)
	}

	if _, err := l.LoadDataset(ctx, "MISSING", time.Time{}, time.Time{}); err == nil {
		t.Error("LoadDataset(MISSING) succeeded, want error")
	}
}
