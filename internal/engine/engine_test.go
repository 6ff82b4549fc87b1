package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/market"
	"tyche/internal/market/markettest"
	"tyche/internal/strategy"
	"tyche/internal/strategy/builtins"
)

type fakeLoader struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLoader) LoadDataset(_ context.Context, symbol string, _, _ time.Time) (*market.Dataset, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return markettest.New(symbol).
		Bar(markettest.Date(2018, 6, 11), "10").
		Bar(markettest.Date(2018, 6, 12), "11").
		Dataset(), nil
}

func newEngine(l Loader) *Engine {
	r := strategy.NewRegistry()
	builtins.Register(r)
	return NewEngine(l, strategy.NewBacktester(r, nil), 4, nil)
}

func job(symbol string) Job {
	return Job{
		Symbol: symbol,
		RunRequest: strategy.RunRequest{
			Strategy:        "buy-hold",
			StartingBalance: decimal.NewFromInt(1000),
			MarginMultiple:  decimal.RequireFromString("0.3"),
		},
	}
}

func TestNewEngine(t *testing.T) {
	e := NewEngine(nil, nil, 0, nil)
	if e == nil {
		t.Fatal("NewEngine returned nil")
	}
	if e.parallelism != 1 {
		t.Errorf("parallelism = %d, want 1", e.parallelism)
	}
}

func TestRunAllKeepsOrderAndSharesData(t *testing.T) {
	l := &fakeLoader{}
	e := newEngine(l)
	jobs := []Job{job("AAA"), job("BBB"), job("AAA"), job("CCC"), job("AAA")}

	results, err := e.RunAll(context.Background(), jobs)
	if err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(jobs))
	}
	ids := make(map[string]bool)
	for i, res := range results {
		if res.Symbol != jobs[i].Symbol {
			t.Errorf("results[%d].Symbol = %q, want %q", i, res.Symbol, jobs[i].Symbol)
		}
		// 100 shares at 10, marked at 11.
		if !res.FinalNetLiquid.Equal(decimal.NewFromInt(1100)) {
			t.Errorf("results[%d].FinalNetLiquid = %s, want 1100", i, res.FinalNetLiquid)
		}
		ids[res.RunID] = true
	}
	if len(ids) != len(jobs) {
		t.Errorf("got %d distinct run IDs, want %d", len(ids), len(jobs))
	}
	if got := l.calls.Load(); got != 3 {
		t.Errorf("loader called %d times, want 3", got)
	}
}

func TestRunAllLoadError(t *testing.T) {
	errMissing := errors.New("missing")
	e := newEngine(&fakeLoader{err: errMissing})
	_, err := e.RunAll(context.Background(), []Job{job("AAA")})
	if !errors.Is(err, errMissing) {
		t.Errorf("RunAll error = %v, want %v", err, errMissing)
	}
}
