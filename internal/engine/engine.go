// Package engine coordinates backtest runs: it loads market data once per
// symbol and runs independent backtests in parallel.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tyche/internal/market"
	"tyche/internal/strategy"
)

// Loader loads the market dataset of one symbol.
type Loader interface {
	LoadDataset(ctx context.Context, symbol string, start, end time.Time) (*market.Dataset, error)
}

// Job is one requested run: a strategy applied to a symbol. The engine fills
// in the dataset.
type Job struct {
	Symbol string
	strategy.RunRequest
}

// Engine orchestrates backtests by delegating to a loader for data and a
// backtester for the per-run day loop.
type Engine struct {
	loader      Loader
	backtester  *strategy.Backtester
	parallelism int
	log         *slog.Logger

	mu       sync.Mutex
	datasets map[string]*datasetEntry
}

type datasetEntry struct {
	once sync.Once
	ds   *market.Dataset
	err  error
}

// NewEngine creates a new Engine wired with the given dependencies.
// parallelism caps the number of concurrent runs; values below one mean one.
func NewEngine(loader Loader, backtester *strategy.Backtester, parallelism int, logger *slog.Logger) *Engine {
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		loader:      loader,
		backtester:  backtester,
		parallelism: parallelism,
		log:         logger.With("component", "engine"),
		datasets:    make(map[string]*datasetEntry),
	}
}

// Dataset returns the dataset for symbol, loading it on first use. Datasets
// are immutable and shared by every run of the symbol.
func (e *Engine) Dataset(ctx context.Context, symbol string, start, end time.Time) (*market.Dataset, error) {
	key := fmt.Sprintf("%s|%s|%s", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))

	e.mu.Lock()
	entry, ok := e.datasets[key]
	if !ok {
		entry = &datasetEntry{}
		e.datasets[key] = entry
	}
	e.mu.Unlock()

	entry.once.Do(func() {
		e.log.Info("loading market data", "symbol", symbol)
		entry.ds, entry.err = e.loader.LoadDataset(ctx, symbol, start, end)
	})
	return entry.ds, entry.err
}

// RunAll runs every job concurrently, each with its own broker, ledger and
// market cursor. Results are returned in job order. The first failure
// cancels the remaining runs.
func (e *Engine) RunAll(ctx context.Context, jobs []Job) ([]*strategy.BacktestResult, error) {
	results := make([]*strategy.BacktestResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, job := range jobs {
		g.Go(func() error {
			req := job.RunRequest
			if req.Dataset == nil {
				ds, err := e.Dataset(ctx, job.Symbol, req.Start, req.End)
				if err != nil {
					return fmt.Errorf("load %s: %w", job.Symbol, err)
				}
				req.Dataset = ds
			}
			res, err := e.backtester.Run(ctx, req)
			if err != nil {
				return fmt.Errorf("run %s/%s: %w", req.Strategy, job.Symbol, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
