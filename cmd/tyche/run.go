package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tyche/internal/config"
	"tyche/internal/engine"
	"tyche/internal/report"
	"tyche/internal/store"
	"tyche/internal/strategy"
	"tyche/internal/strategy/builtins"
	"tyche/internal/util"
)

var runCmd = &cobra.Command{
	Use:   "run [SYMBOL...]",
	Short: "Backtest the configured strategy on each symbol",
	Long: `Run one backtest per symbol in parallel and print a summary table.
Symbols given as arguments replace backtest.symbols from the config.`,
	RunE: runBacktests,
}

func init() {
	f := runCmd.Flags()
	f.StringP("strategy", "s", "", "strategy name (overrides backtest.strategy)")
	f.String("start", "", "first day, YYYY-MM-DD (overrides backtest.start_date)")
	f.String("end", "", "last day, YYYY-MM-DD (overrides backtest.end_date)")
	f.String("source", "", "data source: parquet, sqlite or csv (overrides storage.source)")
	f.Bool("save-equity", false, "write each run's equity curve to <data_dir>/runs")
	f.Bool("detail", false, "print each run's final account and open positions")
}

func runBacktests(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	bt := &cfg.Backtest
	if len(args) > 0 {
		bt.Symbols = args
	}
	if v, _ := f.GetString("strategy"); v != "" {
		bt.Strategy = v
	}
	if v, _ := f.GetString("start"); v != "" {
		bt.StartDate = v
	}
	if v, _ := f.GetString("end"); v != "" {
		bt.EndDate = v
	}
	if v, _ := f.GetString("source"); v != "" {
		cfg.Storage.Source = v
	}
	if v, _ := f.GetBool("save-equity"); v {
		bt.SaveEquity = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(bt.Symbols) == 0 {
		return fmt.Errorf("no symbols: pass them as arguments or set backtest.symbols")
	}

	registry := strategy.NewRegistry()
	builtins.Register(registry)
	if !registry.Has(bt.Strategy) {
		return fmt.Errorf("unknown strategy %q (available: %s)", bt.Strategy, strings.Join(registry.List(), ", "))
	}

	jobs, err := backtestJobs(*bt)
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	eng := engine.NewEngine(store.NewLoader(src), strategy.NewBacktester(registry, logger), bt.Parallelism, logger)
	ctx := cmd.Context()
	results, err := eng.RunAll(ctx, jobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report.WriteResults(out, results)

	if detail, _ := f.GetBool("detail"); detail {
		for _, r := range results {
			fmt.Fprintf(out, "\n%s %s (run %s)\n", r.Symbol, r.Strategy, r.RunID)
			report.WriteAccount(out, r.Account)
			if len(r.Positions) > 0 {
				report.WriteStatement(out, r.Positions)
			}
		}
	}

	if bt.SaveEquity {
		runs := store.NewParquetStore(cfg.Storage.DataDir)
		for _, r := range results {
			if err := runs.WriteEquityCurve(ctx, r.RunID, r.Equity); err != nil {
				return fmt.Errorf("saving equity curve of %s: %w", r.Symbol, err)
			}
			logger.Info("saved equity curve", "symbol", r.Symbol, "run", r.RunID, "days", len(r.Equity))
		}
	}
	return nil
}

// backtestJobs builds one job per configured symbol.
func backtestJobs(bt config.BacktestConfig) ([]engine.Job, error) {
	start, end, err := bt.Range()
	if err != nil {
		return nil, err
	}
	holidays, err := bt.HolidayDates()
	if err != nil {
		return nil, err
	}
	calendar := util.NewTradingCalendar(holidays...)

	jobs := make([]engine.Job, len(bt.Symbols))
	for i, sym := range bt.Symbols {
		jobs[i] = engine.Job{
			Symbol: strings.ToUpper(sym),
			RunRequest: strategy.RunRequest{
				Strategy:        bt.Strategy,
				StartingBalance: bt.StartingBalance,
				MarginMultiple:  bt.MarginMultiple,
				Start:           start,
				End:             end,
				Calendar:        calendar,
			},
		}
	}
	return jobs, nil
}
