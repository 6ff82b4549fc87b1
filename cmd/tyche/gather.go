package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"tyche/internal/gather"
)

var gatherCmd = &cobra.Command{
	Use:   "gather [SYMBOL...]",
	Short: "Download daily stock bars from Alpaca into the store",
	Long: `Fetch daily bars through the latest finished trading day for
gather.quotes.symbols (or backtest.symbols, or the arguments). Each symbol
resumes after the last day it was gathered.`,
	RunE: gatherQuotes,
}

func init() {
	gatherCmd.Flags().String("to", "parquet", "target store: parquet or sqlite")
}

func gatherQuotes(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	dst, closeDst, err := openStore(cfg, to)
	if err != nil {
		return err
	}
	defer closeDst()

	job := cfg.Gather.Quotes
	symbols := job.Symbols
	if len(args) > 0 {
		symbols = args
	} else if len(symbols) == 0 {
		symbols = cfg.Backtest.Symbols
	}

	g := gather.NewQuoteGatherer(gather.QuoteGathererConfig{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BaseURL:         cfg.Alpaca.BaseURL,
		Symbols:         symbols,
		StartDate:       job.StartDate,
		RateLimitPerMin: job.RateLimitPerMin,
		MaxAttempts:     job.MaxAttempts,
		StateDir:        filepath.Join(cfg.Storage.DataDir, "quotes"),
	}, dst)

	logger.Info("starting gatherer", "name", g.Name(), "symbols", len(symbols), "to", to)
	return g.Run(cmd.Context())
}
