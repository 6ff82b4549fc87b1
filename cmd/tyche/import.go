package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tyche/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import [SYMBOL...]",
	Short: "Copy CSV option chains and quotes into the parquet or sqlite store",
	Long: `Read <csv_dir>/options/<SYMBOL>.csv and <csv_dir>/quotes/<SYMBOL>.csv and
upsert them into the target store. Without arguments every symbol that has an
options export is imported.`,
	RunE: importCSV,
}

func init() {
	f := importCmd.Flags()
	f.String("from", "", "CSV directory (overrides storage.csv_dir)")
	f.String("to", "parquet", "target store: parquet or sqlite")
}

func importCSV(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	dir := cfg.Storage.CSVDir
	if v, _ := f.GetString("from"); v != "" {
		dir = v
	}
	to, _ := f.GetString("to")

	dst, closeDst, err := openStore(cfg, to)
	if err != nil {
		return err
	}
	defer closeDst()

	ctx := cmd.Context()
	src := store.NewCSVStore(dir)
	symbols := args
	if len(symbols) == 0 {
		if symbols, err = src.ListSymbols(ctx); err != nil {
			return err
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no CSV exports found under %s", dir)
	}

	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		options, err := src.ReadOptionQuotes(ctx, sym, zero, zero)
		if err != nil {
			return err
		}
		bars, err := src.ReadBars(ctx, sym, zero, zero)
		if err != nil {
			return err
		}
		if err := dst.WriteOptionQuotes(ctx, options); err != nil {
			return fmt.Errorf("writing %s options: %w", sym, err)
		}
		if err := dst.WriteBars(ctx, bars); err != nil {
			return fmt.Errorf("writing %s bars: %w", sym, err)
		}
		logger.Info("imported", "symbol", sym, "options", len(options), "bars", len(bars), "to", to)
	}
	return nil
}
