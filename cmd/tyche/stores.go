package main

import (
	"fmt"
	"time"

	"tyche/internal/config"
	"tyche/internal/store"
)

// dataStore is a writable market data store.
type dataStore interface {
	store.OptionStore
	store.BarStore
}

// zero is the open bound for store reads.
var zero time.Time

func noClose() error { return nil }

// openSource opens the store backtests read from, per storage.source.
func openSource(c *config.Config) (store.Source, func() error, error) {
	if c.Storage.Source == config.SourceCSV {
		return store.NewCSVStore(c.Storage.CSVDir), noClose, nil
	}
	return openStore(c, c.Storage.Source)
}

// openStore opens a writable store: parquet or sqlite.
func openStore(c *config.Config, kind string) (dataStore, func() error, error) {
	switch kind {
	case config.SourceParquet:
		return store.NewParquetStore(c.Storage.DataDir), noClose, nil
	case config.SourceSQLite:
		s, err := store.NewSQLiteStore(c.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", c.Storage.SQLitePath, err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q: want %s or %s", kind, config.SourceParquet, config.SourceSQLite)
	}
}
