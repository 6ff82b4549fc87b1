package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the configuration file when
// TYCHE_CONFIG is unset.
const DefaultPath = "config/tyche.yaml"

// Data sources a backtest can load market data from.
const (
	SourceParquet = "parquet"
	SourceSQLite  = "sqlite"
	SourceCSV     = "csv"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tyche.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Gather   GatherConfig   `yaml:"gather"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// Storage holds paths for market data and which of them backtests read.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	CSVDir     string `yaml:"csv_dir"`
	Source     string `yaml:"source"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls data gathering jobs.
type GatherConfig struct {
	Quotes GatherJobConfig `yaml:"quotes"`
}

// GatherJobConfig holds parameters for a single data gathering job.
type GatherJobConfig struct {
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxAttempts     int      `yaml:"max_attempts"`
}

// BacktestConfig describes the runs `tyche run` performs.
type BacktestConfig struct {
	Symbols         []string        `yaml:"symbols"`
	Strategy        string          `yaml:"strategy"`
	StartingBalance decimal.Decimal `yaml:"starting_balance"`
	MarginMultiple  decimal.Decimal `yaml:"margin_multiple"`
	StartDate       string          `yaml:"start_date"`
	EndDate         string          `yaml:"end_date"`
	Holidays        []string        `yaml:"holidays"`
	Parallelism     int             `yaml:"parallelism"`
	SaveEquity      bool            `yaml:"save_equity"`
}

// Range parses the configured start and end dates. Blank dates come back as
// zero times, meaning "from the start" and "to the end" of the data.
func (b BacktestConfig) Range() (start, end time.Time, err error) {
	if start, err = parseDate(b.StartDate); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start_date: %w", err)
	}
	if end, err = parseDate(b.EndDate); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end_date: %w", err)
	}
	return start, end, nil
}

// HolidayDates parses the configured market holidays.
func (b BacktestConfig) HolidayDates() ([]time.Time, error) {
	out := make([]time.Time, 0, len(b.Holidays))
	for _, h := range b.Holidays {
		d, err := parseDate(h)
		if err != nil {
			return nil, fmt.Errorf("backtest.holidays: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used for any field the file leaves out.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/tyche.db",
			CSVDir:     "data/csv",
			Source:     SourceParquet,
		},
		Alpaca: Alpaca{
			BaseURL: "https://paper-api.alpaca.markets",
			DataURL: "https://data.alpaca.markets",
		},
		Logging: Logging{Level: "info", Format: "text"},
		Gather: GatherConfig{
			Quotes: GatherJobConfig{
				StartDate:       "2018-01-01",
				RateLimitPerMin: 200,
				MaxAttempts:     3,
			},
		},
		Backtest: BacktestConfig{
			Strategy:        "put-writer",
			StartingBalance: decimal.NewFromInt(10000),
			MarginMultiple:  decimal.RequireFromString("0.3"),
			Parallelism:     4,
		},
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first setting a backtest cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Source {
	case SourceParquet, SourceSQLite, SourceCSV:
	default:
		return fmt.Errorf("storage.source %q: want %s, %s or %s", c.Storage.Source, SourceParquet, SourceSQLite, SourceCSV)
	}
	if !c.Backtest.MarginMultiple.IsPositive() {
		return errors.New("backtest.margin_multiple must be positive")
	}
	if !c.Backtest.StartingBalance.IsPositive() {
		return errors.New("backtest.starting_balance must be positive")
	}
	if c.Backtest.Parallelism < 1 {
		return errors.New("backtest.parallelism must be at least 1")
	}
	start, end, err := c.Backtest.Range()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("backtest.end_date %s is before start_date %s", c.Backtest.EndDate, c.Backtest.StartDate)
	}
	if _, err := c.Backtest.HolidayDates(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"DATA_DIR", &cfg.Storage.DataDir},
		{"SQLITE_PATH", &cfg.Storage.SQLitePath},
		{"CSV_DIR", &cfg.Storage.CSVDir},
		{"DATA_SOURCE", &cfg.Storage.Source},
		{"ALPACA_API_KEY", &cfg.Alpaca.APIKey},
		{"ALPACA_API_SECRET", &cfg.Alpaca.APISecret},
		{"ALPACA_BASE_URL", &cfg.Alpaca.BaseURL},
		{"ALPACA_DATA_URL", &cfg.Alpaca.DataURL},
		{"LOG_LEVEL", &cfg.Logging.Level},
		// Standard Alpaca env vars (highest priority, canonical names used by SDK).
		{"APCA_API_KEY_ID", &cfg.Alpaca.APIKey},
		{"APCA_API_SECRET_KEY", &cfg.Alpaca.APISecret},
	}
	for _, o := range strs {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	decs := []struct {
		env string
		dst *decimal.Decimal
	}{
		{"STARTING_BALANCE", &cfg.Backtest.StartingBalance},
		{"MARGIN_MULTIPLE", &cfg.Backtest.MarginMultiple},
	}
	for _, o := range decs {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.env, err)
		}
		*o.dst = d
	}
	return nil
}
