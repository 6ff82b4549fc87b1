package gather

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"tyche/internal/domain"
	"tyche/internal/store"
	"tyche/internal/util"
)

var _ Gatherer = (*QuoteGatherer)(nil)

// BarsClient is the slice of the Alpaca market-data client the gatherer
// uses. *marketdata.Client satisfies it.
type BarsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// QuoteGathererConfig configures a QuoteGatherer.
type QuoteGathererConfig struct {
	APIKey    string
	APISecret string
	DataURL   string
	BaseURL   string // trading API, used for the calendar

	Symbols         []string
	StartDate       string
	RateLimitPerMin int
	MaxAttempts     int

	// StateDir holds the per-symbol checkpoint file.
	StateDir string
}

// QuoteGatherer downloads daily bars for a fixed set of symbols from the
// Alpaca market-data API and writes them to a BarStore. Each pass fetches
// only the days after a symbol's checkpoint, through the latest finished
// trading day.
type QuoteGatherer struct {
	client      BarsClient
	store       store.BarStore
	symbols     []string
	startDate   string
	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	stateDir    string
	endDay      func(ctx context.Context) (time.Time, error)
	log         *slog.Logger
}

// NewQuoteGatherer creates a QuoteGatherer writing into s.
func NewQuoteGatherer(cfg QuoteGathererConfig, s store.BarStore) *QuoteGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}

	symbols := make([]string, len(cfg.Symbols))
	for i, sym := range cfg.Symbols {
		symbols[i] = strings.ToUpper(sym)
	}

	return &QuoteGatherer{
		client:      marketdata.NewClient(opts),
		store:       s,
		symbols:     symbols,
		startDate:   cfg.StartDate,
		limiter:     util.NewRateLimiter(cfg.RateLimitPerMin),
		maxAttempts: max(cfg.MaxAttempts, 1),
		retryDelay:  time.Second,
		stateDir:    cfg.StateDir,
		endDay: func(context.Context) (time.Time, error) {
			return LatestFinishedTradingDay(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
		},
		log: slog.Default().With("gatherer", "quotes"),
	}
}

// Name returns the gatherer identifier.
func (g *QuoteGatherer) Name() string { return "quotes" }

// Run gathers every configured symbol up to the latest finished trading day.
// Symbols that fail are logged and skipped; Run then reports how many failed.
func (g *QuoteGatherer) Run(ctx context.Context) error {
	start, err := time.Parse(time.DateOnly, g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}
	end, err := g.endDay(ctx)
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	end = domain.Day(end)

	cp, err := loadCheckpoint(g.stateDir)
	if err != nil {
		return fmt.Errorf("loading checkpoint: %w", err)
	}

	// Symbols with the same pending range share one request.
	groups := make(map[DateRange][]string)
	for _, sym := range g.symbols {
		r := cp.Pending(sym, start, end)
		if r.Empty() {
			g.log.Debug("up to date", "symbol", sym, "endDate", end.Format(time.DateOnly))
			continue
		}
		groups[r] = append(groups[r], sym)
	}

	ranges := slices.SortedFunc(maps.Keys(groups), func(a, b DateRange) int {
		return cmp.Compare(a.Start.Unix(), b.Start.Unix())
	})

	g.log.Info("starting quotes",
		"symbols", len(g.symbols),
		"requests", len(ranges),
		"endDate", end.Format(time.DateOnly),
	)

	var failed int
	for _, r := range ranges {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		symbols := groups[r]
		bars, err := g.fetchBars(ctx, symbols, r)
		if err != nil {
			g.log.Error("fetch failed", "symbols", symbols, "err", err)
			failed += len(symbols)
			continue
		}
		if err := g.store.WriteBars(ctx, bars); err != nil {
			g.log.Error("writing bars failed", "symbols", symbols, "err", err)
			failed += len(symbols)
			continue
		}
		for _, sym := range symbols {
			if err := cp.Mark(sym, end); err != nil {
				return err
			}
		}
		g.log.Info("range done",
			"symbols", symbols,
			"start", r.Start.Format(time.DateOnly),
			"bars", len(bars),
		)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d symbols failed", failed, len(g.symbols))
	}
	return nil
}

// fetchBars fetches raw and split/dividend-adjusted daily bars for symbols
// over r and joins them into domain bars.
func (g *QuoteGatherer) fetchBars(ctx context.Context, symbols []string, r DateRange) ([]domain.Bar, error) {
	raw, err := g.fetchMultiBars(ctx, symbols, r, marketdata.Raw)
	if err != nil {
		return nil, err
	}
	adjusted, err := g.fetchMultiBars(ctx, symbols, r, marketdata.All)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range raw {
		symbol = strings.ToUpper(symbol)
		adjClose := make(map[time.Time]float64, len(alpacaBars))
		for _, ab := range adjusted[symbol] {
			adjClose[barDay(ab)] = ab.Close
		}
		for _, ab := range alpacaBars {
			day := barDay(ab)
			adj, ok := adjClose[day]
			if !ok {
				adj = ab.Close
			}
			bars = append(bars, domain.Bar{
				Symbol:        symbol,
				Date:          day,
				Open:          decimal.NewFromFloat(ab.Open),
				High:          decimal.NewFromFloat(ab.High),
				Low:           decimal.NewFromFloat(ab.Low),
				Close:         decimal.NewFromFloat(ab.Close),
				AdjustedClose: decimal.NewFromFloat(adj),
				Volume:        int64(ab.Volume),
			})
		}
	}
	return bars, nil
}

// fetchMultiBars issues one rate-limited, retried GetMultiBars call.
func (g *QuoteGatherer) fetchMultiBars(ctx context.Context, symbols []string, r DateRange, adj marketdata.Adjustment) (map[string][]marketdata.Bar, error) {
	var out map[string][]marketdata.Bar
	err := util.Retry(ctx, g.maxAttempts, g.retryDelay, 30*time.Second, func(attempt int) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		res, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Adjustment: adj,
			Start:      r.Start,
			// Daily bars are stamped at midnight ET, after midnight UTC.
			End:  r.End.AddDate(0, 0, 1),
			Feed: "sip",
		})
		if err != nil {
			if attempt < g.maxAttempts {
				g.log.Warn("GetMultiBars failed, retrying", "attempt", attempt, "err", err)
			}
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}
	return out, nil
}

// barDay maps a daily bar timestamp to its trading date.
func barDay(b marketdata.Bar) time.Time {
	return domain.Day(b.Timestamp.UTC())
}
