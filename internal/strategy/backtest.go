package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tyche/internal/broker"
	"tyche/internal/domain"
	"tyche/internal/market"
	"tyche/internal/util"
)

// RunRequest describes one backtest.
type RunRequest struct {
	Strategy        string
	Dataset         *market.Dataset
	StartingBalance decimal.Decimal
	MarginMultiple  decimal.Decimal
	// Start and End bound the run; zero values mean the data's own range.
	Start time.Time
	End   time.Time
	// Calendar is optional; see broker.SimulatorConfig.
	Calendar *util.TradingCalendar
}

// BacktestResult holds the summary metrics produced by a backtest run.
type BacktestResult struct {
	RunID           string
	Strategy        string
	Symbol          string
	Start           time.Time
	End             time.Time
	StartingBalance decimal.Decimal
	FinalNetLiquid  decimal.Decimal
	HighBalance     decimal.Decimal
	LowBalance      decimal.Decimal
	OpenPL          decimal.Decimal
	ClosedPL        decimal.Decimal
	Positions       []domain.Position

	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	TotalTrades  int
	WinRate      float64
	ProfitFactor float64

	Orders         int
	Rejected       int
	AssignedShares int
	// Broke is set when the run stopped early with nothing open and no
	// money left.
	Broke bool

	// Account is the simulated account as of the last day run.
	Account domain.AccountInfo
	Equity  []domain.DailySnapshot
}

// Backtester replays historical market data through a strategy one day at a
// time and computes performance metrics.
type Backtester struct {
	registry *Registry
	log      *slog.Logger
}

// NewBacktester creates a Backtester that looks up strategies in the provided
// registry.
func NewBacktester(registry *Registry, logger *slog.Logger) *Backtester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backtester{
		registry: registry,
		log:      logger.With("component", "backtest"),
	}
}

// Run executes one backtest. Each day is opened, handed to the strategy,
// closed, and any put assignment is handed back to the strategy before the
// next day. The run ends at the end of the data or the requested range, or
// early when the account is broke.
func (bt *Backtester) Run(ctx context.Context, req RunRequest) (*BacktestResult, error) {
	if req.Dataset == nil {
		return nil, errors.New("backtest: no dataset")
	}
	strat, err := bt.registry.New(req.Strategy)
	if err != nil {
		return nil, err
	}
	symbol := req.Dataset.Symbol
	log := bt.log.With("strategy", strat.Name(), "symbol", symbol)

	sim, err := broker.NewSimulator(broker.SimulatorConfig{
		StartingBalance: req.StartingBalance,
		MarginMultiple:  req.MarginMultiple,
		Calendar:        req.Calendar,
		Logger:          log,
	}, req.Dataset.View())
	if err != nil {
		return nil, err
	}
	if err := strat.Init(ctx, symbol); err != nil {
		return nil, fmt.Errorf("init %s: %w", strat.Name(), err)
	}

	from, to := sim.DateRange()
	if !req.Start.IsZero() && req.Start.After(from) {
		from = domain.Day(req.Start)
	}
	if !req.End.IsZero() && req.End.Before(to) {
		to = domain.Day(req.End)
	}

	res := &BacktestResult{
		RunID:           uuid.NewString(),
		Strategy:        strat.Name(),
		Symbol:          symbol,
		StartingBalance: req.StartingBalance,
	}
	log = log.With("run_id", res.RunID)
	log.Info("backtest started", "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))

	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		opened, err := sim.OpenDate(ctx, date)
		if errors.Is(err, broker.ErrEndOfData) {
			break
		}
		if err != nil {
			return nil, err
		}
		if opened.After(to) {
			break
		}
		date = opened

		orders, err := strat.OnDay(ctx, date, sim)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", strat.Name(), date.Format(time.DateOnly), err)
		}
		if err := bt.place(ctx, sim, orders, res); err != nil {
			return nil, err
		}

		assigned, err := sim.CloseDate(ctx)
		if err != nil {
			return nil, err
		}
		if assigned > 0 {
			orders, err := strat.OnAssignment(ctx, assigned, symbol, date, sim)
			if err != nil {
				return nil, fmt.Errorf("%s assignment on %s: %w", strat.Name(), date.Format(time.DateOnly), err)
			}
			if err := bt.place(ctx, sim, orders, res); err != nil {
				return nil, err
			}
		}

		res.Equity = append(res.Equity, domain.DailySnapshot{
			Date:      date,
			Cash:      sim.StockBuyingPower(),
			NetLiquid: sim.NetLiquid(),
			OpenPL:    sim.OpenPL(),
			ClosedPL:  sim.ClosedPL(),
		})

		if !sim.HasPositions() && !sim.NetLiquid().IsPositive() {
			log.Warn("account broke, stopping", "date", date.Format(time.DateOnly))
			res.Broke = true
			break
		}
	}

	bt.finish(res, sim)
	log.Info("backtest finished",
		"days", len(res.Equity),
		"net_liquid", res.FinalNetLiquid.StringFixed(2),
		"total_return", res.TotalReturn,
		"trades", res.TotalTrades,
	)
	return res, nil
}

func (bt *Backtester) place(ctx context.Context, sim *broker.Simulator, orders []domain.Order, res *BacktestResult) error {
	for _, o := range orders {
		if _, err := sim.PlaceOrder(ctx, o); err != nil {
			return err
		}
		res.Orders++
	}
	return nil
}

func (bt *Backtester) finish(res *BacktestResult, sim *broker.Simulator) {
	acct := sim.Account()
	res.Account = acct
	res.FinalNetLiquid = acct.NetLiquid
	res.HighBalance = acct.HighBalance
	res.LowBalance = acct.LowBalance
	res.OpenPL = acct.OpenPL
	res.ClosedPL = acct.ClosedPL
	res.Positions = sim.Positions()
	res.Rejected = sim.Rejected()
	res.AssignedShares = sim.AssignedShares()
	if len(res.Equity) > 0 {
		res.Start = res.Equity[0].Date
		res.End = res.Equity[len(res.Equity)-1].Date
	} else {
		res.FinalNetLiquid = res.StartingBalance
	}

	curve := make([]float64, 0, len(res.Equity)+1)
	curve = append(curve, res.StartingBalance.InexactFloat64())
	for _, s := range res.Equity {
		curve = append(curve, s.NetLiquid.InexactFloat64())
	}
	res.TotalReturn = totalReturn(curve)
	res.SharpeRatio = sharpeRatio(dailyReturns(curve))
	res.MaxDrawdown = maxDrawdown(curve)

	closed := sim.ClosedLots()
	res.TotalTrades = len(closed)
	res.WinRate, res.ProfitFactor = tradeStats(closed)
}
