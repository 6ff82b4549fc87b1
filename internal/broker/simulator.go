package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
	"tyche/internal/ledger"
	"tyche/internal/market"
	"tyche/internal/util"
)

// Compile-time interface check.
var _ Broker = (*Simulator)(nil)

// SimulatorConfig holds the account parameters of one run.
type SimulatorConfig struct {
	StartingBalance decimal.Decimal
	MarginMultiple  decimal.Decimal
	// Calendar decides which days are skipped without consulting the data.
	// Nil means weekends only.
	Calendar *util.TradingCalendar
	Logger   *slog.Logger
}

// Simulator is the broker of one backtest run. Each trading day goes through
// OpenDate, any number of PlaceOrder calls, then CloseDate. It owns its
// ledger and market cursor and is not safe for concurrent use.
type Simulator struct {
	log      *slog.Logger
	ledger   *ledger.Ledger
	market   *market.Market
	calendar *util.TradingCalendar
	risk     *RiskManager

	date       time.Time
	open       bool
	underlying decimal.Decimal

	cash  decimal.Decimal
	high  decimal.Decimal
	low   decimal.Decimal
	cover int

	// Shares assigned while catching up on expirations missed over
	// no-data days; reported by the next CloseDate.
	pendingAssigned int

	rejected int
	assigned int
}

// NewSimulator creates a Simulator trading against m.
func NewSimulator(cfg SimulatorConfig, m *market.Market) (*Simulator, error) {
	if !cfg.MarginMultiple.IsPositive() {
		return nil, fmt.Errorf("margin multiple must be positive, got %s", cfg.MarginMultiple)
	}
	if cfg.Calendar == nil {
		cfg.Calendar = util.NewTradingCalendar()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Simulator{
		log:      cfg.Logger.With("component", "broker", "symbol", m.Quote.Symbol()),
		ledger:   ledger.New(),
		market:   m,
		calendar: cfg.Calendar,
		risk:     NewRiskManager(cfg.MarginMultiple),
		cash:     cfg.StartingBalance,
		high:     cfg.StartingBalance,
		low:      cfg.StartingBalance,
	}, nil
}

// Name returns "simulator".
func (b *Simulator) Name() string {
	return "simulator"
}

// CurrentDate returns the last opened date.
func (b *Simulator) CurrentDate() time.Time { return b.date }

// DateRange returns the span of dates the market data can open.
func (b *Simulator) DateRange() (time.Time, time.Time) { return b.market.DateRange() }

// OpenDate starts the trading day at or after date and returns the date
// actually opened. Weekends and calendar holidays are skipped first; days
// without data are then skipped one at a time. Dates before the data start
// open the first data day. Running past the end of the data returns
// ErrEndOfData.
func (b *Simulator) OpenDate(ctx context.Context, date time.Time) (time.Time, error) {
	from, to := b.market.DateRange()
	d := b.calendar.NextTradingDay(date)
	if d.Before(from) {
		d = from
	}

	for {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		if to.IsZero() || d.After(to) {
			return time.Time{}, fmt.Errorf("open %s: %w", d.Format(time.DateOnly), ErrEndOfData)
		}
		err := b.market.SetCurrentDate(d)
		if err == nil {
			break
		}
		if !errors.Is(err, market.ErrInvalidDate) {
			return time.Time{}, err
		}
		b.log.Debug("no market data, skipping day", "date", d.Format(time.DateOnly))
		d = d.AddDate(0, 0, 1)
	}

	price, err := b.market.Quote.Price()
	if err != nil {
		return time.Time{}, fmt.Errorf("underlying price on %s: %w", d.Format(time.DateOnly), err)
	}
	b.date, b.open, b.underlying = d, true, price

	// Contracts that expired on a day without data are no longer quoted and
	// could not be marked; settle them before marking.
	n, err := b.expire(d.AddDate(0, 0, -1))
	if err != nil {
		return time.Time{}, err
	}
	b.pendingAssigned += n

	if err := b.ledger.MarkPrices(b.market); err != nil {
		return time.Time{}, fmt.Errorf("mark prices on %s: %w", d.Format(time.DateOnly), err)
	}
	return d, nil
}

// PlaceOrder prices the order at the current market, validates it against
// cash and option buying power and, if accepted, reconciles every leg.
// Orders placed after CloseDate still fill at that day's prices, which is how
// assignment follow-ups are handled.
func (b *Simulator) PlaceOrder(_ context.Context, order domain.Order) (domain.OrderStatus, error) {
	if b.date.IsZero() {
		return "", ErrDateNotOpen
	}
	if len(order.Legs) == 0 {
		return domain.OrderStatusEmpty, nil
	}

	fills := make([]domain.Fill, 0, len(order.Legs))
	cost := decimal.Zero
	cover := 0
	held := make(map[string]int)
	for _, leg := range order.Legs {
		leg.Instrument = leg.Instrument.Normalize()
		price, err := b.market.PriceFor(leg.Instrument, leg.Quantity)
		if err != nil {
			return "", fmt.Errorf("price %s: %w", leg.Key(), err)
		}
		f := domain.Fill{Instrument: leg.Instrument, Quantity: leg.Quantity, Price: price, Date: b.date}
		fills = append(fills, f)

		cost = cost.Add(decimal.NewFromInt(int64(leg.Quantity)).Mul(price).Mul(leg.Multiplier()))
		if leg.IsOption() {
			key := leg.Key()
			if _, ok := held[key]; !ok {
				held[key] = b.ledger.NetQuantity(key)
			}
			cover += coverDelta(held[key], leg.Quantity)
			held[key] += leg.Quantity
		} else {
			cover += leg.Quantity
		}
	}

	status := b.risk.CheckOrder(b.cash, cost, b.cover, cover, b.underlying)
	if !status.Accepted() {
		b.rejected++
		b.log.Info("order rejected",
			"date", b.date.Format(time.DateOnly),
			"reason", status.Reason(),
			"cost", cost.StringFixed(2),
			"cash", b.cash.StringFixed(2),
			"cover_delta", cover,
		)
		return status, nil
	}

	for _, f := range fills {
		b.ledger.Reconcile(f, false)
	}
	b.cash = b.cash.Sub(cost)
	b.cover += cover
	return domain.OrderStatusPlaced, nil
}

// CloseDate expires every contract due on the current date, settles long
// in-the-money options for cash and assigns short in-the-money options, then
// records the day's cash watermarks. It returns the number of shares taken on
// through put assignment.
func (b *Simulator) CloseDate(_ context.Context) (int, error) {
	if !b.open {
		return 0, ErrDateNotOpen
	}
	n, err := b.expire(b.date)
	if err != nil {
		return 0, err
	}
	n += b.pendingAssigned
	b.pendingAssigned = 0

	b.low = decimal.Min(b.low, b.cash)
	b.high = decimal.Max(b.high, b.cash)
	b.open = false

	b.log.Debug("day closed",
		"date", b.date.Format(time.DateOnly),
		"cash", b.cash.StringFixed(2),
		"obp", b.OptionBuyingPower(b.cash).StringFixed(2),
		"net_liquid", b.NetLiquid().StringFixed(2),
		"assigned", n,
	)
	return n, nil
}

func (b *Simulator) expire(asOf time.Time) (int, error) {
	assigned := 0
	for _, lot := range b.ledger.Expire(asOf) {
		spot, err := b.underlyingAt(lot)
		if err != nil {
			return assigned, err
		}
		itm := lot.InTheMoney(spot)

		switch {
		case lot.IsLong():
			if itm {
				b.cash = b.cash.Add(lot.Value())
			}
		case lot.IsCall():
			b.cover += -lot.Quantity * domain.OptionMultiplier
			if itm {
				b.assignCall(lot, spot)
			}
		case lot.IsPut():
			b.cover += -lot.Quantity * domain.OptionMultiplier
			if itm {
				assigned += b.assignPut(lot)
			}
		}

		b.log.Info("option expired",
			"date", asOf.Format(time.DateOnly),
			"key", lot.Key(),
			"quantity", lot.Quantity,
			"underlying", spot.StringFixed(2),
			"itm", itm,
		)
	}
	return assigned, nil
}

// assignCall delivers the shares of an assigned short call at the strike.
// Held stock is delivered first; any shortfall is bought at spot.
func (b *Simulator) assignCall(lot domain.Lot, spot decimal.Decimal) {
	shares := -lot.Quantity * domain.OptionMultiplier
	left := b.ledger.Reconcile(domain.Fill{
		Instrument: domain.Equity(lot.Underlying),
		Quantity:   -shares,
		Price:      lot.Strike,
		Date:       b.date,
	}, true)
	short := -left
	delivered := shares - short

	b.cash = b.cash.
		Add(decimal.NewFromInt(int64(shares)).Mul(lot.Strike)).
		Sub(decimal.NewFromInt(int64(short)).Mul(spot))
	b.cover -= delivered

	b.log.Info("call assigned",
		"key", lot.Key(),
		"shares", shares,
		"delivered", delivered,
		"bought_at_spot", short,
	)
}

// assignPut takes delivery of the shares of an assigned short put at the
// strike and returns the share count.
func (b *Simulator) assignPut(lot domain.Lot) int {
	shares := -lot.Quantity * domain.OptionMultiplier
	b.ledger.Reconcile(domain.Fill{
		Instrument: domain.Equity(lot.Underlying),
		Quantity:   shares,
		Price:      lot.Strike,
		Date:       b.date,
	}, false)

	b.cash = b.cash.Sub(decimal.NewFromInt(int64(shares)).Mul(lot.Strike))
	b.cover += shares
	b.assigned += shares

	b.log.Info("put assigned", "key", lot.Key(), "shares", shares)
	return shares
}

// underlyingAt returns the underlying price used to settle an expiring lot:
// the price on the contract's own chain row, or the quote close when the
// contract is no longer quoted.
func (b *Simulator) underlyingAt(lot domain.Lot) (decimal.Decimal, error) {
	price, err := b.market.Chain.UnderlyingPrice(lot.Key())
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, market.ErrUnknownInstrument) && !errors.Is(err, market.ErrNoDate) {
		return decimal.Zero, err
	}
	b.log.Warn("expiring contract not quoted, using stock close",
		"key", lot.Key(),
		"date", b.date.Format(time.DateOnly),
	)
	return b.market.Quote.Price()
}

// Positions returns the ledger statement.
func (b *Simulator) Positions() []domain.Position { return b.ledger.Statement() }

// StockBuyingPower returns the cash balance.
func (b *Simulator) StockBuyingPower() decimal.Decimal { return b.cash }

// OptionBuyingPower returns the option notional that may be written.
func (b *Simulator) OptionBuyingPower(cashAvailable decimal.Decimal) decimal.Decimal {
	return b.risk.OptionBuyingPower(b.cover, b.underlying, cashAvailable)
}

// NetLiquid returns cash plus the liquidation value of open positions.
func (b *Simulator) NetLiquid() decimal.Decimal { return b.ledger.Value().Add(b.cash) }

// OpenPL returns unrealized profit or loss at the last marked prices.
func (b *Simulator) OpenPL() decimal.Decimal { return b.ledger.OpenPL() }

// ClosedPL returns realized profit or loss.
func (b *Simulator) ClosedPL() decimal.Decimal { return b.ledger.ClosedPL() }

// ClosedLots returns every lot closed so far.
func (b *Simulator) ClosedLots() []domain.Lot { return b.ledger.ClosedLots() }

// HasPositions reports whether anything is open.
func (b *Simulator) HasPositions() bool { return b.ledger.HasOpen() }

// Rejected returns the number of rejected orders.
func (b *Simulator) Rejected() int { return b.rejected }

// AssignedShares returns the total shares taken on through put assignment.
func (b *Simulator) AssignedShares() int { return b.assigned }

// Chain returns the option chain cursor.
func (b *Simulator) Chain() *market.Chain { return b.market.Chain }

// Quote returns the stock quote cursor.
func (b *Simulator) Quote() *market.Quote { return b.market.Quote }

// Account returns a snapshot of the account.
func (b *Simulator) Account() domain.AccountInfo {
	return domain.AccountInfo{
		Date:            b.date,
		Cash:            b.cash,
		HighBalance:     b.high,
		LowBalance:      b.low,
		CoverShares:     b.cover,
		MarginMultiple:  b.risk.MarginMultiple(),
		UnderlyingPrice: b.underlying,
		OpenPL:          b.ledger.OpenPL(),
		ClosedPL:        b.ledger.ClosedPL(),
		PositionValue:   b.ledger.Value(),
		NetLiquid:       b.NetLiquid(),
		BuyingPower:     b.OptionBuyingPower(b.cash),
	}
}
