package builtins

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/broker"
	"tyche/internal/domain"
	"tyche/internal/market"
	"tyche/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*PutWriter)(nil)

// PutWriter sells cash-secured puts. When it holds no options it writes the
// highest strike put at or below spot on the first expiration at least
// DaysOut days away, sizing the trade so that cash covers assignment.
// Assigned shares are sold at market by the embedded Base.
type PutWriter struct {
	strategy.Base

	DaysOut      int
	Weekly       bool
	MaxContracts int

	symbol string
	log    *slog.Logger
}

// NewPutWriter creates a PutWriter with default parameters.
func NewPutWriter() *PutWriter {
	return &PutWriter{DaysOut: 25, Weekly: true, MaxContracts: 10}
}

// Name returns "put-writer".
func (s *PutWriter) Name() string { return "put-writer" }

// Init records the traded symbol.
func (s *PutWriter) Init(_ context.Context, symbol string) error {
	s.symbol = symbol
	s.log = slog.Default().With("component", "strategy", "strategy", s.Name(), "symbol", symbol)
	return nil
}

// OnDay writes a new put when no option position is open.
func (s *PutWriter) OnDay(_ context.Context, date time.Time, b broker.Broker) ([]domain.Order, error) {
	for _, p := range b.Positions() {
		if p.IsOption() {
			return nil, nil
		}
	}

	spot, err := b.Quote().Price()
	if err != nil {
		return nil, err
	}
	exp, err := b.Chain().FindExpiration(date, s.DaysOut, s.Weekly)
	if errors.Is(err, market.ErrNoExpiration) {
		s.log.Debug("no expiration to write", "date", date.Format(time.DateOnly), "err", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var best *domain.OptionQuote
	for _, q := range b.Chain().Contracts(func(q domain.OptionQuote) bool {
		return q.Right == domain.RightPut &&
			q.Expiration.Equal(exp) &&
			q.Strike.LessThanOrEqual(spot) &&
			q.Bid.IsPositive()
	}) {
		if best == nil || q.Strike.GreaterThan(best.Strike) {
			best = &q
		}
	}
	if best == nil {
		return nil, nil
	}

	notional := best.Strike.Mul(decimal.NewFromInt(domain.OptionMultiplier))
	n := sharesFor(b.StockBuyingPower(), notional)
	if s.MaxContracts > 0 && n > s.MaxContracts {
		n = s.MaxContracts
	}
	if n == 0 {
		return nil, nil
	}
	return []domain.Order{
		domain.NewOrder(domain.Leg{Instrument: best.Instrument(), Quantity: -n}),
	}, nil
}
