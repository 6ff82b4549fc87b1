// Package ledger keeps the open and closed order lots of one simulation run
// and reconciles fills against them.
package ledger

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

// PriceSource supplies the current market price of an instrument. qty is the
// signed quantity held, so sources can price longs and shorts differently.
type PriceSource interface {
	PriceFor(inst domain.Instrument, qty int) (decimal.Decimal, error)
}

// PriceFunc adapts a function to PriceSource.
type PriceFunc func(inst domain.Instrument, qty int) (decimal.Decimal, error)

// PriceFor calls f.
func (f PriceFunc) PriceFor(inst domain.Instrument, qty int) (decimal.Decimal, error) {
	return f(inst, qty)
}

// Ledger holds lots keyed by instrument key. Open lots for a key are ordered
// oldest first and always share one sign. Closed lots are append-only.
//
// A Ledger belongs to a single run and is not safe for concurrent use.
type Ledger struct {
	open   map[string][]domain.Lot
	closed map[string][]domain.Lot
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{
		open:   make(map[string][]domain.Lot),
		closed: make(map[string][]domain.Lot),
	}
}

// Reconcile applies a fill to the lots of its instrument. Opposite-signed
// quantity closes existing lots (most recent first); same-signed quantity
// opens a new lot. With reconcileOnly set no lot is ever opened and the
// quantity that could not be matched is returned. Otherwise the result is 0.
func (l *Ledger) Reconcile(f domain.Fill, reconcileOnly bool) int {
	if f.Quantity == 0 {
		return 0
	}
	key := f.Key()

	kept, closed, remaining := match(l.open[key], f, reconcileOnly)
	if len(kept) == 0 {
		delete(l.open, key)
	} else {
		l.open[key] = kept
	}
	if len(closed) > 0 {
		l.closed[key] = append(l.closed[key], closed...)
	}
	return remaining
}

// MarkPrices sets the current price of every open lot from src. Lots are
// only updated when every lookup succeeds.
func (l *Ledger) MarkPrices(src PriceSource) error {
	marked := make(map[string][]domain.Lot, len(l.open))
	for key, lots := range l.open {
		next := slices.Clone(lots)
		for i := range next {
			price, err := src.PriceFor(next[i].Instrument, next[i].Quantity)
			if err != nil {
				return fmt.Errorf("marking %s: %w", key, err)
			}
			next[i].CurrentPrice = price
		}
		marked[key] = next
	}
	l.open = marked
	return nil
}

// OpenPL returns the unrealized profit or loss across all open lots at their
// last marked prices.
func (l *Ledger) OpenPL() decimal.Decimal {
	total := decimal.Zero
	for _, lots := range l.open {
		for _, lot := range lots {
			total = total.Add(lot.PL())
		}
	}
	return total
}

// ClosedPL returns the realized profit or loss, summed fresh from every
// closed lot.
func (l *Ledger) ClosedPL() decimal.Decimal {
	total := decimal.Zero
	for _, lots := range l.closed {
		for _, lot := range lots {
			total = total.Add(lot.PL())
		}
	}
	return total
}

// Value returns the liquidation value of all open lots.
func (l *Ledger) Value() decimal.Decimal {
	total := decimal.Zero
	for _, lots := range l.open {
		for _, lot := range lots {
			total = total.Add(lot.Value())
		}
	}
	return total
}

// Statement merges the open lots of each instrument into one Position.
// Entry and current prices are averages weighted by lot size. Positions are
// ordered by instrument key.
func (l *Ledger) Statement() []domain.Position {
	out := make([]domain.Position, 0, len(l.open))
	for _, key := range slices.Sorted(maps.Keys(l.open)) {
		if p, ok := merge(l.open[key]); ok {
			out = append(out, p)
		}
	}
	return out
}

// Position returns the merged position for key, or false when nothing is open.
func (l *Ledger) Position(key string) (domain.Position, bool) {
	return merge(l.open[key])
}

// NetQuantity returns the signed open quantity for key.
func (l *Ledger) NetQuantity(key string) int {
	n := 0
	for _, lot := range l.open[key] {
		n += lot.Quantity
	}
	return n
}

// HasOpen reports whether any lot is open.
func (l *Ledger) HasOpen() bool { return len(l.open) > 0 }

// OpenLots returns a copy of the open lots for key, oldest first.
func (l *Ledger) OpenLots(key string) []domain.Lot {
	return slices.Clone(l.open[key])
}

// ClosedLots returns every closed lot ordered by instrument key and then by
// close order.
func (l *Ledger) ClosedLots() []domain.Lot {
	var out []domain.Lot
	for _, key := range slices.Sorted(maps.Keys(l.closed)) {
		out = append(out, l.closed[key]...)
	}
	return out
}

// Expire closes every open lot whose expiration is on or before asOf and
// returns the lots as they were before closing, so callers can decide the
// economic outcome from their quantity, strike and last price. Calling it
// again for the same date returns nothing.
func (l *Ledger) Expire(asOf time.Time) []domain.Lot {
	asOf = domain.Day(asOf)

	var expiring []domain.Lot
	for _, key := range slices.Sorted(maps.Keys(l.open)) {
		var keep []domain.Lot
		for _, lot := range l.open[key] {
			if lot.Expiration.IsZero() || lot.Expiration.After(asOf) {
				keep = append(keep, lot)
				continue
			}
			expiring = append(expiring, lot)

			lot.CloseDate = asOf
			l.closed[key] = append(l.closed[key], lot)
		}
		if len(keep) == 0 {
			delete(l.open, key)
		} else {
			l.open[key] = keep
		}
	}
	return expiring
}

func merge(lots []domain.Lot) (domain.Position, bool) {
	if len(lots) == 0 {
		return domain.Position{}, false
	}
	var (
		qty    int
		weight int
		entry  = decimal.Zero
		cur    = decimal.Zero
	)
	for _, lot := range lots {
		w := decimal.NewFromInt(int64(abs(lot.Quantity)))
		qty += lot.Quantity
		weight += abs(lot.Quantity)
		entry = entry.Add(lot.EntryPrice.Mul(w))
		cur = cur.Add(lot.CurrentPrice.Mul(w))
	}
	if qty == 0 {
		return domain.Position{}, false
	}
	total := decimal.NewFromInt(int64(weight))
	return domain.Position{
		Instrument:   lots[0].Instrument,
		Quantity:     qty,
		EntryPrice:   entry.Div(total),
		CurrentPrice: cur.Div(total),
	}, true
}
