package ledger

import (
	"slices"

	"tyche/internal/domain"
)

// match reconciles a fill against the open lots of one instrument key.
//
// Lots are consumed most recent first. The input slice is never modified;
// match returns the new open sequence, the lots closed by the fill (in the
// order they were closed) and the quantity left unmatched. The remainder is
// always zero unless reconcileOnly is set, in which case nothing is opened and
// whatever could not be matched is handed back to the caller.
func match(open []domain.Lot, fill domain.Fill, reconcileOnly bool) (kept, closed []domain.Lot, remaining int) {
	kept = slices.Clone(open)
	remaining = fill.Quantity

	for remaining != 0 && len(kept) > 0 {
		i := len(kept) - 1
		lot := kept[i]

		if sameSign(lot.Quantity, remaining) {
			// Extending an existing position, not closing it.
			break
		}

		if abs(remaining) >= abs(lot.Quantity) {
			remaining += lot.Quantity
			closed = append(closed, closeLot(lot, lot.Quantity, fill))
			kept = kept[:i]
			continue
		}

		// Partial close: the consumed part leaves as its own closed lot and
		// the rest of the lot stays open with its original entry.
		closed = append(closed, closeLot(lot, -remaining, fill))
		kept[i].Quantity += remaining
		remaining = 0
	}

	if remaining != 0 && !reconcileOnly {
		kept = append(kept, openLot(fill, remaining))
		remaining = 0
	}
	return kept, closed, remaining
}

func openLot(f domain.Fill, qty int) domain.Lot {
	return domain.Lot{
		Position: domain.Position{
			Instrument:   f.Instrument,
			Quantity:     qty,
			EntryPrice:   f.Price,
			CurrentPrice: f.Price,
		},
		OpenDate: f.Date,
	}
}

func closeLot(lot domain.Lot, qty int, f domain.Fill) domain.Lot {
	lot.Quantity = qty
	lot.CurrentPrice = f.Price
	lot.CloseDate = f.Date
	return lot
}

func sameSign(a, b int) bool {
	return (a > 0) == (b > 0)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
