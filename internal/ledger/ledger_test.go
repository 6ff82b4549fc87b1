package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

var (
	day1 = time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2019, 1, 3, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2019, 1, 4, 0, 0, 0, 0, time.UTC)
	exp  = time.Date(2019, 1, 18, 0, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func put45() domain.Instrument {
	return domain.Option("TEAM", domain.RightPut, d("45"), exp)
}

func fill(inst domain.Instrument, qty int, price string, date time.Time) domain.Fill {
	return domain.Fill{Instrument: inst, Quantity: qty, Price: d(price), Date: date}
}

func TestReconcileZeroIsNoop(t *testing.T) {
	l := New()
	if got := l.Reconcile(fill(domain.Equity("TEAM"), 0, "10", day1), false); got != 0 {
		t.Errorf("Reconcile(0) = %d, want 0", got)
	}
	if l.HasOpen() {
		t.Error("zero quantity should not open a lot")
	}
}

func TestOpenThenCloseRealizesPL(t *testing.T) {
	for _, tt := range []struct {
		name       string
		inst       domain.Instrument
		qty        int
		open, exit string
		want       string
	}{
		{"long stock", domain.Equity("TEAM"), 10, "100", "110", "100"},
		{"short stock", domain.Equity("TEAM"), -10, "100", "110", "-100"},
		{"long put", put45(), 3, "1.20", "2.00", "240"},
		{"short put", put45(), -2, "1.50", "0.40", "220"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			l.Reconcile(fill(tt.inst, tt.qty, tt.open, day1), false)
			l.Reconcile(fill(tt.inst, -tt.qty, tt.exit, day2), false)

			if _, ok := l.Position(tt.inst.Key()); ok {
				t.Error("position should be flat after closing")
			}
			if n := len(l.Statement()); n != 0 {
				t.Errorf("len(Statement()) = %d, want 0", n)
			}
			closed := l.ClosedLots()
			if len(closed) != 1 {
				t.Fatalf("len(ClosedLots()) = %d, want 1", len(closed))
			}
			if closed[0].Quantity != tt.qty {
				t.Errorf("closed quantity = %d, want %d", closed[0].Quantity, tt.qty)
			}
			if !closed[0].CloseDate.Equal(day2) {
				t.Errorf("CloseDate = %v, want %v", closed[0].CloseDate, day2)
			}
			if got := l.ClosedPL(); !got.Equal(d(tt.want)) {
				t.Errorf("ClosedPL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPartialClose(t *testing.T) {
	l := New()
	stock := domain.Equity("TEAM")
	l.Reconcile(fill(stock, 10, "50", day1), false)
	l.Reconcile(fill(stock, -4, "55", day2), false)

	p, ok := l.Position("TEAM")
	if !ok {
		t.Fatal("expected an open position")
	}
	if p.Quantity != 6 {
		t.Errorf("Quantity = %d, want 6", p.Quantity)
	}
	if !p.EntryPrice.Equal(d("50")) {
		t.Errorf("EntryPrice = %s, want 50", p.EntryPrice)
	}

	closed := l.ClosedLots()
	if len(closed) != 1 || closed[0].Quantity != 4 {
		t.Fatalf("ClosedLots() = %v, want one lot of 4", closed)
	}
	if got := l.ClosedPL(); !got.Equal(d("20")) {
		t.Errorf("ClosedPL() = %s, want 20", got)
	}
	// The open remainder keeps its original open date.
	if lots := l.OpenLots("TEAM"); len(lots) != 1 || !lots[0].OpenDate.Equal(day1) {
		t.Errorf("OpenLots() = %v, want one lot opened %v", lots, day1)
	}
}

func TestReversal(t *testing.T) {
	l := New()
	p := put45()
	l.Reconcile(fill(p, -5, "2.00", day1), false)
	if got := l.Reconcile(fill(p, 10, "1.00", day2), false); got != 0 {
		t.Errorf("Reconcile() = %d, want 0", got)
	}

	st := l.Statement()
	if len(st) != 1 || st[0].Quantity != 5 {
		t.Fatalf("Statement() = %v, want +5", st)
	}
	if !st[0].EntryPrice.Equal(d("1.00")) {
		t.Errorf("EntryPrice = %s, want 1.00", st[0].EntryPrice)
	}

	closed := l.ClosedLots()
	if len(closed) != 1 || closed[0].Quantity != -5 {
		t.Fatalf("ClosedLots() = %v, want one lot of -5", closed)
	}
	// -5 × (1.00 − 2.00) × 100
	if got := l.ClosedPL(); !got.Equal(d("500")) {
		t.Errorf("ClosedPL() = %s, want 500", got)
	}
}

func TestCloseIsLIFO(t *testing.T) {
	l := New()
	stock := domain.Equity("TEAM")
	l.Reconcile(fill(stock, 10, "100", day1), false)
	l.Reconcile(fill(stock, 10, "120", day2), false)
	l.Reconcile(fill(stock, -15, "110", day3), false)

	// The 120 lot closes first (loss of 100), then 5 of the 100 lot (gain of 50).
	if got := l.ClosedPL(); !got.Equal(d("-50")) {
		t.Errorf("ClosedPL() = %s, want -50", got)
	}
	lots := l.OpenLots("TEAM")
	if len(lots) != 1 {
		t.Fatalf("len(OpenLots()) = %d, want 1", len(lots))
	}
	if lots[0].Quantity != 5 || !lots[0].EntryPrice.Equal(d("100")) {
		t.Errorf("remaining lot = %v, want 5 @ 100", lots[0])
	}

	closed := l.ClosedLots()
	if len(closed) != 2 {
		t.Fatalf("len(ClosedLots()) = %d, want 2", len(closed))
	}
	if !closed[0].EntryPrice.Equal(d("120")) || closed[0].Quantity != 10 {
		t.Errorf("first closed lot = %v, want 10 @ 120", closed[0])
	}
	if !closed[1].EntryPrice.Equal(d("100")) || closed[1].Quantity != 5 {
		t.Errorf("second closed lot = %v, want 5 @ 100", closed[1])
	}
}

func TestSameSignOpensNewLot(t *testing.T) {
	l := New()
	stock := domain.Equity("TEAM")
	l.Reconcile(fill(stock, 10, "10", day1), false)
	l.Reconcile(fill(stock, 5, "13", day2), false)

	if lots := l.OpenLots("TEAM"); len(lots) != 2 {
		t.Fatalf("len(OpenLots()) = %d, want 2", len(lots))
	}
	p, _ := l.Position("TEAM")
	if p.Quantity != 15 {
		t.Errorf("Quantity = %d, want 15", p.Quantity)
	}
	// (10×10 + 5×13) / 15 = 11
	if !p.EntryPrice.Equal(d("11")) {
		t.Errorf("EntryPrice = %s, want 11", p.EntryPrice)
	}
}

func TestReconcileOnly(t *testing.T) {
	stock := domain.Equity("TEAM")

	t.Run("nothing open", func(t *testing.T) {
		l := New()
		if got := l.Reconcile(fill(stock, -300, "40", day1), true); got != -300 {
			t.Errorf("Reconcile() = %d, want -300", got)
		}
		if l.HasOpen() {
			t.Error("reconcile-only must not open a lot")
		}
	})

	t.Run("underflow", func(t *testing.T) {
		l := New()
		l.Reconcile(fill(stock, 100, "35", day1), false)
		if got := l.Reconcile(fill(stock, -300, "40", day2), true); got != -200 {
			t.Errorf("Reconcile() = %d, want -200", got)
		}
		if l.HasOpen() {
			t.Error("stock should be fully delivered")
		}
		if got := l.ClosedPL(); !got.Equal(d("500")) {
			t.Errorf("ClosedPL() = %s, want 500", got)
		}
	})

	t.Run("same sign", func(t *testing.T) {
		l := New()
		l.Reconcile(fill(stock, -100, "35", day1), false)
		if got := l.Reconcile(fill(stock, -100, "40", day2), true); got != -100 {
			t.Errorf("Reconcile() = %d, want -100", got)
		}
		if got := l.NetQuantity("TEAM"); got != -100 {
			t.Errorf("NetQuantity() = %d, want -100", got)
		}
	})
}

func TestStatementSumsReconciledQuantity(t *testing.T) {
	l := New()
	p := put45()
	qtys := []int{3, 2, -1, -6, -2, 4, 7, -3, 1, -5}
	sum := 0
	for i, q := range qtys {
		price := decimal.NewFromInt(int64(i + 1))
		l.Reconcile(domain.Fill{Instrument: p, Quantity: q, Price: price, Date: day1.AddDate(0, 0, i)}, false)
		sum += q

		if got := l.NetQuantity(p.Key()); got != sum {
			t.Fatalf("step %d: NetQuantity() = %d, want %d", i, got, sum)
		}
		lots := l.OpenLots(p.Key())
		for _, lot := range lots {
			if !sameSign(lot.Quantity, lots[0].Quantity) || lot.Quantity == 0 {
				t.Fatalf("step %d: open lots %v do not share a sign", i, lots)
			}
		}
	}

	st := l.Statement()
	if sum == 0 && len(st) != 0 {
		t.Errorf("Statement() = %v, want empty", st)
	}
	if sum != 0 && (len(st) != 1 || st[0].Quantity != sum) {
		t.Errorf("Statement() = %v, want quantity %d", st, sum)
	}
}

func TestMarkPrices(t *testing.T) {
	l := New()
	p := put45()
	l.Reconcile(fill(p, -2, "1.50", day1), false)
	l.Reconcile(fill(domain.Equity("TEAM"), 100, "44", day1), false)

	err := l.MarkPrices(PriceFunc(func(inst domain.Instrument, qty int) (decimal.Decimal, error) {
		if inst.IsOption() {
			return d("1.00"), nil
		}
		return d("46"), nil
	}))
	if err != nil {
		t.Fatalf("MarkPrices returned error: %v", err)
	}

	// option: -2 × (1.00 − 1.50) × 100 = 100; stock: 100 × 2 = 200
	if got := l.OpenPL(); !got.Equal(d("300")) {
		t.Errorf("OpenPL() = %s, want 300", got)
	}
	// option: -2 × 1.00 × 100 = -200; stock: 4600
	if got := l.Value(); !got.Equal(d("4400")) {
		t.Errorf("Value() = %s, want 4400", got)
	}
}

func TestMarkPricesFailureLeavesLotsUntouched(t *testing.T) {
	l := New()
	l.Reconcile(fill(domain.Equity("TEAM"), 10, "10", day1), false)
	l.Reconcile(fill(put45(), 1, "1", day1), false)

	errUnknown := errors.New("unknown")
	err := l.MarkPrices(PriceFunc(func(inst domain.Instrument, _ int) (decimal.Decimal, error) {
		if inst.IsOption() {
			return decimal.Zero, errUnknown
		}
		return d("20"), nil
	}))
	if !errors.Is(err, errUnknown) {
		t.Fatalf("MarkPrices error = %v, want %v", err, errUnknown)
	}
	if got := l.OpenPL(); !got.IsZero() {
		t.Errorf("OpenPL() = %s, want 0", got)
	}
}

func TestExpire(t *testing.T) {
	l := New()
	p := put45()
	later := domain.Option("TEAM", domain.RightCall, d("50"), exp.AddDate(0, 1, 0))
	l.Reconcile(fill(p, -2, "1.50", day1), false)
	l.Reconcile(fill(later, 1, "0.80", day1), false)
	l.Reconcile(fill(domain.Equity("TEAM"), 100, "44", day1), false)

	if got := l.Expire(exp.AddDate(0, 0, -1)); len(got) != 0 {
		t.Fatalf("Expire() before expiration = %v, want empty", got)
	}

	got := l.Expire(exp)
	if len(got) != 1 {
		t.Fatalf("len(Expire()) = %d, want 1", len(got))
	}
	if got[0].Key() != p.Key() || got[0].Quantity != -2 {
		t.Errorf("expired lot = %v, want %s x -2", got[0], p.Key())
	}
	if got[0].Closed() {
		t.Error("returned lot should reflect its state before closing")
	}
	if _, ok := l.Position(p.Key()); ok {
		t.Error("expired position should be removed from the open set")
	}
	if n := len(l.Statement()); n != 2 {
		t.Errorf("len(Statement()) = %d, want 2", n)
	}

	closed := l.ClosedLots()
	if len(closed) != 1 || !closed[0].CloseDate.Equal(exp) {
		t.Errorf("ClosedLots() = %v, want one lot closed %v", closed, exp)
	}

	if again := l.Expire(exp); len(again) != 0 {
		t.Errorf("second Expire() = %v, want empty", again)
	}
}

func TestStatementOrderedByKey(t *testing.T) {
	l := New()
	l.Reconcile(fill(domain.Equity("ZZZ"), 1, "1", day1), false)
	l.Reconcile(fill(domain.Equity("AAA"), 1, "1", day1), false)
	l.Reconcile(fill(put45(), 1, "1", day1), false)

	st := l.Statement()
	for i := 1; i < len(st); i++ {
		if st[i-1].Key() > st[i].Key() {
			t.Errorf("Statement() not sorted: %s before %s", st[i-1].Key(), st[i].Key())
		}
	}
}
