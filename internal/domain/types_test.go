package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTypesExist(t *testing.T) {
	// Verify Position can be instantiated with zero values.
	pos := Position{}
	if pos.Quantity != 0 {
		t.Error("expected zero Quantity for zero-value Position")
	}
	if !pos.EntryPrice.IsZero() || !pos.CurrentPrice.IsZero() {
		t.Error("expected zero prices for zero-value Position")
	}
	if pos.IsOption() {
		t.Error("zero-value Position should not be an option")
	}

	// Verify Lot starts open.
	lot := Lot{}
	if lot.Closed() {
		t.Error("zero-value Lot should not be closed")
	}

	// Verify enum constants are defined correctly.
	if RightCall != "C" || RightPut != "P" {
		t.Error("Right constants have unexpected values")
	}
	if OrderStatusPlaced != "placed" {
		t.Errorf("OrderStatusPlaced = %q, want %q", OrderStatusPlaced, "placed")
	}
	if !OrderStatusPlaced.Accepted() || OrderStatusInsufficientCash.Accepted() {
		t.Error("only OrderStatusPlaced should be accepted")
	}
	if got := OrderStatusInsufficientBuyingPower.Reason(); got != "Insufficient Option Buying Power" {
		t.Errorf("Reason() = %q, want %q", got, "Insufficient Option Buying Power")
	}
}

func TestEquityInstrument(t *testing.T) {
	s := Equity("TEAM")
	if s.IsOption() {
		t.Error("Equity should not be an option")
	}
	if s.Key() != "TEAM" {
		t.Errorf("Key() = %q, want %q", s.Key(), "TEAM")
	}
	if !s.Strike.IsZero() || !s.Expiration.IsZero() {
		t.Error("stock should carry zero strike and expiration")
	}
	if !s.Multiplier().Equal(decimal.NewFromInt(1)) {
		t.Errorf("Multiplier() = %s, want 1", s.Multiplier())
	}
}

func TestNormalize(t *testing.T) {
	exp := time.Date(2018, 6, 1, 15, 30, 0, 0, time.UTC)
	s := Instrument{Underlying: "TEAM", Kind: KindEquity, Right: RightCall, Strike: decimal.NewFromInt(65), Expiration: exp}.Normalize()
	if s != Equity("TEAM") {
		t.Errorf("Normalize() = %+v, want %+v", s, Equity("TEAM"))
	}

	o := Instrument{Underlying: "MS", Kind: KindDerivative, Right: RightPut, Strike: decimal.NewFromInt(40), Expiration: exp}.Normalize()
	if !o.Expiration.Equal(time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Normalize().Expiration = %v, want truncated day", o.Expiration)
	}
	if o.Key() != "MS180601P00040000" {
		t.Errorf("Normalize().Key() = %q, want %q", o.Key(), "MS180601P00040000")
	}
}

func TestOptionInstrument(t *testing.T) {
	exp := time.Date(2018, 6, 1, 15, 30, 0, 0, time.UTC)
	c := Option("MS", RightCall, decimal.NewFromInt(40), exp)

	if !c.IsCall() || c.IsPut() {
		t.Error("expected a call")
	}
	if !c.Expiration.Equal(time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expiration = %v, want truncated day", c.Expiration)
	}
	if c.Key() != "MS180601C00040000" {
		t.Errorf("Key() = %q, want %q", c.Key(), "MS180601C00040000")
	}
	if !c.Multiplier().Equal(decimal.NewFromInt(100)) {
		t.Errorf("Multiplier() = %s, want 100", c.Multiplier())
	}
}

func TestInTheMoney(t *testing.T) {
	exp := time.Date(2019, 1, 18, 0, 0, 0, 0, time.UTC)
	strike := decimal.NewFromInt(50)
	call := Option("X", RightCall, strike, exp)
	put := Option("X", RightPut, strike, exp)

	tests := []struct {
		name  string
		inst  Instrument
		price float64
		want  bool
	}{
		{"call above strike", call, 51, true},
		{"call at strike", call, 50, true},
		{"call below strike", call, 49, false},
		{"put below strike", put, 49, true},
		{"put at strike", put, 50, true},
		{"put above strike", put, 51, false},
		{"stock", Equity("X"), 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inst.InTheMoney(decimal.NewFromFloat(tt.price)); got != tt.want {
				t.Errorf("InTheMoney(%v) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestPositionPL(t *testing.T) {
	exp := time.Date(2019, 1, 18, 0, 0, 0, 0, time.UTC)
	opt := Position{
		Instrument:   Option("X", RightPut, decimal.NewFromInt(45), exp),
		Quantity:     -2,
		EntryPrice:   decimal.RequireFromString("1.50"),
		CurrentPrice: decimal.RequireFromString("0.25"),
	}
	// -2 × (0.25 − 1.50) × 100 = 250
	if got := opt.PL(); !got.Equal(decimal.NewFromInt(250)) {
		t.Errorf("option PL() = %s, want 250", got)
	}
	// -2 × 0.25 × 100 = -50
	if got := opt.Value(); !got.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("option Value() = %s, want -50", got)
	}

	stock := Position{
		Instrument:   Equity("X"),
		Quantity:     10,
		EntryPrice:   decimal.NewFromInt(20),
		CurrentPrice: decimal.NewFromInt(23),
	}
	if got := stock.PL(); !got.Equal(decimal.NewFromInt(30)) {
		t.Errorf("stock PL() = %s, want 30", got)
	}
	if got := stock.Value(); !got.Equal(decimal.NewFromInt(230)) {
		t.Errorf("stock Value() = %s, want 230", got)
	}
}

func TestParseRight(t *testing.T) {
	for _, s := range []string{"C", "call", "Call", " CALL "} {
		if r, err := ParseRight(s); err != nil || r != RightCall {
			t.Errorf("ParseRight(%q) = %q, %v; want C", s, r, err)
		}
	}
	for _, s := range []string{"P", "put", "PUT"} {
		if r, err := ParseRight(s); err != nil || r != RightPut {
			t.Errorf("ParseRight(%q) = %q, %v; want P", s, r, err)
		}
	}
	if _, err := ParseRight("S"); err == nil {
		t.Error("ParseRight(\"S\") should fail")
	}
}
