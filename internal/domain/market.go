package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionQuote is one row of an option chain: the end-of-day state of a single
// contract on a single data date.
type OptionQuote struct {
	Key             string
	Underlying      string
	UnderlyingPrice decimal.Decimal
	Right           Right
	Expiration      time.Time
	DataDate        time.Time
	Strike          decimal.Decimal
	Last            decimal.Decimal
	Bid             decimal.Decimal
	Ask             decimal.Decimal
	Volume          int64
	OpenInterest    int64
	IV              float64
	Delta           float64
}

// Instrument returns the contract described by the row.
func (q OptionQuote) Instrument() Instrument {
	return Option(q.Underlying, q.Right, q.Strike, q.Expiration)
}

// Bar is one daily OHLCV record for an equity.
type Bar struct {
	Symbol        string
	Date          time.Time
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Close         decimal.Decimal
	AdjustedClose decimal.Decimal
	Volume        int64
}
