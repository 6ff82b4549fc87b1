package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidKey is returned when a string is not a valid OPRA-style key.
var ErrInvalidKey = errors.New("invalid option key")

// The root is whatever precedes the fixed-width date, right and strike, so
// adjusted roots such as AAPL1 decode too.
var keyPattern = regexp.MustCompile(`^(\S+)(\d{2})(\d{2})(\d{2})([CP])(\d{8,})$`)

var strikeScale = decimal.NewFromInt(1000)

// EncodeKey returns the OPRA-style code for an option contract:
//
//	SYMBOL YY MM DD (C|P) STRIKE*1000 (at least 8 digits, zero padded)
//
// e.g. MS180601C00040000 for the MS 2018-06-01 $40 call. The strike is
// rounded to the nearest 0.001.
func EncodeKey(underlying string, expiration time.Time, strike decimal.Decimal, right Right) string {
	return fmt.Sprintf("%s%02d%02d%02d%s%08d",
		underlying,
		expiration.Year()%100, int(expiration.Month()), expiration.Day(),
		right,
		strike.Mul(strikeScale).Round(0).IntPart(),
	)
}

// DecodeKey parses an OPRA-style key produced by EncodeKey. Years are read as
// 20YY.
func DecodeKey(key string) (Instrument, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return Instrument{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	yy, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	dd, _ := strconv.Atoi(m[4])
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return Instrument{}, fmt.Errorf("%w: bad date in %q", ErrInvalidKey, key)
	}
	scaled, err := strconv.ParseInt(m[6], 10, 64)
	if err != nil {
		return Instrument{}, fmt.Errorf("%w: bad strike in %q", ErrInvalidKey, key)
	}

	exp := time.Date(2000+yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	return Option(m[1], Right(m[5]), decimal.New(scaled, -3), exp), nil
}

// IsOptionKey reports whether key looks like an option code rather than a
// stock symbol.
func IsOptionKey(key string) bool {
	return keyPattern.MatchString(key)
}
