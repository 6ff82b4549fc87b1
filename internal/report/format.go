// Package report renders account statements and backtest results as
// terminal tables.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats d as dollars and cents with comma separators, e.g.
// "$10,060.00" or "-$460.00".
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.StringFixed(2)
	whole, cents, _ := strings.Cut(s, ".")
	n, _ := strconv.Atoi(whole)
	return fmt.Sprintf("%s$%s.%s", sign, FormatInt(n), cents)
}

// FormatPrice formats a per-unit price, or "-" for zero.
func FormatPrice(p decimal.Decimal) string {
	if p.IsZero() {
		return "-"
	}
	return p.StringFixed(2)
}

// FormatPercent formats a fraction as a signed percentage, "+1.2%" or
// "-0.6%". Drops the decimal for values >= 100% to keep width compact.
func FormatPercent(f float64) string {
	if math.IsNaN(f) {
		return "-"
	}
	pct := f * 100
	if math.Abs(pct) >= 100 {
		return fmt.Sprintf("%+.0f%%", pct)
	}
	return fmt.Sprintf("%+.1f%%", pct)
}

// FormatRatio formats a ratio such as Sharpe or profit factor.
func FormatRatio(f float64) string {
	switch {
	case math.IsNaN(f):
		return "-"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.2f", f)
}
