package strategy

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"tyche/internal/domain"
)

const tradingDaysPerYear = 252

func totalReturn(curve []float64) float64 {
	if len(curve) < 2 || curve[0] == 0 {
		return 0
	}
	return curve[len(curve)-1]/curve[0] - 1
}

func dailyReturns(curve []float64) []float64 {
	var out []float64
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		out = append(out, curve[i]/curve[i-1]-1)
	}
	return out
}

// sharpeRatio annualizes the mean daily return over its standard deviation,
// assuming a zero risk-free rate.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviation(returns)
	if err != nil || sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the largest peak-to-trough fall as a fraction of the
// peak.
func maxDrawdown(curve []float64) float64 {
	var peak, worst float64
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// tradeStats returns the share of closed lots with a positive P/L and gross
// profit over gross loss. The profit factor is +Inf with no losing lots.
func tradeStats(closed []domain.Lot) (winRate, profitFactor float64) {
	if len(closed) == 0 {
		return 0, 0
	}
	wins := 0
	profit, loss := decimal.Zero, decimal.Zero
	for _, lot := range closed {
		pl := lot.PL()
		switch {
		case pl.IsPositive():
			wins++
			profit = profit.Add(pl)
		case pl.IsNegative():
			loss = loss.Sub(pl)
		}
	}
	winRate = float64(wins) / float64(len(closed))
	switch {
	case loss.IsZero() && profit.IsZero():
		profitFactor = 0
	case loss.IsZero():
		profitFactor = math.Inf(1)
	default:
		profitFactor = profit.Div(loss).InexactFloat64()
	}
	return winRate, profitFactor
}
