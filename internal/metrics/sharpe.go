package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Sharpe is annualized √N · (mean(r) − rf_per_period) / std(r). Returns 0
// when the sample standard deviation is undefined, rather than the
// teacher's *float64-nil convention — the response contract here is a
// concrete Metrics struct field, not an optional score.
func Sharpe(returns []float64, riskFreeAnnual float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	std := stat.StdDev(returns, nil)
	if std == 0 {
		return 0
	}
	rfPerPeriod := riskFreeAnnual / float64(periodsPerYear)
	mean := stat.Mean(returns, nil)
	return math.Sqrt(float64(periodsPerYear)) * (mean - rfPerPeriod) / std
}

// Sortino is annualized √N · mean(r − rf) / √mean(min(r−rf, 0)²).
func Sortino(returns []float64, riskFreeAnnual float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	rfPerPeriod := riskFreeAnnual / float64(periodsPerYear)
	excess := make([]float64, len(returns))
	downsideSq := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfPerPeriod
		if d := math.Min(excess[i], 0); d != 0 {
			downsideSq[i] = d * d
		}
	}
	downsideRisk := math.Sqrt(stat.Mean(downsideSq, nil))
	if downsideRisk == 0 {
		return 0
	}
	return math.Sqrt(float64(periodsPerYear)) * stat.Mean(excess, nil) / downsideRisk
}
