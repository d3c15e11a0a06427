package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AnnualizedReturn applies the geometric compounding formula once there is
// enough sample to trust it (n >= max(4, N/4) periods), falling back to a
// simple arithmetic annualization of the mean return otherwise.
func AnnualizedReturn(returns []float64, periodsPerYear int) float64 {
	n := len(returns)
	if n == 0 {
		return 0
	}
	N := float64(periodsPerYear)
	threshold := int(math.Max(4, N/4))
	if n >= threshold {
		product := 1.0
		for _, r := range returns {
			product *= 1 + r
		}
		return math.Pow(product, N/float64(n)) - 1
	}
	return stat.Mean(returns, nil) * N
}
