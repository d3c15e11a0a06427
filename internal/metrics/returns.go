// Package metrics computes the statistics block of a completed backtest:
// Sharpe, Sortino, max drawdown, probabilistic Sharpe ratio, alpha/beta
// against a benchmark, and FIFO-matched trade win-rate. It is modeled on
// the teacher's trader-go/pkg/formulas package, generalized from a single
// security's price series to a strategy's equity curve and built on
// gonum.org/v1/gonum/stat instead of the teacher's hand-rolled mean/stddev
// wrappers, since gonum already exercises skew/kurtosis this package needs.
package metrics

// Returns converts a price/equity series into simple period-over-period
// percentage returns, mirroring formulas.CalculateReturns.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			out[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}
	return out
}

// TotalReturn is (final/initial) - 1.
func TotalReturn(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return final/initial - 1
}
