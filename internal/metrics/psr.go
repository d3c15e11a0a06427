package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PSR is the probabilistic Sharpe ratio: the probability the strategy's
// true Sharpe ratio exceeds benchmarkSR, given the sample skew and
// kurtosis of its returns (Bailey & López de Prado). benchmarkSR defaults
// to 1.0 per the design document when the caller has no better prior.
func PSR(returns []float64, sharpe, benchmarkSR float64) float64 {
	t := len(returns)
	if t < 2 {
		return 0
	}
	skew := stat.Skew(returns, nil)
	kurt := stat.ExKurtosis(returns, nil) + 3 // gonum reports excess kurtosis

	variance := (1 - skew*sharpe + ((kurt-1)/4)*sharpe*sharpe) / float64(t-1)
	if variance <= 0 {
		return 0
	}
	sigmaSR := math.Sqrt(variance)
	z := (sharpe - benchmarkSR) / sigmaSR
	return distuv.Normal{Mu: 0, Sigma: 1}.CDF(z)
}
