package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NoAlphaBeta is the sentinel reported when the benchmark series could not
// be fetched or aligned, per spec.md §4.E ("on failure, report sentinel
// (−∞) and log").
var NoAlphaBeta = math.Inf(-1)

// AlphaBeta computes beta = Cov(r_s, r_b)/Var(r_b) and the annualized alpha
// against it: α = (1+mean(r_s))^N − 1 − (rf + β·((1+mean(r_b))^N − 1 − rf)).
// stratReturns and benchReturns must already be aligned to the same
// timestamps by the caller.
func AlphaBeta(stratReturns, benchReturns []float64, periodsPerYear int, riskFreeAnnual float64) (alpha, beta float64, ok bool) {
	if len(stratReturns) < 2 || len(stratReturns) != len(benchReturns) {
		return NoAlphaBeta, NoAlphaBeta, false
	}
	varBench := stat.Variance(benchReturns, nil)
	if varBench == 0 {
		return NoAlphaBeta, NoAlphaBeta, false
	}
	beta = stat.Covariance(stratReturns, benchReturns, nil) / varBench

	N := float64(periodsPerYear)
	stratAnnual := math.Pow(1+stat.Mean(stratReturns, nil), N) - 1
	benchAnnual := math.Pow(1+stat.Mean(benchReturns, nil), N) - 1
	alpha = stratAnnual - (riskFreeAnnual + beta*(benchAnnual-riskFreeAnnual))
	return alpha, beta, true
}
