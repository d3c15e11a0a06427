package metrics

import (
	"context"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// RiskFreeRate is the fixed annual risk-free rate per spec.md §4.E. A
// real deployment may substitute a time-varying series; this constant is
// the documented default.
const RiskFreeRate = 0.035

// DefaultBenchmarkSR is the Sharpe ratio the probabilistic Sharpe ratio is
// measured against when the caller supplies no sharper prior.
const DefaultBenchmarkSR = 1.0

// Compute builds the Metrics and EquityStats response blocks from a raw
// execution result, fetching ^GSPC through benchmarkProvider for
// alpha/beta. A nil benchmarkProvider (or a fetch failure) degrades alpha
// and beta to the sentinel rather than failing the whole backtest.
func Compute(ctx context.Context, res *domain.RawExecutionResult, initialCapital float64, cadence domain.Cadence, benchmarkProvider BenchmarkProvider) (domain.Metrics, domain.EquityStats, error) {
	times, values, err := res.EquityCurveSorted()
	if err != nil {
		return domain.Metrics{}, domain.EquityStats{}, err
	}
	if len(values) == 0 {
		return domain.Metrics{}, domain.EquityStats{}, nil
	}

	periodsPerYear := cadence.PeriodsPerYear()
	returns := Returns(values)
	totalReturn := TotalReturn(initialCapital, res.FinalValue)
	annualized := AnnualizedReturn(returns, periodsPerYear)
	sharpe := Sharpe(returns, RiskFreeRate, periodsPerYear)
	sortino := Sortino(returns, RiskFreeRate, periodsPerYear)
	maxDD := MaxDrawdown(values)
	psr := PSR(returns, sharpe, DefaultBenchmarkSR)
	winRate, avgWin, avgLoss, totalOrders := TradeStats(res.Trades)

	alpha, beta := NoAlphaBeta, NoAlphaBeta
	if benchmarkProvider != nil && len(times) > 1 {
		benchReturns, benchTimes, berr := BenchmarkReturns(ctx, benchmarkProvider, times[0], times[len(times)-1], res.BarSize)
		if berr == nil {
			alignedStrat, alignedBench := AlignByTime(times[1:], returns, benchTimes, benchReturns)
			if a, b, ok := AlphaBeta(alignedStrat, alignedBench, periodsPerYear, RiskFreeRate); ok {
				alpha, beta = a, b
			}
		}
	}

	metrics := domain.Metrics{
		Sharpe:           sharpe,
		Sortino:          sortino,
		Alpha:            alpha,
		Beta:             beta,
		PSR:              psr,
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualized,
		MaxDrawdown:      maxDD,
		WinRate:          winRate,
		TotalOrders:      totalOrders,
		AvgWin:           avgWin,
		AvgLoss:          avgLoss,
	}

	fees := totalFees(res.Trades)
	equityStats := domain.EquityStats{
		Equity:    res.FinalValue,
		Fees:      fees,
		NetProfit: res.FinalValue - initialCapital,
		ReturnPct: totalReturn,
		Volume:    tradeVolume(res.Trades),
	}

	return metrics, equityStats, nil
}

func totalFees(trades []domain.Trade) float64 {
	var total float64
	for _, t := range trades {
		total += t.Fee
	}
	return total
}

func tradeVolume(trades []domain.Trade) float64 {
	var total float64
	for _, t := range trades {
		total += t.Price * t.Amount
	}
	return total
}
