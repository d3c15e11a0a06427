package metrics

import (
	"context"
	"time"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// BenchmarkTicker is the index used for alpha/beta per spec.md §4.E.
const BenchmarkTicker = "^GSPC"

// BenchmarkProvider fetches a benchmark's close series over a window, at a
// given bar size, through the same market-data path a strategy's own
// universe uses. internal/marketdata.Provider satisfies this.
type BenchmarkProvider interface {
	GetData(ctx context.Context, symbols []string, start, end time.Time, barSize domain.BarSize) (*domain.MarketFrame, error)
}

// BenchmarkReturns fetches ^GSPC over [start, end] and converts it to
// period returns. A fetch or decode failure is reported to the caller so
// AlphaBeta can fall back to the sentinel rather than panic.
func BenchmarkReturns(ctx context.Context, provider BenchmarkProvider, start, end time.Time, barSize domain.BarSize) ([]float64, []time.Time, error) {
	frame, err := provider.GetData(ctx, []string{BenchmarkTicker}, start, end, barSize)
	if err != nil {
		return nil, nil, err
	}
	bars := frame.Series[BenchmarkTicker]
	closes := make([]float64, len(bars))
	times := make([]time.Time, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		times[i] = b.Time
	}
	return Returns(closes), times[1:], nil
}

// AlignByTime intersects two (values, times) series on shared timestamps,
// returning both slices reordered to the common, time-sorted index.
func AlignByTime(aTimes []time.Time, aValues []float64, bTimes []time.Time, bValues []float64) ([]float64, []float64) {
	bIndex := make(map[int64]float64, len(bTimes))
	for i, t := range bTimes {
		bIndex[t.Unix()] = bValues[i]
	}
	var outA, outB []float64
	for i, t := range aTimes {
		if v, ok := bIndex[t.Unix()]; ok {
			outA = append(outA, aValues[i])
			outB = append(outB, v)
		}
	}
	return outA, outB
}
