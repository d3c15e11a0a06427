package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

func TestReturnsComputesSimplePctChange(t *testing.T) {
	r := Returns([]float64{100, 110, 99})
	require.InDelta(t, 0.10, r[0], 1e-9)
	require.InDelta(t, -0.10, r[1], 1e-9)
}

func TestSharpeZeroWhenFlat(t *testing.T) {
	require.Equal(t, 0.0, Sharpe([]float64{0.01, 0.01, 0.01}, 0.035, 252))
}

func TestSharpePositiveForUpwardDrift(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.005, 0.015, 0.01}
	s := Sharpe(returns, 0.035, 252)
	require.Greater(t, s, 0.0)
}

func TestMaxDrawdownTracksPeakToTrough(t *testing.T) {
	dd := MaxDrawdown([]float64{100, 120, 90, 110})
	require.InDelta(t, 0.25, dd, 1e-9) // 120 -> 90
}

func TestTradeStatsFIFOMatching(t *testing.T) {
	trades := []domain.Trade{
		{Ticker: "AAPL", Type: domain.Buy, Price: 100, Amount: 10},
		{Ticker: "AAPL", Type: domain.Sell, Price: 110, Amount: 5},
		{Ticker: "AAPL", Type: domain.Sell, Price: 90, Amount: 5},
	}
	winRate, avgWin, avgLoss, totalOrders := TradeStats(trades)
	require.Equal(t, 3, totalOrders)
	require.InDelta(t, 0.5, winRate, 1e-9)
	require.InDelta(t, 0.10, avgWin, 1e-9)
	require.InDelta(t, -0.10, avgLoss, 1e-9)
}

type fakeBenchmark struct {
	frame *domain.MarketFrame
}

func (f fakeBenchmark) GetData(ctx context.Context, symbols []string, start, end time.Time, barSize domain.BarSize) (*domain.MarketFrame, error) {
	return f.frame, nil
}

func TestComputeDegradesAlphaBetaWithoutBenchmark(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	res := &domain.RawExecutionResult{
		EquityCurve: map[string]float64{
			base.Format(time.RFC3339):                 10000,
			base.AddDate(0, 0, 1).Format(time.RFC3339): 10100,
			base.AddDate(0, 0, 2).Format(time.RFC3339): 10250,
		},
		FinalValue: 10250,
		BarSize:    domain.BarDaily,
	}

	m, stats, err := Compute(context.Background(), res, 10000, domain.DefaultCadence(), nil)
	require.NoError(t, err)
	require.Equal(t, NoAlphaBeta, m.Alpha)
	require.Equal(t, NoAlphaBeta, m.Beta)
	require.InDelta(t, 0.025, stats.ReturnPct, 1e-9)
}

func TestComputeFetchesAlphaBetaFromBenchmark(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	res := &domain.RawExecutionResult{
		EquityCurve: map[string]float64{
			base.Format(time.RFC3339):                 10000,
			base.AddDate(0, 0, 1).Format(time.RFC3339): 10100,
			base.AddDate(0, 0, 2).Format(time.RFC3339): 10250,
		},
		FinalValue: 10250,
		BarSize:    domain.BarDaily,
	}
	bench := fakeBenchmark{frame: &domain.MarketFrame{
		BarSize: domain.BarDaily,
		Series: map[string][]domain.Bar{
			BenchmarkTicker: {
				{Time: base, Close: 3000},
				{Time: base.AddDate(0, 0, 1), Close: 3030},
				{Time: base.AddDate(0, 0, 2), Close: 3060},
			},
		},
	}}

	m, _, err := Compute(context.Background(), res, 10000, domain.DefaultCadence(), bench)
	require.NoError(t, err)
	require.NotEqual(t, NoAlphaBeta, m.Beta)
}
