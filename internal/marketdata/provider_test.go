package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

type fakeUpstream struct {
	mu    sync.Mutex
	calls map[string]int
	bars  map[string][]domain.Bar
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{calls: map[string]int{}, bars: map[string][]domain.Bar{}}
}

func (f *fakeUpstream) FetchDaily(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	f.mu.Lock()
	f.calls[symbol]++
	f.mu.Unlock()

	bars := []domain.Bar{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		bars = append(bars, domain.Bar{Time: d.UTC().Truncate(24 * time.Hour), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100})
	}
	f.bars[symbol] = bars
	return bars, nil
}

func TestGetDataIsIdempotentAndCaches(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)
	up := newFakeUpstream()
	p := NewProvider(cache, up, zerolog.Nop())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	frame1, err := p.GetData(context.Background(), []string{"AAPL"}, start, end, domain.BarDaily)
	require.NoError(t, err)
	frame2, err := p.GetData(context.Background(), []string{"AAPL"}, start, end, domain.BarDaily)
	require.NoError(t, err)

	require.Equal(t, frame1.Series["AAPL"], frame2.Series["AAPL"])
	require.Equal(t, 1, up.calls["AAPL"], "second GetData call must hit cache, not upstream")
}

func TestGetDataRejectsUnsupportedBarSize(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)
	p := NewProvider(cache, newFakeUpstream(), zerolog.Nop())

	_, err = p.GetData(context.Background(), []string{"AAPL"}, time.Now().AddDate(0, -1, 0), time.Now(), domain.BarSize("MINUTE"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported bar size")
}

func TestResampleWeeklyAggregatesOHLCV(t *testing.T) {
	bars := []domain.Bar{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 11, High: 15, Low: 10, Close: 14, Volume: 200},
		{Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 14, High: 14, Low: 8, Close: 9, Volume: 50},
		// next ISO week
		{Time: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), Open: 9, High: 10, Low: 7, Close: 8, Volume: 75},
	}
	out := Resample(bars, domain.BarWeekly)
	require.Len(t, out, 2)
	require.Equal(t, 10.0, out[0].Open)
	require.Equal(t, 15.0, out[0].High)
	require.Equal(t, 8.0, out[0].Low)
	require.Equal(t, 9.0, out[0].Close)
	require.Equal(t, 350.0, out[0].Volume)
	require.Equal(t, bars[2].Time, out[0].Time, "bucket timestamp is the last actual trading day, not a synthetic period end")
}

func TestCacheStoreIsAtomic(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)

	bars := []domain.Bar{{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}
	_, err = cache.Store("AAPL", bars)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "AAPL.cache.tmp"))
	require.True(t, os.IsNotExist(err), "store must rename its tmp file into place")

	series, err := cache.Load("AAPL")
	require.NoError(t, err)
	require.Len(t, series.Bars, 1)

	more := []domain.Bar{{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 2, High: 2, Low: 2, Close: 2, Volume: 2}}
	_, err = cache.Store("AAPL", more)
	require.NoError(t, err)

	series, err = cache.Load("AAPL")
	require.NoError(t, err)
	require.Len(t, series.Bars, 2, "merge must dedupe by date and keep both distinct days")
}
