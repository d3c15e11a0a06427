// Package marketdata implements the per-symbol daily OHLCV cache and the
// provider that fetches, caches, and resamples market data on read.
package marketdata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// DefaultFloor is the earliest date the provider ever fetches from, chosen
// so that every request widens its upstream fetch to maximize reuse across
// users hitting overlapping symbols.
var DefaultFloor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Cache persists one msgpack-encoded blob per symbol under dir. It is the
// "{SYMBOL}.parquet-equivalent" file from the design document: a tabular
// blob containing every daily row the service has ever retrieved for that
// symbol. Writes are atomic via tmp-then-rename.
type Cache struct {
	dir string
}

// NewCache returns a Cache rooted at dir, creating it if necessary.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(symbol string) string {
	return filepath.Join(c.dir, symbol+".cache")
}

// Load reads a symbol's full cached history. A missing file is not an
// error: it returns an empty series.
func (c *Cache) Load(symbol string) (domain.SymbolSeries, error) {
	data, err := os.ReadFile(c.path(symbol))
	if os.IsNotExist(err) {
		return domain.SymbolSeries{Symbol: symbol}, nil
	}
	if err != nil {
		return domain.SymbolSeries{}, fmt.Errorf("read cache for %s: %w", symbol, err)
	}
	var series domain.SymbolSeries
	if err := msgpack.Unmarshal(data, &series); err != nil {
		return domain.SymbolSeries{}, fmt.Errorf("decode cache for %s: %w", symbol, err)
	}
	return series, nil
}

// Store merges newBars into the symbol's existing cache (deduping by date,
// keeping the last value seen for a given date) and atomically rewrites the
// file via tmp-then-rename, so a crash mid-write never leaves a partial
// file — only a ".tmp" sibling may remain.
func (c *Cache) Store(symbol string, newBars []domain.Bar) (domain.SymbolSeries, error) {
	existing, err := c.Load(symbol)
	if err != nil {
		return domain.SymbolSeries{}, err
	}

	merged := mergeBars(existing.Bars, newBars)
	series := domain.SymbolSeries{Symbol: symbol, Bars: merged}

	data, err := msgpack.Marshal(&series)
	if err != nil {
		return domain.SymbolSeries{}, fmt.Errorf("encode cache for %s: %w", symbol, err)
	}

	final := c.path(symbol)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.SymbolSeries{}, fmt.Errorf("write cache tmp for %s: %w", symbol, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return domain.SymbolSeries{}, fmt.Errorf("rename cache for %s: %w", symbol, err)
	}
	return series, nil
}

// mergeBars dedupes by date (keep-last) and returns a strictly
// date-ascending, NaN-free slice.
func mergeBars(existing, incoming []domain.Bar) []domain.Bar {
	byDate := make(map[int64]domain.Bar, len(existing)+len(incoming))
	for _, b := range existing {
		byDate[dayKey(b.Time)] = b
	}
	for _, b := range incoming {
		if isNaNBar(b) {
			continue
		}
		byDate[dayKey(b.Time)] = b
	}

	out := make([]domain.Bar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func dayKey(t time.Time) int64 {
	return t.UTC().Truncate(24 * time.Hour).Unix()
}

func isNaNBar(b domain.Bar) bool {
	return isNaN(b.Open) || isNaN(b.High) || isNaN(b.Low) || isNaN(b.Close) || isNaN(b.Volume)
}

func isNaN(f float64) bool {
	return f != f
}

// Coverage reports the [min, max] date bounds of a symbol's cached bars.
// ok is false for an empty series.
func Coverage(series domain.SymbolSeries) (min, max time.Time, ok bool) {
	if len(series.Bars) == 0 {
		return time.Time{}, time.Time{}, false
	}
	min = series.Bars[0].Time
	max = series.Bars[0].Time
	for _, b := range series.Bars[1:] {
		if b.Time.Before(min) {
			min = b.Time
		}
		if b.Time.After(max) {
			max = b.Time
		}
	}
	return min, max, true
}

// Covers reports whether the cached series already satisfies a fetch
// window [fs, fe] per the design document's coverage rule: the cache must
// reach at least fe, and either fs is at or after the default floor or
// the cache's earliest bar is within 30 days of fs (absorbing holidays and
// young IPOs so that symbols whose first trade postdates the floor don't
// refetch forever).
func Covers(series domain.SymbolSeries, fs, fe time.Time) bool {
	min, max, ok := Coverage(series)
	if !ok {
		return false
	}
	if max.Before(fe) {
		return false
	}
	if !fs.Before(DefaultFloor) {
		return true
	}
	return !min.After(fs.AddDate(0, 0, 30))
}
