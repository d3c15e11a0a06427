package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// Provider is the market-data contract: GetData always fetches and caches
// daily bars from upstream, then resamples on read to the requested bar
// size. DAILY, WEEKLY, MONTHLY, and QUARTERLY are supported; anything else
// fails fast.
type Provider struct {
	cache    *Cache
	upstream Upstream
	locks    *symbolLocks
	log      zerolog.Logger
}

// NewProvider builds a Provider backed by cache and upstream.
func NewProvider(cache *Cache, upstream Upstream, log zerolog.Logger) *Provider {
	return &Provider{
		cache:    cache,
		upstream: upstream,
		locks:    newSymbolLocks(),
		log:      log.With().Str("component", "marketdata_provider").Logger(),
	}
}

var supportedBarSizes = map[domain.BarSize]bool{
	domain.BarDaily: true, domain.BarWeekly: true, domain.BarMonthly: true, domain.BarQuarterly: true,
}

// GetData returns a MarketFrame covering [start, end] for symbols, resampled
// to barSize. Every request widens the upstream fetch window to
// [min(start, DefaultFloor), lastTradingDay] to maximize cache reuse across
// tenants hitting overlapping symbols.
func (p *Provider) GetData(ctx context.Context, symbols []string, start, end time.Time, barSize domain.BarSize) (*domain.MarketFrame, error) {
	if !supportedBarSizes[barSize] {
		return nil, fmt.Errorf("unsupported bar size: %s", barSize)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("empty universe")
	}

	fetchStart := start
	if DefaultFloor.Before(fetchStart) {
		fetchStart = DefaultFloor
	}
	fetchEnd := lastTradingDay(end)

	if err := p.ensureCached(ctx, symbols, fetchStart, fetchEnd); err != nil {
		return nil, err
	}

	frame := &domain.MarketFrame{BarSize: barSize, Series: make(map[string][]domain.Bar, len(symbols))}
	for _, sym := range symbols {
		series, err := p.cache.Load(sym)
		if err != nil {
			return nil, err
		}
		windowed := Slice(series.Bars, start, end)
		resampled := Resample(windowed, barSize)
		frame.Series[sym] = resampled
	}

	if allEmpty(frame) {
		return nil, fmt.Errorf("no market data available for requested universe")
	}
	return frame, nil
}

func allEmpty(frame *domain.MarketFrame) bool {
	for _, bars := range frame.Series {
		if len(bars) > 0 {
			return false
		}
	}
	return true
}

func lastTradingDay(requested time.Time) time.Time {
	now := time.Now().UTC()
	if requested.After(now) {
		return now
	}
	return requested
}

// ensureCached performs the lockless pre-scan, locked-confirm, download,
// and atomic-merge cycle: (1) without locks, find probable cache misses;
// (2) take per-symbol locks in sorted order (deadlock-free) only for those
// misses; (3) re-check coverage under lock, since another worker may have
// already filled it; (4) download and merge the remainder.
func (p *Provider) ensureCached(ctx context.Context, symbols []string, fs, fe time.Time) error {
	candidates := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		series, err := p.cache.Load(sym)
		if err != nil {
			return err
		}
		if !Covers(series, fs, fe) {
			candidates = append(candidates, sym)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	unlock := p.locks.lockSorted(sorted)
	defer unlock()

	for _, sym := range sorted {
		series, err := p.cache.Load(sym)
		if err != nil {
			return err
		}
		if Covers(series, fs, fe) {
			continue // another worker filled it while we waited for the lock
		}

		bars, err := p.upstream.FetchDaily(ctx, sym, fs, fe)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", sym, err)
		}
		if _, err := p.cache.Store(sym, bars); err != nil {
			return err
		}
	}
	return nil
}
