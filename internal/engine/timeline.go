// Package engine is the backtest engine: it runs inside the isolate,
// walking the canonical timestamp timeline, invoking the loaded strategy's
// on_data at each bar, rebalancing the portfolio per the authoritative
// semantics in the design document, and recording trades and equity.
package engine

import (
	"sort"
	"time"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// CanonicalTimeline resolves the Open Question in the design document as
// intersection-with-union-fallback: prefer the intersection of every
// symbol's timestamp set (so every bar sees the whole universe), falling
// back to the union when the intersection is empty (non-aligned calendars
// would otherwise produce no bars at all).
func CanonicalTimeline(series map[string][]domain.Bar) []time.Time {
	if len(series) == 0 {
		return nil
	}

	sets := make([]map[int64]time.Time, 0, len(series))
	for _, bars := range series {
		m := make(map[int64]time.Time, len(bars))
		for _, b := range bars {
			m[b.Time.Unix()] = b.Time
		}
		sets = append(sets, m)
	}

	intersection := intersect(sets)
	if len(intersection) > 0 {
		return sortedTimes(intersection)
	}
	return sortedTimes(union(sets))
}

func intersect(sets []map[int64]time.Time) map[int64]time.Time {
	if len(sets) == 0 {
		return nil
	}
	out := make(map[int64]time.Time, len(sets[0]))
	for k, t := range sets[0] {
		out[k] = t
	}
	for _, s := range sets[1:] {
		for k := range out {
			if _, ok := s[k]; !ok {
				delete(out, k)
			}
		}
	}
	return out
}

func union(sets []map[int64]time.Time) map[int64]time.Time {
	out := make(map[int64]time.Time)
	for _, s := range sets {
		for k, t := range s {
			out[k] = t
		}
	}
	return out
}

func sortedTimes(m map[int64]time.Time) []time.Time {
	out := make([]time.Time, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// indexBySymbol indexes each symbol's bars by unix timestamp for O(1)
// per-bar lookups during the timeline walk.
func indexBySymbol(series map[string][]domain.Bar) map[string]map[int64]domain.Bar {
	out := make(map[string]map[int64]domain.Bar, len(series))
	for sym, bars := range series {
		m := make(map[int64]domain.Bar, len(bars))
		for _, b := range bars {
			m[b.Time.Unix()] = b
		}
		out[sym] = m
	}
	return out
}

// sortedSymbols returns the universe's symbols in a fixed order, used to
// break ties in trade ordering within one bar.
func sortedSymbols(series map[string][]domain.Bar) []string {
	out := make([]string, 0, len(series))
	for sym := range series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
