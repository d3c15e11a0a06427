package marketdata

import (
	"time"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// Resample aggregates daily bars into the requested bar size. DAILY is a
// passthrough. Weekly buckets use W-FRI (ISO week), monthly and quarterly
// use calendar month/quarter. Aggregation is open=first, high=max, low=min,
// close=last, volume=sum; a bucket with no rows is dropped. The emitted
// timestamp for each bucket is the last actual trading day inside that
// bucket (not a synthetic period-end), so downstream consumers see real
// calendar dates that line up with other symbols.
func Resample(bars []domain.Bar, barSize domain.BarSize) []domain.Bar {
	if barSize == domain.BarDaily || len(bars) == 0 {
		return bars
	}

	type bucketKey struct {
		year, period int
	}
	order := make([]bucketKey, 0)
	buckets := make(map[bucketKey][]domain.Bar)

	keyFor := func(t time.Time) bucketKey {
		switch barSize {
		case domain.BarWeekly:
			year, week := t.ISOWeek()
			return bucketKey{year, week}
		case domain.BarMonthly:
			return bucketKey{t.Year(), int(t.Month())}
		case domain.BarQuarterly:
			return bucketKey{t.Year(), (int(t.Month())-1)/3 + 1}
		default:
			return bucketKey{t.Year(), t.YearDay()}
		}
	}

	for _, b := range bars {
		k := keyFor(b.Time)
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], b)
	}

	out := make([]domain.Bar, 0, len(order))
	for _, k := range order {
		rows := buckets[k]
		if len(rows) == 0 {
			continue
		}
		agg := domain.Bar{
			Time:   rows[len(rows)-1].Time,
			Open:   rows[0].Open,
			High:   rows[0].High,
			Low:    rows[0].Low,
			Close:  rows[len(rows)-1].Close,
			Volume: 0,
		}
		for _, r := range rows {
			if r.High > agg.High {
				agg.High = r.High
			}
			if r.Low < agg.Low {
				agg.Low = r.Low
			}
			agg.Volume += r.Volume
		}
		out = append(out, agg)
	}
	return out
}

// Slice returns the bars whose Time falls within [start, end] inclusive.
func Slice(bars []domain.Bar, start, end time.Time) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
