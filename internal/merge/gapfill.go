package merge

import (
	"context"
	"time"

	"github.com/xzsean666/marketfeed/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DayBounds returns the inclusive [day_start, day_end] UTC-second range
// for date, per the glossary's "UTC day" definition.
func DayBounds(date time.Time) (dayStart, dayEnd int64) {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayStart = midnight.Unix()
	return dayStart, dayStart + 86399
}

// ApplyGapFill runs the full-day forward/back-fill pass over every symbol
// in series, independently and in parallel (CPU-bound, data-parallel
// across symbols — the Go analogue of the original's rayon fan-out).
// event_time on filled rows is always copied from the donor record;
// timestamp is the only field that tracks the filled second. Existing
// rows are never mutated.
func ApplyGapFill(ctx context.Context, series *domain.DaySeries, date time.Time) error {
	dayStart, dayEnd := DayBounds(date)

	g, _ := errgroup.WithContext(ctx)
	for _, symbol := range series.Symbols() {
		symbol := symbol
		bucket, ok := series.Bucket(symbol)
		if !ok || bucket.Len() == 0 {
			continue
		}
		g.Go(func() error {
			fillBucket(bucket, dayStart, dayEnd)
			return nil
		})
	}
	return g.Wait()
}

func fillBucket(bucket *domain.SymbolBucket, dayStart, dayEnd int64) {
	firstKey, lastKey, ok := bucket.Bounds()
	if !ok {
		return
	}
	first, _ := bucket.Get(firstKey)
	last, _ := bucket.Get(lastKey)

	var running domain.Row
	for t := dayStart; t <= dayEnd; t++ {
		if row, ok := bucket.Get(t); ok {
			running = row
			continue
		}
		var donor domain.Row
		switch {
		case t < firstKey:
			donor = first
		case t > lastKey:
			donor = last
		default:
			donor = running
		}
		filled := donor.Clone()
		filled["timestamp"] = t * 1000
		bucket.Set(t, filled)
	}
}
