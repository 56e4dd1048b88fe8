package merge

import "github.com/xzsean666/marketfeed/internal/domain"

// genericSymbol is the pseudo-symbol the Generic Merger stores its single
// global bucket under, so it can share DaySeries/gap-fill machinery with
// the Mark-Price Merger without a real per-symbol split.
const genericSymbol = ""

// GenericMerger keeps one global SymbolBucket keyed by second; the only
// requirement for acceptance is a parseable event_time.
type GenericMerger struct {
	series *domain.DaySeries
}

// NewGenericMerger returns an empty Generic Merger.
func NewGenericMerger() *GenericMerger {
	return &GenericMerger{series: domain.NewDaySeries()}
}

func (m *GenericMerger) Series() *domain.DaySeries { return m.series }

func (m *GenericMerger) AddJSONL(sourceLabel string, data []byte) (added, skipped int) {
	bucket := m.series.BucketFor(genericSymbol)
	eachLine(data, func(line []byte) {
		row, ok := decodeLine(sourceLabel, line)
		if !ok {
			skipped++
			return
		}
		ems, ok := eventTimeMs(row)
		if !ok {
			log.Warnf("%s: missing event_time, skipping", sourceLabel)
			skipped++
			return
		}
		key := dedupKey(ems)
		row["timestamp"] = key * 1000
		if bucket.Insert(key, row) {
			added++
		} else {
			skipped++
		}
	})
	return added, skipped
}
