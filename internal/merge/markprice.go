package merge

import (
	"encoding/json"

	"github.com/xzsean666/marketfeed/internal/domain"
)

// MarkPriceMerger keys rows by (symbol, second) and additionally requires
// a non-empty string symbol, and mark_price and funding_rate present as a
// JSON number or a string.
type MarkPriceMerger struct {
	series *domain.DaySeries
}

// NewMarkPriceMerger returns an empty Mark-Price Merger.
func NewMarkPriceMerger() *MarkPriceMerger {
	return &MarkPriceMerger{series: domain.NewDaySeries()}
}

func (m *MarkPriceMerger) Series() *domain.DaySeries { return m.series }

func (m *MarkPriceMerger) AddJSONL(sourceLabel string, data []byte) (added, skipped int) {
	eachLine(data, func(line []byte) {
		row, ok := decodeLine(sourceLabel, line)
		if !ok {
			skipped++
			return
		}
		symbol, ok := symbolOf(row)
		if !ok {
			log.Warnf("%s: missing symbol, skipping", sourceLabel)
			skipped++
			return
		}
		ems, ok := eventTimeMs(row)
		if !ok {
			log.Warnf("%s: missing event_time, skipping", sourceLabel)
			skipped++
			return
		}
		if !isValidMarkPriceRow(row) {
			log.Warnf("%s: invalid mark-price row for %s, skipping", sourceLabel, symbol)
			skipped++
			return
		}

		key := dedupKey(ems)
		row["timestamp"] = key * 1000
		bucket := m.series.BucketFor(symbol)
		if bucket.Insert(key, row) {
			added++
		} else {
			skipped++
		}
	})
	return added, skipped
}

func symbolOf(row domain.Row) (string, bool) {
	v, ok := row["symbol"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// isValidMarkPriceRow requires mark_price and funding_rate to be present
// and either a JSON number or a string (numeric-or-not, the original
// validator does not parse the string, only checks its JSON kind).
func isValidMarkPriceRow(row domain.Row) bool {
	return isNumberOrString(row["mark_price"]) && isNumberOrString(row["funding_rate"])
}

func isNumberOrString(v interface{}) bool {
	switch v.(type) {
	case json.Number, string:
		return true
	default:
		return false
	}
}
