// Package domain holds the shared data model for the merge pipeline, the
// folder sync catalog, and the transfer proxy's upload broker.
package domain

import "encoding/json"

// Row is a single schemaless record as decoded from a JSONL shard. Numbers
// are kept as json.Number so their original textual form survives until a
// column's logical type forces a conversion.
type Row map[string]interface{}

// shortToLong maps the legacy single-letter field names emitted upstream to
// the long names the rest of the pipeline operates on.
var shortToLong = map[string]string{
	"e": "event_type",
	"s": "symbol",
	"p": "mark_price",
	"i": "index_price",
	"P": "estimated_settle_price",
	"r": "funding_rate",
	"T": "next_funding_time",
	"E": "event_time",
}

// NormalizeFieldNames renames any legacy short-name keys present in row to
// their long-name equivalents in place, removing the short key. Long-name
// keys already present are left untouched.
func NormalizeFieldNames(row Row) {
	for short, long := range shortToLong {
		v, ok := row[short]
		if !ok {
			continue
		}
		delete(row, short)
		if _, exists := row[long]; !exists {
			row[long] = v
		}
	}
}

// Clone returns a deep-enough copy of row suitable for gap-fill donor
// records: top-level keys are copied into a fresh map so mutating the
// "timestamp" field on the copy never affects the original.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String renders row as JSON. Rows are written through the columnar
// writer, not serialized directly; this method exists so Row can be
// embedded in logging calls without extra conversions.
func (r Row) String() string {
	b, err := json.Marshal(map[string]interface{}(r))
	if err != nil {
		return "<unmarshalable row>"
	}
	return string(b)
}
