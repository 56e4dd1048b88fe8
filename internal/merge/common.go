// Package merge implements the Merger component (C2): per-line ingest
// with first-writer-wins dedup, and the full-day gap-fill pass shared by
// both merger variants.
package merge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/xzsean666/marketfeed/internal/domain"
	"github.com/xzsean666/marketfeed/internal/logging"
)

var log = logging.WithComponent("merge")

// Merger is implemented by both the Generic and Mark-Price variants.
type Merger interface {
	// AddJSONL ingests one newline-delimited JSON shard tagged with
	// sourceLabel, returning counts of accepted and skipped lines.
	AddJSONL(sourceLabel string, data []byte) (added, skipped int)
	// Series returns the accumulated DaySeries.
	Series() *domain.DaySeries
}

// decodeLine trims and parses one JSONL line into a Row, returning ok=false
// for blank lines or malformed JSON (both are skip-with-warning cases, not
// errors).
func decodeLine(sourceLabel string, line []byte) (domain.Row, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var row domain.Row
	if err := dec.Decode(&row); err != nil {
		log.Warnf("%s: malformed line, skipping: %v", sourceLabel, err)
		return nil, false
	}
	domain.NormalizeFieldNames(row)
	return row, true
}

// eventTimeMs extracts the raw event_time value from row as milliseconds,
// accepting either a JSON number or a numeric string, without altering its
// original representation.
func eventTimeMs(row domain.Row) (int64, bool) {
	v, ok := row["event_time"]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case string:
		s := strings.TrimSpace(t)
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	default:
		return 0, false
	}
}

// dedupKey floors event_time_ms to whole seconds.
func dedupKey(eventTimeMs int64) int64 {
	return eventTimeMs / 1000
}

func eachLine(data []byte, fn func(line []byte)) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		fn(scanner.Bytes())
	}
}
