// Package columnar implements the Columnar Writer component (C3): schema
// inference fixed from the first flush, OR-semantics row filtering, and
// day-partitioned file output with optional scratch-dir staging.
package columnar

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// CleanName returns the substring of name after its last '-', or the
// whole name if it contains none — the convention the original writer
// uses to turn a per-symbol writer name like "funding-BTCUSDT" into the
// "BTCUSDT" component of the output filename.
func CleanName(name string) string {
	if idx := strings.LastIndex(name, "-"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// PartitionDir returns <base>/<YYYY>/<MM>/<DD> for date.
func PartitionDir(basePath string, date time.Time) string {
	return filepath.Join(basePath, fmt.Sprintf("%04d", date.Year()), fmt.Sprintf("%02d", date.Month()), fmt.Sprintf("%02d", date.Day()))
}

// FinalFilePath builds the day-partitioned output path. seq is omitted
// when hasSeq is false; otherwise it's zero-padded to 6 digits.
func FinalFilePath(basePath, name string, date time.Time, seq uint64, hasSeq bool, ext string) string {
	clean := CleanName(name)
	dateStr := date.Format("2006-01-02")
	var fileName string
	if hasSeq {
		fileName = fmt.Sprintf("%s_%06d_%s.%s", clean, seq, dateStr, ext)
	} else {
		fileName = fmt.Sprintf("%s_%s.%s", clean, dateStr, ext)
	}
	return filepath.Join(PartitionDir(basePath, date), fileName)
}
