package columnar

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanName(t *testing.T) {
	assert.Equal(t, "BTCUSDT", CleanName("funding-BTCUSDT"))
	assert.Equal(t, "BTCUSDT", CleanName("BTCUSDT"))
}

func TestPartitionDir(t *testing.T) {
	date := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "base/2025/11/06", filepath.ToSlash(PartitionDir("base", date)))
}

// E1's expected single-file naming: "BTCUSDT_2025-11-06.<ext>" with no
// sequence suffix.
func TestFinalFilePath_NoSequence(t *testing.T) {
	date := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	path := FinalFilePath("base", "BTCUSDT", date, 0, false, "parquet")
	assert.Equal(t, "base/2025/11/06/BTCUSDT_2025-11-06.parquet", filepath.ToSlash(path))
}

func TestFinalFilePath_WithSequence(t *testing.T) {
	date := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	path := FinalFilePath("base", "funding-BTCUSDT", date, 2, true, "parquet")
	assert.Equal(t, "base/2025/11/06/BTCUSDT_000002_2025-11-06.parquet", filepath.ToSlash(path))
}
