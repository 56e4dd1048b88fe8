package merge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markPriceLine(t *testing.T, eventTimeMs int64, symbol, price, fundingRate string) string {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"E": eventTimeMs,
		"s": symbol,
		"p": price,
		"r": fundingRate,
	})
	require.NoError(t, err)
	return string(b)
}

// E1 — dense day, one source, one symbol.
func TestMarkPriceMerger_DenseDayAfterGapFill(t *testing.T) {
	date := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	dayStart, _ := DayBounds(date)
	tSec := dayStart + 3600

	m := NewMarkPriceMerger()
	lines := markPriceLine(t, (tSec)*1000, "BTCUSDT", "100", "0.0001") + "\n" +
		markPriceLine(t, (tSec+5)*1000, "BTCUSDT", "100", "0.0001") + "\n" +
		markPriceLine(t, (tSec+10)*1000, "BTCUSDT", "100", "0.0001")
	added, skipped := m.AddJSONL("s1", []byte(lines))
	assert.Equal(t, 3, added)
	assert.Equal(t, 0, skipped)

	require.NoError(t, ApplyGapFill(context.Background(), m.Series(), date))

	bucket, ok := m.Series().Bucket("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 86400, bucket.Len())

	for _, row := range bucket.Rows() {
		assert.Equal(t, int64(0), row["timestamp"].(int64)%1000)
	}

	first, ok := bucket.Get(dayStart)
	require.True(t, ok)
	assert.Equal(t, json.Number("100"), first["mark_price"])

	last, ok := bucket.Get(dayStart + 86399)
	require.True(t, ok)
	assert.Equal(t, json.Number("100"), last["mark_price"])
}

// E2 — dedup across two sources, first-writer-wins.
func TestMarkPriceMerger_FirstWriterWins(t *testing.T) {
	m := NewMarkPriceMerger()
	s1 := markPriceLine(t, 1762411870001, "X", "1", "0.1")
	s2 := markPriceLine(t, 1762411870999, "X", "2", "0.1")

	added1, _ := m.AddJSONL("s1", []byte(s1))
	added2, skipped2 := m.AddJSONL("s2", []byte(s2))
	assert.Equal(t, 1, added1)
	assert.Equal(t, 0, added2)
	assert.Equal(t, 1, skipped2)

	bucket, ok := m.Series().Bucket("X")
	require.True(t, ok)
	row, ok := bucket.Get(1762411870)
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), row["mark_price"])
	assert.EqualValues(t, 1762411870001, mustInt64(t, row["event_time"]))
}

// E3 — mixed symbols produce independent buckets.
func TestMarkPriceMerger_MixedSymbolsIndependentBuckets(t *testing.T) {
	m := NewMarkPriceMerger()
	lines := markPriceLine(t, 1000000, "BTCUSDT", "1", "0.1") + "\n" +
		markPriceLine(t, 1000000, "ETHUSDT", "2", "0.2") + "\n" +
		markPriceLine(t, 2000000, "BTCUSDT", "3", "0.1")
	added, skipped := m.AddJSONL("s1", []byte(lines))
	assert.Equal(t, 3, added)
	assert.Equal(t, 0, skipped)

	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, m.Series().Symbols())

	btc, _ := m.Series().Bucket("BTCUSDT")
	eth, _ := m.Series().Bucket("ETHUSDT")
	assert.Equal(t, 2, btc.Len())
	assert.Equal(t, 1, eth.Len())
}

// Dedup stability — identical input produces identical output across runs.
func TestMarkPriceMerger_DedupStabilityAcrossRuns(t *testing.T) {
	lines := []byte(markPriceLine(t, 1000000, "X", "1", "0.1") + "\n" +
		markPriceLine(t, 1000999, "X", "2", "0.1"))

	run := func() []byte {
		m := NewMarkPriceMerger()
		m.AddJSONL("s1", lines)
		bucket, _ := m.Series().Bucket("X")
		b, err := json.Marshal(bucket.Rows())
		require.NoError(t, err)
		return b
	}

	assert.Equal(t, run(), run())
}

func TestMarkPriceMerger_RejectsInvalidRows(t *testing.T) {
	m := NewMarkPriceMerger()
	_, skipped := m.AddJSONL("s1", []byte(`{"E":1000,"s":"X"}`))
	assert.Equal(t, 1, skipped)

	_, skipped = m.AddJSONL("s1", []byte("not json"))
	assert.Equal(t, 1, skipped)
}

func TestGenericMerger_PreservesEventTime(t *testing.T) {
	m := NewGenericMerger()
	line, err := json.Marshal(map[string]interface{}{"E": 5000, "foo": "bar"})
	require.NoError(t, err)
	added, _ := m.AddJSONL("s1", line)
	assert.Equal(t, 1, added)

	bucket, ok := m.Series().Bucket(genericSymbol)
	require.True(t, ok)
	row, ok := bucket.Get(5)
	require.True(t, ok)
	assert.EqualValues(t, 5000, mustInt64(t, row["event_time"]))
}

func mustInt64(t *testing.T, v interface{}) int64 {
	t.Helper()
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		require.NoError(t, err)
		return i
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		t.Fatalf("unexpected type %T for %v", v, v)
		return 0
	}
}
