package columnar

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzsean666/marketfeed/internal/domain"
)

func TestCoerce_NumericStringParsesToColumnType(t *testing.T) {
	assert.Equal(t, int64(42), coerce("42", domain.I64))
	assert.Equal(t, uint64(42), coerce(json.Number("42"), domain.U64))
	assert.Equal(t, 3.14, coerce(json.Number("3.14"), domain.F64))
	assert.Equal(t, "hello", coerce("hello", domain.Utf8))
}

func TestCoerce_UnparseableNumericSubstitutesNil(t *testing.T) {
	assert.Nil(t, coerce("not-a-number", domain.F64))
}

func TestCoerce_NilStaysNil(t *testing.T) {
	assert.Nil(t, coerce(nil, domain.I64))
}

func TestProjectRow_DropsExtraFieldsAndNullsMissing(t *testing.T) {
	schema := domain.Schema{Columns: []domain.Column{
		{Name: "symbol", Type: domain.Utf8},
		{Name: "mark_price", Type: domain.F64},
	}}
	row := domain.Row{"symbol": "BTCUSDT", "extra_field": "dropped"}

	out := projectRow(row, schema)
	assert.Equal(t, map[string]any{"symbol": "BTCUSDT", "mark_price": nil}, out)
}

// Schema fixpoint: once inferred, the schema of subsequent flushes by the
// same writer equals the first.
func TestWriter_SchemaFixpointAcrossFlushes(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	w := New(Config{BasePath: dir, Name: "BTCUSDT", Date: date})

	w.WriteRows([]domain.Row{{"symbol": "BTCUSDT", "mark_price": json.Number("100")}})
	require.NoError(t, w.Flush())
	firstSchema := w.schema

	w.WriteRows([]domain.Row{{"symbol": "BTCUSDT", "mark_price": json.Number("200")}})
	require.NoError(t, w.Flush())

	assert.True(t, firstSchema.Equal(w.schema))
	files := w.Close()
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.FileExists(t, f)
	}
}

func TestWriter_BatchSizeSplitsFiles(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	w := New(Config{BasePath: dir, Name: "BTCUSDT", Date: date, BatchSize: 2})

	rows := make([]domain.Row, 5)
	for i := range rows {
		rows[i] = domain.Row{"symbol": "BTCUSDT", "i": json.Number("1")}
	}
	w.WriteRows(rows)
	require.NoError(t, w.Flush())

	files := w.Close()
	assert.Len(t, files, 3)
}

func TestWriter_FiltersDropNonMatchingRows(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	w := New(Config{
		BasePath: dir,
		Name:     "BTCUSDT",
		Date:     date,
		Filters: []domain.FilterCondition{
			{Field: "symbol", Operator: domain.OpEq, Value: "BTCUSDT"},
		},
	})

	w.WriteRows([]domain.Row{
		{"symbol": "BTCUSDT"},
		{"symbol": "ETHUSDT"},
	})
	require.NoError(t, w.Flush())
	files := w.Close()
	require.Len(t, files, 1)
	info, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriter_ScratchStagingProducesFinalFile(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	w := New(Config{BasePath: dir, Name: "ETHUSDT", Date: date, UseTempDir: true})

	w.WriteRows([]domain.Row{{"symbol": "ETHUSDT", "mark_price": json.Number("50")}})
	require.NoError(t, w.Flush())

	files := w.Close()
	require.Len(t, files, 1)
	assert.FileExists(t, files[0])

	entries, err := os.ReadDir(filepath.Dir(files[0]))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
