package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferType(t *testing.T) {
	assert.Equal(t, Bool, InferType(true))
	assert.Equal(t, U64, InferType(json.Number("42")))
	assert.Equal(t, I64, InferType(json.Number("-42")))
	assert.Equal(t, F64, InferType(json.Number("3.14")))
	assert.Equal(t, U64, InferType("42"))
	assert.Equal(t, Utf8, InferType("BTCUSDT"))
	assert.Equal(t, Utf8, InferType(nil))
}

func TestInferSchema_SortsColumnsByName(t *testing.T) {
	rows := []Row{
		{"symbol": "BTCUSDT", "mark_price": json.Number("100"), "active": true},
	}
	schema := InferSchema(rows)
	names := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"active", "mark_price", "symbol"}, names)
}

func TestInferSchema_Empty(t *testing.T) {
	assert.Equal(t, Schema{}, InferSchema(nil))
}

// Schema fixpoint: re-inferring from an identical-shaped row yields an
// equal schema.
func TestSchemaEqual_Fixpoint(t *testing.T) {
	rows1 := []Row{{"a": json.Number("1"), "b": "x"}}
	rows2 := []Row{{"a": json.Number("2"), "b": "y"}}
	assert.True(t, InferSchema(rows1).Equal(InferSchema(rows2)))
}

func TestSchemaEqual_DetectsDrift(t *testing.T) {
	rows1 := []Row{{"a": json.Number("1")}}
	rows2 := []Row{{"a": json.Number("1"), "b": "x"}}
	assert.False(t, InferSchema(rows1).Equal(InferSchema(rows2)))
}
