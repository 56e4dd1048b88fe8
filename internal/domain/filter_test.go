package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowMatchesAny_EmptyConditionsAcceptsEverything(t *testing.T) {
	assert.True(t, RowMatchesAny(Row{"x": 1}, nil))
}

func TestRowMatchesAny_OrSemantics(t *testing.T) {
	row := Row{"symbol": "ETHUSDT", "mark_price": json.Number("50")}
	conditions := []FilterCondition{
		{Field: "symbol", Operator: OpEq, Value: "BTCUSDT"},
		{Field: "mark_price", Operator: OpGt, Value: json.Number("10")},
	}
	assert.True(t, RowMatchesAny(row, conditions))
}

func TestRowMatchesAny_NoneMatch(t *testing.T) {
	row := Row{"symbol": "ETHUSDT"}
	conditions := []FilterCondition{
		{Field: "symbol", Operator: OpEq, Value: "BTCUSDT"},
	}
	assert.False(t, RowMatchesAny(row, conditions))
}

func TestRowMatchesAny_Contains(t *testing.T) {
	row := Row{"symbol": "BTCUSDT"}
	conditions := []FilterCondition{{Field: "symbol", Operator: OpContains, Value: "USDT"}}
	assert.True(t, RowMatchesAny(row, conditions))
}

func TestRowMatchesAny_MissingFieldNeverMatches(t *testing.T) {
	row := Row{"symbol": "BTCUSDT"}
	conditions := []FilterCondition{{Field: "mark_price", Operator: OpEq, Value: json.Number("1")}}
	assert.False(t, RowMatchesAny(row, conditions))
}
