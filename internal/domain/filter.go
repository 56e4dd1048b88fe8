package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FilterOperator is one predicate comparison the Columnar Writer can apply
// to an incoming row before buffering it.
type FilterOperator string

const (
	OpEq       FilterOperator = "eq"
	OpNe       FilterOperator = "ne"
	OpGt       FilterOperator = "gt"
	OpLt       FilterOperator = "lt"
	OpGte      FilterOperator = "gte"
	OpLte      FilterOperator = "lte"
	OpContains FilterOperator = "contains"
)

// FilterCondition is one row-level predicate from the writer config.
type FilterCondition struct {
	Field    string         `yaml:"field" json:"field"`
	Operator FilterOperator `yaml:"op" json:"op"`
	Value    interface{}    `yaml:"value" json:"value"`
}

// RowMatchesAny reports whether row passes at least one of conditions (OR
// semantics). An empty condition list accepts every row.
func RowMatchesAny(row Row, conditions []FilterCondition) bool {
	if len(conditions) == 0 {
		return true
	}
	for _, c := range conditions {
		if rowMatches(row, c) {
			return true
		}
	}
	return false
}

func rowMatches(row Row, c FilterCondition) bool {
	fieldVal, ok := row[c.Field]
	if !ok {
		return false
	}
	switch c.Operator {
	case OpEq:
		return valuesEqual(fieldVal, c.Value)
	case OpNe:
		return !valuesEqual(fieldVal, c.Value)
	case OpContains:
		fs, ok1 := asString(fieldVal)
		vs, ok2 := asString(c.Value)
		return ok1 && ok2 && strings.Contains(fs, vs)
	case OpGt, OpLt, OpGte, OpLte:
		return compareValues(fieldVal, c.Value, c.Operator)
	default:
		return false
	}
}

func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	default:
		return "", false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func valuesEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	as, aok := asString(a)
	bs, bok := asString(b)
	if aok && bok {
		return as == bs
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}
	return false
}

func compareValues(a, b interface{}, op FilterOperator) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return compareOrdered(af, bf, op)
		}
	}
	as, aok := asString(a)
	bs, bok := asString(b)
	if aok && bok {
		return compareOrdered(strings.Compare(as, bs), 0, op)
	}
	return false
}

func compareOrdered[T int | float64](a, b T, op FilterOperator) bool {
	switch op {
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	default:
		return false
	}
}
