// internal/filter/operators_test.go
package filter

import (
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name       string
		op         Operator
		fieldValue any
		scalar     any
		list       []any
		want       bool
	}{
		// eq with numeric mixing: JSON gives float64, Event fields are int64
		{name: "eq: int64 field vs float64 operand", op: OpEq, fieldValue: int64(98000001), scalar: float64(98000001), want: true},
		{name: "eq: int field vs float64 operand", op: OpEq, fieldValue: 12, scalar: float64(12), want: true},
		{name: "eq: float64 exact", op: OpEq, fieldValue: 1500000000.0, scalar: 1500000000.0, want: true},
		{name: "eq: numeric mismatch", op: OpEq, fieldValue: int64(5), scalar: float64(6), want: false},
		{name: "eq: string match", op: OpEq, fieldValue: "Jita", scalar: "Jita", want: true},
		{name: "eq: string mismatch", op: OpEq, fieldValue: "Jita", scalar: "Amarr", want: false},
		{name: "eq: string vs number", op: OpEq, fieldValue: "5", scalar: float64(5), want: false},
		{name: "eq: nil field", op: OpEq, fieldValue: nil, scalar: "x", want: false},

		// ne
		{name: "ne: different strings", op: OpNe, fieldValue: "Jita", scalar: "Amarr", want: true},
		{name: "ne: equal numbers mixed types", op: OpNe, fieldValue: int64(3), scalar: float64(3), want: false},
		{name: "ne: nil field differs from operand", op: OpNe, fieldValue: nil, scalar: "x", want: true},

		// ordering
		{name: "gt: above threshold", op: OpGt, fieldValue: 2000000000.0, scalar: float64(1000000000), want: true},
		{name: "gt: at threshold", op: OpGt, fieldValue: 1000000000.0, scalar: float64(1000000000), want: false},
		{name: "gte: at threshold", op: OpGte, fieldValue: 1000000000.0, scalar: float64(1000000000), want: true},
		{name: "lt: below threshold", op: OpLt, fieldValue: 3, scalar: float64(5), want: true},
		{name: "lte: at threshold", op: OpLte, fieldValue: int64(20), scalar: float64(20), want: true},
		{name: "gt: non-numeric field", op: OpGt, fieldValue: "high", scalar: float64(5), want: false},
		{name: "gt: nil field", op: OpGt, fieldValue: nil, scalar: float64(5), want: false},
		{name: "gt: non-numeric operand", op: OpGt, fieldValue: 10.0, scalar: "five", want: false},

		// in / not_in
		{name: "in: member", op: OpIn, fieldValue: int64(30000142), list: []any{float64(30000142), float64(30002187)}, want: true},
		{name: "in: non-member", op: OpIn, fieldValue: int64(30000001), list: []any{float64(30000142)}, want: false},
		{name: "in: nil field never matches", op: OpIn, fieldValue: nil, list: []any{nil}, want: false},
		{name: "in: string member", op: OpIn, fieldValue: "capsule", list: []any{"capsule", "frigate"}, want: true},
		{name: "not_in: non-member", op: OpNotIn, fieldValue: int64(30000001), list: []any{float64(30000142)}, want: true},
		{name: "not_in: member", op: OpNotIn, fieldValue: int64(30000142), list: []any{float64(30000142)}, want: false},
		{name: "not_in: nil field fails closed", op: OpNotIn, fieldValue: nil, list: []any{float64(1)}, want: false},

		// contains_* over list-valued fields
		{name: "contains_any: overlap", op: OpContainsAny, fieldValue: []string{"cyno", "covert"}, list: []any{"cyno"}, want: true},
		{name: "contains_any: no overlap", op: OpContainsAny, fieldValue: []string{"shield", "armor"}, list: []any{"cyno"}, want: false},
		{name: "contains_any: scalar field fails closed", op: OpContainsAny, fieldValue: "cyno", list: []any{"cyno"}, want: false},
		{name: "contains_any: nil field", op: OpContainsAny, fieldValue: nil, list: []any{"cyno"}, want: false},
		{name: "contains_all: all present", op: OpContainsAll, fieldValue: []string{"cyno", "covert", "cloak"}, list: []any{"cyno", "cloak"}, want: true},
		{name: "contains_all: one missing", op: OpContainsAll, fieldValue: []string{"cyno"}, list: []any{"cyno", "cloak"}, want: false},
		{name: "contains_all: empty rule list", op: OpContainsAll, fieldValue: []string{"cyno"}, list: []any{}, want: true},
		{name: "not_contains: no overlap", op: OpNotContains, fieldValue: []string{"shield"}, list: []any{"cyno"}, want: true},
		{name: "not_contains: overlap", op: OpNotContains, fieldValue: []string{"cyno"}, list: []any{"cyno"}, want: false},
		{name: "not_contains: scalar field fails closed", op: OpNotContains, fieldValue: "shield", list: []any{"cyno"}, want: false},
		{name: "not_contains: nil field fails closed", op: OpNotContains, fieldValue: nil, list: []any{"cyno"}, want: false},

		// unknown operator
		{name: "unknown operator yields false", op: Operator("regex"), fieldValue: "x", scalar: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.op, tt.fieldValue, tt.scalar, tt.list)
			if got != tt.want {
				t.Errorf("Compare(%v, %v, %v, %v) = %v, want %v",
					tt.op, tt.fieldValue, tt.scalar, tt.list, got, tt.want)
			}
		})
	}
}

func TestCompare_UncomparableOperandsFailClosed(t *testing.T) {
	// A scalar operator pointed at a list field (module_tags under eq/in)
	// puts an uncomparable value on one or both sides of ==. Compare must
	// evaluate to false, never panic.
	tests := []struct {
		name       string
		op         Operator
		fieldValue any
		scalar     any
		list       []any
	}{
		{name: "eq: list field vs list operand", op: OpEq, fieldValue: []string{"cyno"}, scalar: []string{"cyno"}},
		{name: "eq: list field vs string operand", op: OpEq, fieldValue: []string{"cyno"}, scalar: "cyno"},
		{name: "eq: map operand", op: OpEq, fieldValue: "x", scalar: map[string]any{"a": 1}},
		{name: "in: list field vs list element", op: OpIn, fieldValue: []string{"cyno"}, list: []any{[]string{"cyno"}}},
		{name: "in: generic list field", op: OpIn, fieldValue: []any{"cyno"}, list: []any{[]any{"cyno"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.op, tt.fieldValue, tt.scalar, tt.list); got {
				t.Errorf("Compare(%v, %v, %v, %v) = true, want false",
					tt.op, tt.fieldValue, tt.scalar, tt.list)
			}
		})
	}

	// ne is eq's negation: uncomparable operands are unequal.
	if !Compare(OpNe, []string{"cyno"}, "cyno", nil) {
		t.Error("Compare(ne, list field, scalar) = false, want true")
	}
}

func TestCompare_GenericListField(t *testing.T) {
	// Field values decoded from JSON arrive as []any, not []string.
	got := Compare(OpContainsAny, []any{"cyno", "covert"}, nil, []any{"covert"})
	if !got {
		t.Errorf("Compare(contains_any, []any field) = false, want true")
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{name: "float64", value: 3.5, want: 3.5, ok: true},
		{name: "int", value: 7, want: 7, ok: true},
		{name: "int64", value: int64(9), want: 9, ok: true},
		{name: "int32", value: int32(4), want: 4, ok: true},
		{name: "float32", value: float32(2), want: 2, ok: true},
		{name: "string", value: "3.5", ok: false},
		{name: "nil", value: nil, ok: false},
		{name: "bool", value: true, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toFloat64(tt.value)
			if ok != tt.ok {
				t.Fatalf("toFloat64(%v) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("toFloat64(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
