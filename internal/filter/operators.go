// internal/filter/operators.go
package filter

import "reflect"

/*
 * Operator comparison logic.
 *
 * Implements the 11 comparison operators over resolved field values.
 * Comparison never raises: incompatible shapes evaluate to false.
 *
 * Operators:
 *   - eq/ne: Equality with numeric mixing (int/int64/float64 from JSON
 *     and the typed Event compare equal when numerically equal)
 *   - gt/lt/gte/lte: Numeric comparison; non-numeric operands yield false
 *   - in/not_in: Membership of the field value in the rule's list
 *   - contains_any/contains_all/not_contains: The field value must itself
 *     be a list; non-list field values yield false
 *
 * Why function-based: a switch over operators is cleaner than 11 interface
 * implementations with minimal behavior variation.
 */

// Compare applies the operator to a resolved field value and the rule's
// comparison operand (scalar or list, see Rule).
func Compare(op Operator, fieldValue, scalar any, list []any) bool {
	switch op {
	case OpEq:
		return compareEqual(fieldValue, scalar)
	case OpNe:
		return !compareEqual(fieldValue, scalar)
	case OpGt:
		return compareOrdered(fieldValue, scalar, func(c int) bool { return c > 0 })
	case OpLt:
		return compareOrdered(fieldValue, scalar, func(c int) bool { return c < 0 })
	case OpGte:
		return compareOrdered(fieldValue, scalar, func(c int) bool { return c >= 0 })
	case OpLte:
		return compareOrdered(fieldValue, scalar, func(c int) bool { return c <= 0 })
	case OpIn:
		return memberOf(fieldValue, list)
	case OpNotIn:
		return fieldValue != nil && !memberOf(fieldValue, list)
	case OpContainsAny:
		return containsAny(fieldValue, list)
	case OpContainsAll:
		return containsAll(fieldValue, list)
	case OpNotContains:
		fieldList, ok := asList(fieldValue)
		return ok && !anyOverlap(fieldList, list)
	default:
		return false
	}
}

// compareEqual performs equality comparison with numeric type mixing.
// JSON unmarshaling produces float64 while Event fields are int64/int;
// numeric pairs compare by value, everything else by interface equality.
// Uncomparable operands (a list field under a scalar operator) evaluate
// to false rather than panicking the interface comparison.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if !comparableValue(a) || !comparableValue(b) {
		return false
	}
	return a == b
}

// comparableValue reports whether == is defined for the value.
func comparableValue(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).Comparable()
}

// compareOrdered performs numeric three-way comparison and applies accept
// to the result. Non-numeric operands on either side yield false.
func compareOrdered(a, b any, accept func(int) bool) bool {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return false
	}
	switch {
	case na < nb:
		return accept(-1)
	case na > nb:
		return accept(1)
	default:
		return accept(0)
	}
}

// asNumbers attempts to convert both values to float64.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts numeric types produced by JSON unmarshaling and the
// typed Event fields. Non-numeric values report false.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// memberOf checks if value exists in the list using equality semantics.
func memberOf(value any, list []any) bool {
	if value == nil {
		return false
	}
	for _, elem := range list {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}

// asList normalizes a resolved field value into []any. Only genuine lists
// qualify; scalars report false so list operators fail closed on them.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// containsAny reports whether the field list shares at least one element
// with the rule list. Non-list field values yield false.
func containsAny(fieldValue any, list []any) bool {
	fieldList, ok := asList(fieldValue)
	if !ok {
		return false
	}
	return anyOverlap(fieldList, list)
}

// containsAll reports whether every rule list element is present in the
// field list. Non-list field values yield false.
func containsAll(fieldValue any, list []any) bool {
	fieldList, ok := asList(fieldValue)
	if !ok {
		return false
	}
	for _, want := range list {
		if !memberOf(want, fieldList) {
			return false
		}
	}
	return true
}

// anyOverlap reports whether the two lists share at least one element.
func anyOverlap(fieldList, list []any) bool {
	for _, elem := range fieldList {
		if memberOf(elem, list) {
			return true
		}
	}
	return false
}
