// internal/filter/ast.go
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/killwatch/internal/types"
)

/*
 * Filter definition parsing.
 *
 * Parses the profile store's JSON wire format into a typed AST:
 *
 *   { "condition": "and"|"or", "rules": [ <group>|<rule>, ... ] }
 *   <rule> = { "field": string, "operator": string, "value": any }
 *
 * A node carrying "condition" or "rules" is a group; anything else must be
 * a leaf rule. Validation happens entirely at parse time (operator known,
 * value shape matches operator, depth and size limits) so that compiled
 * predicates can be pure and panic-free without per-event checks.
 *
 * Parse errors wrap the sentinel errors in internal/types; callers isolate
 * them per profile and never abort loading the remaining set.
 */

// Combinator joins the children of a group.
type Combinator int

const (
	And Combinator = iota
	Or
)

// String returns the wire-format name of the combinator.
func (c Combinator) String() string {
	if c == Or {
		return "or"
	}
	return "and"
}

// Operator is the wire-format comparison operator of a leaf rule.
type Operator string

// Supported rule operators.
const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpGte         Operator = "gte"
	OpLte         Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContainsAny Operator = "contains_any"
	OpContainsAll Operator = "contains_all"
	OpNotContains Operator = "not_contains"
)

// Node is one vertex of a filter tree: either *Rule or *Group.
type Node interface {
	node()
}

// Rule is a leaf comparison against a single event field.
type Rule struct {
	Field string
	Op    Operator
	Value any   // scalar for eq/ne/ordering operators
	List  []any // list for in/not_in/contains_* operators
}

func (*Rule) node() {}

// Group combines child nodes with a single combinator.
type Group struct {
	Combinator Combinator
	Children   []Node
}

func (*Group) node() {}

// rawNode is the untyped wire shape of a filter node. Groups and rules
// share one struct; presence of Rules distinguishes them.
type rawNode struct {
	Condition string            `json:"condition"`
	Rules     []json.RawMessage `json:"rules"`
	Field     string            `json:"field"`
	Operator  string            `json:"operator"`
	Value     any               `json:"value"`
}

// listOperators require a list-shaped value.
var listOperators = map[Operator]bool{
	OpIn:          true,
	OpNotIn:       true,
	OpContainsAny: true,
	OpContainsAll: true,
	OpNotContains: true,
}

// scalarOperators require a scalar value.
var scalarOperators = map[Operator]bool{
	OpEq:  true,
	OpNe:  true,
	OpGt:  true,
	OpLt:  true,
	OpGte: true,
	OpLte: true,
}

// Parse decodes and validates a profile definition into a filter tree.
// The top level must be a group. Returns wrapped sentinel errors from
// internal/types for every validation failure.
func Parse(definition []byte) (*Group, error) {
	var raw rawNode
	if err := json.Unmarshal(definition, &raw); err != nil {
		return nil, fmt.Errorf("malformed filter definition: %w", err)
	}
	if raw.Rules == nil {
		return nil, types.ErrEmptyFilter
	}

	ruleCount := 0
	group, err := parseGroup(raw, 1, &ruleCount)
	if err != nil {
		return nil, err
	}
	if ruleCount == 0 {
		return nil, types.ErrEmptyFilter
	}
	return group, nil
}

// parseGroup validates a group node and recursively parses its children.
func parseGroup(raw rawNode, depth int, ruleCount *int) (*Group, error) {
	if depth > types.MaxFilterDepth {
		return nil, types.ErrFilterTooDeep
	}

	var comb Combinator
	switch raw.Condition {
	case "and", "":
		comb = And
	case "or":
		comb = Or
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownCombinator, raw.Condition)
	}

	group := &Group{Combinator: comb, Children: make([]Node, 0, len(raw.Rules))}
	for _, childRaw := range raw.Rules {
		var child rawNode
		if err := json.Unmarshal(childRaw, &child); err != nil {
			return nil, fmt.Errorf("malformed filter node: %w", err)
		}

		if child.Rules != nil || child.Condition != "" {
			sub, err := parseGroup(child, depth+1, ruleCount)
			if err != nil {
				return nil, err
			}
			group.Children = append(group.Children, sub)
			continue
		}

		rule, err := parseRule(child, ruleCount)
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, rule)
	}

	return group, nil
}

// parseRule validates a leaf rule's operator and value shape.
func parseRule(raw rawNode, ruleCount *int) (*Rule, error) {
	*ruleCount++
	if *ruleCount > types.MaxRulesPerProfile {
		return nil, types.ErrTooManyRules
	}
	if raw.Field == "" {
		return nil, types.ErrMissingField
	}

	op := Operator(raw.Operator)
	if raw.Value == nil {
		return nil, fmt.Errorf("%w: field %q", types.ErrMissingValue, raw.Field)
	}

	switch {
	case listOperators[op]:
		list, ok := raw.Value.([]any)
		if !ok {
			// A scalar under a contains operator is treated as a
			// single-element list; in/not_in stay strict.
			if op == OpIn || op == OpNotIn {
				return nil, fmt.Errorf("%w: operator %q on field %q", types.ErrValueNotList, op, raw.Field)
			}
			list = []any{raw.Value}
		}
		if len(list) > types.MaxListValues {
			return nil, types.ErrTooManyListValues
		}
		return &Rule{Field: raw.Field, Op: op, List: list}, nil

	case scalarOperators[op]:
		return &Rule{Field: raw.Field, Op: op, Value: raw.Value}, nil

	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownOperator, raw.Operator)
	}
}
