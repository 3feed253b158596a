// internal/filter/compile.go
package filter

import (
	"fmt"

	"github.com/solatis/killwatch/internal/types"
)

/*
 * Filter compilation.
 *
 * Compiles a parsed filter tree into a composed predicate closure instead
 * of re-interpreting the tree per event. Leaf rules become closures over
 * (field, operator, operand); groups become short-circuiting and/or
 * composition of their children.
 *
 * Invariant: a compiled predicate is pure and never panics. All validation
 * happens at parse time, and the profile-level predicate additionally
 * recovers from any internal failure and treats it as "no match".
 *
 * Compilation failures isolate to the single offending profile: the
 * returned CompiledProfile carries a never-matching predicate and no tree,
 * so the profile is excluded from indexing until its definition is fixed
 * and the engine reloads.
 */

// Predicate is an executable filter over events. Pure and panic-free.
type Predicate func(*types.Event) bool

// CompiledProfile is the engine's read-only projection of a profile.
type CompiledProfile struct {
	ProfileID types.ProfileID
	Name      string
	Predicate Predicate
	Tree      *Group // nil when compilation failed
}

// CompileError records why a single profile failed to compile.
type CompileError struct {
	ProfileID types.ProfileID
	Reason    error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("profile %s: %v", e.ProfileID, e.Reason)
}

// Unwrap exposes the underlying parse error for errors.Is checks.
func (e *CompileError) Unwrap() error { return e.Reason }

// Compile turns a parsed filter tree into an executable predicate.
// The tree must come from Parse; compilation itself cannot fail.
func Compile(g *Group) Predicate {
	return compileGroup(g)
}

// CompileProfile parses and compiles one profile definition.
// On failure the profile still produces a CompiledProfile, but with a
// never-matching predicate and nil tree, plus the CompileError.
func CompileProfile(p types.Profile) (CompiledProfile, *CompileError) {
	tree, err := Parse(p.Definition)
	if err != nil {
		return CompiledProfile{
			ProfileID: p.ProfileID,
			Name:      p.Name,
			Predicate: neverMatch,
		}, &CompileError{ProfileID: p.ProfileID, Reason: err}
	}

	inner := Compile(tree)
	return CompiledProfile{
		ProfileID: p.ProfileID,
		Name:      p.Name,
		Predicate: safe(inner),
		Tree:      tree,
	}, nil
}

// neverMatch is the predicate of a profile that failed to compile.
func neverMatch(*types.Event) bool { return false }

// safe converts any panic inside a predicate into "no match".
func safe(p Predicate) Predicate {
	return func(e *types.Event) (matched bool) {
		defer func() {
			if r := recover(); r != nil {
				matched = false
			}
		}()
		return p(e)
	}
}

// compileGroup composes child predicates with short-circuit and/or.
func compileGroup(g *Group) Predicate {
	children := make([]Predicate, len(g.Children))
	for i, child := range g.Children {
		switch n := child.(type) {
		case *Group:
			children[i] = compileGroup(n)
		case *Rule:
			children[i] = compileRule(n)
		}
	}

	if g.Combinator == Or {
		return func(e *types.Event) bool {
			for _, p := range children {
				if p(e) {
					return true
				}
			}
			return false
		}
	}
	return func(e *types.Event) bool {
		for _, p := range children {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// compileRule closes over the rule's operands. Ordering operators
// pre-parse their operand once so the hot path is a single comparison.
func compileRule(r *Rule) Predicate {
	field, op := r.Field, r.Op

	switch op {
	case OpGt, OpLt, OpGte, OpLte:
		// Non-numeric operand: the rule can never match, decided here
		// rather than per event.
		threshold, ok := toFloat64(r.Value)
		if !ok {
			return neverMatch
		}
		return func(e *types.Event) bool {
			return Compare(op, Resolve(e, field), threshold, nil)
		}
	default:
		value, list := r.Value, r.List
		return func(e *types.Event) bool {
			return Compare(op, Resolve(e, field), value, list)
		}
	}
}
