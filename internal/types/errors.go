package types

import "errors"

// Sentinel errors for killwatch operations.
var (
	// ErrUnknownOperator indicates a filter rule uses an unsupported operator.
	ErrUnknownOperator = errors.New("unknown filter operator")

	// ErrUnknownCombinator indicates a group condition other than and/or.
	ErrUnknownCombinator = errors.New("unknown group combinator")

	// ErrMissingField indicates a rule node without a field name.
	ErrMissingField = errors.New("rule is missing field")

	// ErrMissingValue indicates a rule node without a comparison value.
	ErrMissingValue = errors.New("rule is missing value")

	// ErrValueNotList indicates a list operator with a non-list value.
	ErrValueNotList = errors.New("operator requires a list value")

	// ErrFilterTooDeep indicates a filter tree exceeds MaxFilterDepth.
	ErrFilterTooDeep = errors.New("filter tree exceeds maximum depth")

	// ErrTooManyRules indicates a profile exceeds MaxRulesPerProfile.
	ErrTooManyRules = errors.New("profile has too many rules")

	// ErrTooManyListValues indicates a value list exceeds MaxListValues.
	ErrTooManyListValues = errors.New("value list has too many entries")

	// ErrEmptyFilter indicates a profile definition with no rules at all.
	ErrEmptyFilter = errors.New("filter definition is empty")

	// ErrEngineNotLoaded indicates no profile generation has loaded yet;
	// surfaced by the health endpoint during startup.
	ErrEngineNotLoaded = errors.New("no profile generation loaded")
)
