package model

import (
	"fmt"
	"strings"
)

// Kind classifies a validation failure. Every public entry point in this
// library fails with an *Error (possibly inside an ErrorList), never with a
// bare sentinel, so callers can dispatch on the kind without string
// matching.
type Kind int

const (
	// KindSchemaViolation is a shape or type mismatch in the raw document.
	KindSchemaViolation Kind = iota
	// KindSymbolResolution is an unknown parameter or namespace reference
	// in a format string or combination expression.
	KindSymbolResolution
	// KindRangeExpression is a malformed or degenerate numeric range.
	KindRangeExpression
	// KindCombination is a parameter referenced zero or multiple times in a
	// combination expression, or an associative-group length mismatch.
	KindCombination
	// KindDependencyGraph is an unresolved dependsOn target or a dependency
	// cycle.
	KindDependencyGraph
	// KindParameterMergeConflict is a type, default, or allowed-value
	// disagreement between parameter definitions merged from multiple
	// sources.
	KindParameterMergeConflict
	// KindParameterBinding is a missing required value, a type-coercion
	// failure, or an unknown caller-supplied parameter name.
	KindParameterBinding
	// KindPathResolution is a relative PATH parameter value with no base
	// directory available to resolve it against.
	KindPathResolution
)

func (k Kind) String() string {
	switch k {
	case KindSchemaViolation:
		return "schema violation"
	case KindSymbolResolution:
		return "symbol resolution error"
	case KindRangeExpression:
		return "range expression error"
	case KindCombination:
		return "combination error"
	case KindDependencyGraph:
		return "dependency graph error"
	case KindParameterMergeConflict:
		return "parameter merge conflict"
	case KindParameterBinding:
		return "parameter binding error"
	case KindPathResolution:
		return "path resolution error"
	}
	return "error"
}

// Error is the structured validation error surfaced by all public entry
// points. Path locates the offending field within the source document
// ("steps[2].script.actions.onRun.command"); it is empty when the failure
// is not attributable to a single field.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WrapError attaches a kind and a document field path to an error.
func WrapError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Errorf is WrapError over a formatted message.
func Errorf(kind Kind, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// ErrorList accumulates independent validation failures so that a single
// decode or compile pass can report every violation it finds rather than
// just the first.
type ErrorList []error

func (e *ErrorList) Add(err error) {
	if err == nil {
		return
	}
	// Flatten nested lists so callers see one level of violations.
	if list, ok := err.(ErrorList); ok {
		*e = append(*e, list...)
		return
	}
	*e = append(*e, err)
}

func (e ErrorList) HasErrors() bool { return len(e) > 0 }

// AsError returns nil when the list is empty, the sole error when it has
// exactly one entry, and the list itself otherwise.
func (e ErrorList) AsError() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	default:
		return e
	}
}

func (e ErrorList) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

func (e ErrorList) Unwrap() []error { return e }
