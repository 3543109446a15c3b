package expr

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyExpression    = errors.New("empty expression")
	ErrUnexpectedToken    = errors.New("unexpected token")
	ErrUnexpectedEnd      = errors.New("unexpectedly reached end of expression")
	ErrZeroStep           = errors.New("range step must not be zero")
	ErrEmptyRange         = errors.New("range cannot be empty")
	ErrRangeDirection     = errors.New("range direction does not match the sign of its step")
	ErrOverlappingRanges  = errors.New("range expression contains overlapping ranges")
	ErrDuplicateParameter = errors.New("parameter referenced more than once")
	ErrUnboundSymbol      = errors.New("symbol has no value")
)

// tokenError reports an unexpected token together with the text that was
// consumed before it, mirroring how far the scan got.
func tokenError(expression, value string, pos int) error {
	return fmt.Errorf("%w: unexpected %q in %q after %q",
		ErrUnexpectedToken, value, expression, expression[:pos])
}

// FormatStringError reports a malformed or unresolvable interpolation
// expression together with its position in the containing string.
type FormatStringError struct {
	String     string
	Start, End int
	Expr       string
	Err        error
}

func (e *FormatStringError) Error() string {
	msg := fmt.Sprintf("failed to process interpolation expression in %q at [%d, %d]",
		e.String, e.Start, e.End)
	if e.Expr != "" {
		msg += fmt.Sprintf(": expression %q", e.Expr)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatStringError) Unwrap() error { return e.Err }
