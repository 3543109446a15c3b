package expr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// IntRange is an inclusive integer interval with a step. Ascending ranges
// have a positive step and descending ranges a negative one; the end value
// is included exactly when it lands on a step boundary.
type IntRange struct {
	start, end, step int
}

func NewIntRange(start, end, step int) (IntRange, error) {
	if step == 0 {
		return IntRange{}, ErrZeroStep
	}
	if start < end && step < 0 {
		return IntRange{}, fmt.Errorf("%w: ascending range %d-%d with step %d", ErrRangeDirection, start, end, step)
	}
	if start > end && step > 0 {
		return IntRange{}, fmt.Errorf("%w: descending range %d-%d with step %d", ErrRangeDirection, start, end, step)
	}
	return IntRange{start: start, end: end, step: step}, nil
}

func (r IntRange) Start() int { return r.start }
func (r IntRange) End() int   { return r.end }
func (r IntRange) Step() int  { return r.step }

// Len returns the number of values in the range. A range is never empty:
// the start value is always a member.
func (r IntRange) Len() int {
	if r.step > 0 {
		return (r.end-r.start)/r.step + 1
	}
	return (r.start-r.end)/(-r.step) + 1
}

// At returns the i-th value of the range. i must be in [0, Len()).
func (r IntRange) At(i int) int { return r.start + i*r.step }

// last returns the largest reached value for ascending ranges and the
// smallest for descending ones. It can differ from End when the end does
// not land on a step boundary.
func (r IntRange) last() int { return r.At(r.Len() - 1) }

func (r IntRange) String() string {
	switch {
	case r.Len() == 1:
		return strconv.Itoa(r.start)
	case r.step == 1:
		return fmt.Sprintf("%d-%d", r.start, r.end)
	default:
		return fmt.Sprintf("%d-%d:%d", r.start, r.end, r.step)
	}
}

// IntRangeExpr is a set of integer values represented as a sorted list of
// non-overlapping IntRanges, e.g. "1-10" or "1-10:2,40,100-90:-5".
type IntRangeExpr struct {
	ranges []IntRange
	// cumulative lengths per range, for binary-searched indexing
	cumLen []int
	length int
}

// NewIntRangeExpr sorts the ranges, coalesces adjacent ranges with equal
// steps, and rejects empty or overlapping inputs.
func NewIntRangeExpr(ranges []IntRange) (*IntRangeExpr, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: range expression has no ranges", ErrEmptyRange)
	}

	sorted := make([]IntRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.end != b.end {
			return a.end < b.end
		}
		return a.step < b.step
	})

	merged := []IntRange{sorted[0]}
	for _, r := range sorted[1:] {
		prev := &merged[len(merged)-1]
		if prev.step == r.step && prev.end+r.step == r.start {
			prev.end = r.end
		} else {
			merged = append(merged, r)
		}
	}

	expr := &IntRangeExpr{ranges: merged}
	var prev *IntRange
	for i := range merged {
		r := merged[i]
		if prev != nil && max(prev.start, prev.end) >= min(r.start, r.end) {
			return nil, fmt.Errorf("%w: %s overlaps with %s", ErrOverlappingRanges, prev, r)
		}
		expr.length += r.Len()
		expr.cumLen = append(expr.cumLen, expr.length)
		prev = &merged[i]
	}
	return expr, nil
}

// ParseIntRangeExpr parses the string form of a range expression.
//
// Grammar:
//
//	<RangeExpr>  ::= <Element> | <Element> ',' <RangeExpr>
//	<Element>    ::= <Number> | <Range> | <StepRange>
//	<Range>      ::= <Number> '-' <Number>
//	<StepRange>  ::= <Range> ':' <Number>
//
// Numbers may be negative; whitespace between tokens is ignored.
func ParseIntRangeExpr(expression string) (*IntRangeExpr, error) {
	ts, err := newTokenStream(expression, tokenPosInt, tokenHyphen, tokenColon, tokenComma)
	if err != nil {
		return nil, err
	}
	if ts.atEnd() {
		return nil, fmt.Errorf("%w: range expression is empty", ErrEmptyExpression)
	}

	var ranges []IntRange
	for {
		r, err := parseOneRange(ts)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)

		tok, ok := ts.peek()
		if !ok {
			break
		}
		if tok.kind != tokenComma {
			return nil, tokenError(ts.expr, tok.value, tok.start)
		}
		_, _ = ts.next()
	}
	return NewIntRangeExpr(ranges)
}

func parseInteger(ts *tokenStream) (int, error) {
	sign := 1
	if tok, ok := ts.peek(); ok && tok.kind == tokenHyphen {
		sign = -1
		_, _ = ts.next()
	}
	tok, err := ts.expect(tokenPosInt)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(tok.value)
	if err != nil {
		return 0, tokenError(ts.expr, tok.value, tok.start)
	}
	return sign * value, nil
}

func parseOneRange(ts *tokenStream) (IntRange, error) {
	start, err := parseInteger(ts)
	if err != nil {
		return IntRange{}, err
	}

	tok, ok := ts.peek()
	if !ok || tok.kind == tokenComma {
		return NewIntRange(start, start, 1)
	}
	if _, err := ts.expect(tokenHyphen); err != nil {
		return IntRange{}, err
	}

	end, err := parseInteger(ts)
	if err != nil {
		return IntRange{}, err
	}

	tok, ok = ts.peek()
	if !ok || tok.kind == tokenComma {
		return NewIntRange(start, end, 1)
	}
	if _, err := ts.expect(tokenColon); err != nil {
		return IntRange{}, err
	}

	step, err := parseInteger(ts)
	if err != nil {
		return IntRange{}, err
	}
	return NewIntRange(start, end, step)
}

// Len returns the total number of values across all ranges.
func (e *IntRangeExpr) Len() int { return e.length }

// At returns the i-th value of the expression in sorted range order.
// O(log n) in the number of ranges.
func (e *IntRangeExpr) At(i int) (int, error) {
	if i < 0 {
		i = e.length + i
	}
	if i < 0 || i >= e.length {
		return 0, fmt.Errorf("index %d is out of range [0, %d)", i, e.length)
	}
	ri := sort.SearchInts(e.cumLen, i+1)
	if ri > 0 {
		i -= e.cumLen[ri-1]
	}
	return e.ranges[ri].At(i), nil
}

// Values materializes the full value sequence in order.
func (e *IntRangeExpr) Values() []int {
	values := make([]int, 0, e.length)
	for _, r := range e.ranges {
		for i := 0; i < r.Len(); i++ {
			values = append(values, r.At(i))
		}
	}
	return values
}

// Ranges returns a copy of the coalesced, sorted ranges.
func (e *IntRangeExpr) Ranges() []IntRange {
	ranges := make([]IntRange, len(e.ranges))
	copy(ranges, e.ranges)
	return ranges
}

func (e *IntRangeExpr) String() string {
	parts := make([]string, len(e.ranges))
	for i, r := range e.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
