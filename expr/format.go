package expr

import (
	"fmt"
	"strings"
)

const (
	openBraces  = "{{"
	closeBraces = "}}"
)

// Reference is one parsed {{Name.Sub}} interpolation expression within a
// FormatString. Name is the full dotted identifier; Start and End are byte
// offsets of the expression span (braces included) in the source string.
type Reference struct {
	Name       string
	Start, End int
}

type segment struct {
	literal string
	ref     int // index into refs, -1 for a literal segment
}

// FormatString is the immutable parsed form of a string literal containing
// zero or more {{Namespace.Name}} interpolation expressions. It is created
// once at decode time and never mutated; Resolve is a pure function of the
// supplied symbol table.
type FormatString struct {
	source   string
	segments []segment
	refs     []Reference
}

// ParseFormatString scans the string for {{ }} spans and parses the dotted
// identifier inside each one. Unbalanced braces and malformed identifiers
// fail with a FormatStringError carrying the offending span.
func ParseFormatString(s string) (*FormatString, error) {
	fs := &FormatString{source: s}

	rest := s
	offset := 0
	for {
		open := strings.Index(rest, openBraces)
		if open < 0 {
			if closing := strings.Index(rest, closeBraces); closing >= 0 {
				return nil, &FormatStringError{
					String: s,
					Start:  offset + closing,
					End:    offset + closing + len(closeBraces),
					Err:    fmt.Errorf("closing braces without a matching %q", openBraces),
				}
			}
			if rest != "" {
				fs.segments = append(fs.segments, segment{literal: rest, ref: -1})
			}
			return fs, nil
		}

		if open > 0 {
			literal := rest[:open]
			if closing := strings.Index(literal, closeBraces); closing >= 0 {
				return nil, &FormatStringError{
					String: s,
					Start:  offset + closing,
					End:    offset + closing + len(closeBraces),
					Err:    fmt.Errorf("closing braces without a matching %q", openBraces),
				}
			}
			fs.segments = append(fs.segments, segment{literal: literal, ref: -1})
		}

		closing := strings.Index(rest[open:], closeBraces)
		if closing < 0 {
			return nil, &FormatStringError{
				String: s,
				Start:  offset + open,
				End:    len(s),
				Err:    fmt.Errorf("opening braces without a matching %q", closeBraces),
			}
		}
		closing += open

		inner := rest[open+len(openBraces) : closing]
		name, err := parseFullName(inner)
		if err != nil {
			return nil, &FormatStringError{
				String: s,
				Start:  offset + open,
				End:    offset + closing + len(closeBraces),
				Expr:   strings.TrimSpace(inner),
				Err:    err,
			}
		}

		fs.refs = append(fs.refs, Reference{
			Name:  name,
			Start: offset + open,
			End:   offset + closing + len(closeBraces),
		})
		fs.segments = append(fs.segments, segment{ref: len(fs.refs) - 1})

		offset += closing + len(closeBraces)
		rest = rest[closing+len(closeBraces):]
	}
}

// LiteralFormatString wraps an already-resolved string as a FormatString
// with no interpolation expressions. Braces in the text are treated as
// plain characters, not re-parsed.
func LiteralFormatString(s string) *FormatString {
	fs := &FormatString{source: s}
	if s != "" {
		fs.segments = []segment{{literal: s, ref: -1}}
	}
	return fs
}

// parseFullName matches <Name> ('.' <Name>)* over the expression text.
func parseFullName(expression string) (string, error) {
	ts, err := newTokenStream(expression, tokenName, tokenDot)
	if err != nil {
		return "", err
	}
	if ts.atEnd() {
		return "", ErrEmptyExpression
	}

	tok, err := ts.expect(tokenName)
	if err != nil {
		return "", err
	}
	names := []string{tok.value}
	for {
		dot, ok := ts.peek()
		if !ok {
			break
		}
		if dot.kind != tokenDot {
			return "", tokenError(ts.expr, dot.value, dot.start)
		}
		_, _ = ts.next()
		tok, err = ts.expect(tokenName)
		if err != nil {
			return "", err
		}
		names = append(names, tok.value)
	}
	return strings.Join(names, "."), nil
}

// String returns the original, unresolved source text.
func (f *FormatString) String() string { return f.source }

// References returns the interpolation expressions in source order. A name
// may appear more than once if it is referenced more than once.
func (f *FormatString) References() []Reference {
	refs := make([]Reference, len(f.refs))
	copy(refs, f.refs)
	return refs
}

// HasReferences reports whether the string contains any interpolation
// expressions at all.
func (f *FormatString) HasReferences() bool { return len(f.refs) > 0 }

// Resolve substitutes every interpolation expression with its value from
// the symbol table. A reference with no bound value is a hard failure.
func (f *FormatString) Resolve(symtab SymbolTable) (string, error) {
	var sb strings.Builder
	for _, seg := range f.segments {
		if seg.ref < 0 {
			sb.WriteString(seg.literal)
			continue
		}
		ref := f.refs[seg.ref]
		value, ok := symtab[ref.Name]
		if !ok {
			return "", &FormatStringError{
				String: f.source,
				Start:  ref.Start,
				End:    ref.End,
				Expr:   ref.Name,
				Err:    fmt.Errorf("%w: %s", ErrUnboundSymbol, ref.Name),
			}
		}
		sb.WriteString(value)
	}
	return sb.String(), nil
}
