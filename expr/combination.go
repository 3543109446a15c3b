package expr

import (
	"fmt"
	"strings"
)

// CombinationTerm is one top-level axis of a combination expression. A term
// with a single name is a plain identifier; a parenthesized term associates
// two or more parameters whose domains are stepped through in lockstep.
type CombinationTerm struct {
	Names      []string
	Associated bool
}

func (t CombinationTerm) String() string {
	if t.Associated {
		return "(" + strings.Join(t.Names, ", ") + ")"
	}
	return t.Names[0]
}

// CombinationExpr describes how a parameter space's individual parameter
// domains combine. Top-level comma-joined terms are independent axes whose
// domains form a cross product; a parenthesized group is a single axis
// whose member domains are zipped together.
type CombinationExpr struct {
	source string
	terms  []CombinationTerm
}

// ParseCombinationExpr parses the comma/parenthesis grammar:
//
//	<Expr>  ::= <Term> (',' <Term>)*
//	<Term>  ::= <Name> | '(' <Name> (',' <Name>)+ ')'
//
// A parameter name may appear at most once across the whole expression.
func ParseCombinationExpr(expression string) (*CombinationExpr, error) {
	ts, err := newTokenStream(expression, tokenName, tokenComma, tokenLParen, tokenRParen)
	if err != nil {
		return nil, err
	}
	if ts.atEnd() {
		return nil, fmt.Errorf("%w: combination expression is empty", ErrEmptyExpression)
	}

	ce := &CombinationExpr{source: expression}
	seen := make(map[string]bool)
	for {
		term, err := parseCombinationTerm(ts)
		if err != nil {
			return nil, err
		}
		for _, name := range term.Names {
			if seen[name] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
			}
			seen[name] = true
		}
		ce.terms = append(ce.terms, term)

		tok, ok := ts.peek()
		if !ok {
			break
		}
		if tok.kind != tokenComma {
			return nil, tokenError(ts.expr, tok.value, tok.start)
		}
		_, _ = ts.next()
	}
	return ce, nil
}

func parseCombinationTerm(ts *tokenStream) (CombinationTerm, error) {
	tok, err := ts.next()
	if err != nil {
		return CombinationTerm{}, err
	}

	switch tok.kind {
	case tokenName:
		return CombinationTerm{Names: []string{tok.value}}, nil

	case tokenLParen:
		var names []string
		for {
			name, err := ts.expect(tokenName)
			if err != nil {
				return CombinationTerm{}, err
			}
			names = append(names, name.value)

			sep, err := ts.next()
			if err != nil {
				return CombinationTerm{}, err
			}
			if sep.kind == tokenRParen {
				return CombinationTerm{Names: names, Associated: true}, nil
			}
			if sep.kind != tokenComma {
				return CombinationTerm{}, tokenError(ts.expr, sep.value, sep.start)
			}
		}

	default:
		return CombinationTerm{}, tokenError(ts.expr, tok.value, tok.start)
	}
}

// Terms returns the top-level axes in declaration order.
func (c *CombinationExpr) Terms() []CombinationTerm {
	terms := make([]CombinationTerm, len(c.terms))
	copy(terms, c.terms)
	return terms
}

// Names returns every referenced parameter name in order of appearance.
func (c *CombinationExpr) Names() []string {
	var names []string
	for _, term := range c.terms {
		names = append(names, term.Names...)
	}
	return names
}

func (c *CombinationExpr) String() string { return c.source }

// DefaultCombination builds the implicit cross-product expression used when
// a parameter space declares no combination: every parameter is its own
// independent axis, in declaration order.
func DefaultCombination(names []string) *CombinationExpr {
	ce := &CombinationExpr{source: strings.Join(names, ", ")}
	for _, name := range names {
		ce.terms = append(ce.terms, CombinationTerm{Names: []string{name}})
	}
	return ce
}
