package expr

import "fmt"

type tokenKind int

const (
	tokenName tokenKind = iota
	tokenPosInt
	tokenDot
	tokenHyphen
	tokenColon
	tokenComma
	tokenLParen
	tokenRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokenName:
		return "name"
	case tokenPosInt:
		return "integer"
	case tokenDot:
		return "'.'"
	case tokenHyphen:
		return "'-'"
	case tokenColon:
		return "':'"
	case tokenComma:
		return "','"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	}
	return "unknown"
}

type token struct {
	kind  tokenKind
	value string
	start int
}

// tokenStream lexes an expression up front. Each grammar passes the set of
// token kinds it supports; anything else in the input is a token error at
// scan time.
type tokenStream struct {
	expr   string
	tokens []token
	pos    int
}

func newTokenStream(expression string, supported ...tokenKind) (*tokenStream, error) {
	allowed := make(map[tokenKind]bool, len(supported))
	for _, kind := range supported {
		allowed[kind] = true
	}

	ts := &tokenStream{expr: expression}
	i := 0
	for i < len(expression) {
		c := expression[i]
		switch {
		case c == ' ' || c == '\t':
			i++
			continue
		case c >= '0' && c <= '9':
			start := i
			for i < len(expression) && expression[i] >= '0' && expression[i] <= '9' {
				i++
			}
			ts.tokens = append(ts.tokens, token{tokenPosInt, expression[start:i], start})
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			start := i
			for i < len(expression) && isNameChar(expression[i]) {
				i++
			}
			ts.tokens = append(ts.tokens, token{tokenName, expression[start:i], start})
		default:
			kind, ok := punctKind(c)
			if !ok {
				return nil, tokenError(expression, string(c), i)
			}
			ts.tokens = append(ts.tokens, token{kind, string(c), i})
			i++
		}
	}

	for _, tok := range ts.tokens {
		if !allowed[tok.kind] {
			return nil, tokenError(expression, tok.value, tok.start)
		}
	}

	return ts, nil
}

func isNameChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func punctKind(c byte) (tokenKind, bool) {
	switch c {
	case '.':
		return tokenDot, true
	case '-':
		return tokenHyphen, true
	case ':':
		return tokenColon, true
	case ',':
		return tokenComma, true
	case '(':
		return tokenLParen, true
	case ')':
		return tokenRParen, true
	}
	return 0, false
}

func (ts *tokenStream) atEnd() bool { return ts.pos >= len(ts.tokens) }

func (ts *tokenStream) peek() (token, bool) {
	if ts.atEnd() {
		return token{}, false
	}
	return ts.tokens[ts.pos], true
}

func (ts *tokenStream) next() (token, error) {
	if ts.atEnd() {
		return token{}, fmt.Errorf("%w: %q", ErrUnexpectedEnd, ts.expr)
	}
	tok := ts.tokens[ts.pos]
	ts.pos++
	return tok, nil
}

// expect consumes the next token and fails unless it is of the given kind.
func (ts *tokenStream) expect(kind tokenKind) (token, error) {
	tok, err := ts.next()
	if err != nil {
		return token{}, err
	}
	if tok.kind != kind {
		return token{}, tokenError(ts.expr, tok.value, tok.start)
	}
	return tok, nil
}
