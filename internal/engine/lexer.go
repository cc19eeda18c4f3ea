package engine

import (
	"fmt"
	"strings"

	"github.com/kode4food/cadence/pkg/api"
)

type (
	tokenKind int

	token struct {
		value any
		text  string
		ref   api.Reference
		kind  tokenKind
		pos   int
	}

	lexer struct {
		src string
		pos int
	}
)

const (
	tokEOF tokenKind = iota
	tokLiteral
	tokRef
	tokOp
	tokLParen
	tokRParen
)

var keywords = map[string]token{
	"and":   {kind: tokOp, text: opAnd},
	"or":    {kind: tokOp, text: opOr},
	"not":   {kind: tokOp, text: opNot},
	"true":  {kind: tokLiteral, value: true},
	"True":  {kind: tokLiteral, value: true},
	"false": {kind: tokLiteral, value: false},
	"False": {kind: tokLiteral, value: false},
	"None":  {kind: tokLiteral},
	"null":  {kind: tokLiteral},
	"nil":   {kind: tokLiteral},
}

var operators = map[string]string{
	"==": opEq,
	"!=": opNe,
	"<=": opLe,
	">=": opGe,
	"&&": opAnd,
	"||": opOr,
	"<":  opLt,
	">":  opGt,
	"!":  opNot,
	"-":  opNeg,
}

var escapes = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	var res []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		res = append(res, t)
		if t.kind == tokEOF {
			return res, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == '$':
		return l.reference()
	case c == '"' || c == '\'':
		return l.str(c)
	case isDigit(c) || (c == '.' && isDigit(l.peekAt(1))):
		return l.number()
	case isIdentStart(c):
		return l.identifier()
	default:
		return l.operator()
	}
}

func (l *lexer) reference() (token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		c := rune(l.src[l.pos])
		if c != '.' && !api.IsReferenceChar(c) {
			break
		}
		l.pos++
	}
	text := l.src[start:l.pos]
	ref, err := api.ParseReference(text)
	if err != nil {
		return token{}, err
	}
	return token{kind: tokRef, text: text, ref: ref, pos: start}, nil
}

func (l *lexer) str(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			return token{
				kind:  tokLiteral,
				text:  l.src[start:l.pos],
				value: sb.String(),
				pos:   start,
			}, nil
		case c == '\\' && l.pos+1 < len(l.src):
			esc, ok := escapes[l.src[l.pos+1]]
			if !ok {
				esc = l.src[l.pos+1]
			}
			sb.WriteByte(esc)
			l.pos += 2
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, fmt.Errorf("%w at %d", ErrUnterminatedString, start)
}

func (l *lexer) number() (token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		if c := l.src[l.pos]; !isDigit(c) && c != '.' {
			break
		}
		l.pos++
	}
	text := l.src[start:l.pos]
	f, err := parseNumber(text)
	if err != nil {
		return token{}, err
	}
	return token{kind: tokLiteral, text: text, value: f, pos: start}, nil
}

func (l *lexer) identifier() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	text := l.src[start:l.pos]
	t, ok := keywords[text]
	if !ok {
		return token{}, fmt.Errorf("%w: %q at %d", ErrIdentifier, text, start)
	}
	t.text = text
	t.pos = start
	return t, nil
}

func (l *lexer) operator() (token, error) {
	start := l.pos
	if l.pos+1 < len(l.src) {
		if op, ok := operators[l.src[l.pos:l.pos+2]]; ok {
			l.pos += 2
			return token{kind: tokOp, text: op, pos: start}, nil
		}
	}
	c := l.src[l.pos]
	if op, ok := operators[string(c)]; ok {
		l.pos++
		return token{kind: tokOp, text: op, pos: start}, nil
	}
	if c == '=' {
		return token{}, fmt.Errorf("%w at %d", ErrAssignment, start)
	}
	return token{}, fmt.Errorf("%w: %q at %d", ErrUnexpectedChar, c, start)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) peekAt(offset int) byte {
	if l.pos+offset < len(l.src) {
		return l.src[l.pos+offset]
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
