package engine

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/util"
)

type (
	// Condition is a compiled step condition. It supports literals,
	// references, comparisons, and boolean connectives, and nothing else
	Condition struct {
		root condNode
		expr string
	}

	condNode interface {
		eval(Context) (any, error)
	}

	literalNode struct{ value any }
	refNode     struct{ ref api.Reference }
	notNode     struct{ expr condNode }
	negNode     struct{ expr condNode }

	logicNode struct {
		left  condNode
		right condNode
		and   bool
	}

	compareNode struct {
		operands []condNode
		ops      []string
	}

	parser struct {
		tokens []token
		pos    int
	}
)

const (
	opAnd = "and"
	opOr  = "or"
	opNot = "not"
	opNeg = "-"
	opEq  = "=="
	opNe  = "!="
	opLt  = "<"
	opLe  = "<="
	opGt  = ">"
	opGe  = ">="
)

var (
	ErrUnexpectedToken    = errors.New("unexpected token")
	ErrUnexpectedChar     = errors.New("unexpected character")
	ErrUnterminatedString = errors.New("unterminated string")
	ErrIdentifier         = errors.New("identifiers are not allowed")
	ErrAssignment         = errors.New("assignment is not allowed")
	ErrIncomparable       = errors.New("values cannot be ordered")
	ErrNotNumeric         = errors.New("value is not numeric")
)

const conditionCacheSize = 1024

var conditions = util.NewCache[string, *Condition](conditionCacheSize)

// Evaluate compiles (or reuses) the expression and evaluates it against the
// context. An empty expression is true. Every error returned wraps
// api.ErrConditionEvaluation
func Evaluate(expr string, ctx Context) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	c, err := CompileCondition(expr)
	if err != nil {
		return false, err
	}
	return c.Eval(ctx)
}

// CompileCondition parses an expression into a Condition. Successfully
// compiled expressions are cached and shared
func CompileCondition(expr string) (*Condition, error) {
	return conditions.Get(expr, func() (*Condition, error) {
		tokens, err := tokenize(expr)
		if err != nil {
			return nil, conditionError(expr, err)
		}
		p := &parser{tokens: tokens}
		root, err := p.parse()
		if err != nil {
			return nil, conditionError(expr, err)
		}
		return &Condition{root: root, expr: expr}, nil
	})
}

// Eval evaluates the condition against the context, applying truthiness to
// the result
func (c *Condition) Eval(ctx Context) (bool, error) {
	res, err := c.root.eval(ctx)
	if err != nil {
		return false, conditionError(c.expr, err)
	}
	return truthy(res), nil
}

// String returns the source expression
func (c *Condition) String() string {
	return c.expr
}

func conditionError(expr string, err error) error {
	return fmt.Errorf("%w: %q: %w", api.ErrConditionEvaluation, expr, err)
}

func (p *parser) parse() (condNode, error) {
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return n, nil
}

func (p *parser) parseOr() (condNode, error) {
	return p.parseLogic(opOr, p.parseAnd)
}

func (p *parser) parseAnd() (condNode, error) {
	return p.parseLogic(opAnd, p.parseNot)
}

func (p *parser) parseLogic(
	op string, next func() (condNode, error),
) (condNode, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.acceptOp(op) {
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &logicNode{left: left, right: right, and: op == opAnd}
	}
	return left, nil
}

func (p *parser) parseNot() (condNode, error) {
	if p.acceptOp(opNot) {
		n, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{expr: n}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (condNode, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	res := &compareNode{operands: []condNode{first}}
	for {
		t := p.peek()
		if t.kind != tokOp || !isCompareOp(t.text) {
			break
		}
		p.pos++
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		res.ops = append(res.ops, t.text)
		res.operands = append(res.operands, n)
	}
	if len(res.ops) == 0 {
		return first, nil
	}
	return res, nil
}

func (p *parser) parseUnary() (condNode, error) {
	if p.acceptOp(opNeg) {
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{expr: n}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (condNode, error) {
	t := p.peek()
	switch t.kind {
	case tokLiteral:
		p.pos++
		return &literalNode{value: t.value}, nil
	case tokRef:
		p.pos++
		return &refNode{ref: t.ref}, nil
	case tokLParen:
		p.pos++
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.peek(); t.kind != tokRParen {
			return nil, p.unexpected(t)
		}
		p.pos++
		return n, nil
	default:
		return nil, p.unexpected(t)
	}
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) unexpected(t token) error {
	if t.kind == tokEOF {
		return fmt.Errorf("%w: end of expression", ErrUnexpectedToken)
	}
	return fmt.Errorf("%w: %q at %d", ErrUnexpectedToken, t.text, t.pos)
}

func (n *literalNode) eval(Context) (any, error) {
	return n.value, nil
}

func (n *refNode) eval(ctx Context) (any, error) {
	res, _ := ResolveReference(n.ref, ctx)
	return res, nil
}

func (n *notNode) eval(ctx Context) (any, error) {
	v, err := n.expr.eval(ctx)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

func (n *negNode) eval(ctx Context) (any, error) {
	v, err := n.expr.eval(ctx)
	if err != nil {
		return nil, err
	}
	f, ok := numeric(v)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotNumeric, v)
	}
	return -f, nil
}

func (n *logicNode) eval(ctx Context) (any, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if truthy(l) != n.and {
		return truthy(l), nil
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	return truthy(r), nil
}

func (n *compareNode) eval(ctx Context) (any, error) {
	left, err := n.operands[0].eval(ctx)
	if err != nil {
		return nil, err
	}
	for i, op := range n.ops {
		right, err := n.operands[i+1].eval(ctx)
		if err != nil {
			return nil, err
		}
		ok, err := compare(op, left, right)
		if err != nil || !ok {
			return false, err
		}
		left = right
	}
	return true, nil
}

func isCompareOp(op string) bool {
	switch op {
	case opEq, opNe, opLt, opLe, opGt, opGe:
		return true
	default:
		return false
	}
}

func compare(op string, l, r any) (bool, error) {
	switch op {
	case opEq:
		return equal(l, r), nil
	case opNe:
		return !equal(l, r), nil
	}
	c, err := order(l, r)
	if err != nil {
		return false, err
	}
	switch op {
	case opLt:
		return c < 0, nil
	case opLe:
		return c <= 0, nil
	case opGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func equal(l, r any) bool {
	lf, lok := numeric(l)
	rf, rok := numeric(r)
	if lok && rok {
		return lf == rf
	}
	if lok || rok {
		return false
	}
	return reflect.DeepEqual(l, r)
}

func order(l, r any) (int, error) {
	if lf, ok := numeric(l); ok {
		if rf, ok := numeric(r); ok {
			return cmp.Compare(lf, rf), nil
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return cmp.Compare(ls, rs), nil
		}
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, typeName(l),
		typeName(r))
}

// numeric converts numbers to float64, counting booleans as 0 and 1
func numeric(v any) (float64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return api.ToFloat(v)
}

func typeName(v any) string {
	if v == nil {
		return "None"
	}
	return reflect.TypeOf(v).String()
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	if f, ok := api.ToFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer:
		return !rv.IsNil()
	default:
		return true
	}
}

func parseNumber(text string) (float64, error) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedToken, text)
	}
	return f, nil
}
