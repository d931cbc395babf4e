// Package expr is the small boolean expression language used by condition
// nodes, e.g.
//
//	inputs.score >= 0.5 AND NOT data.label contains "draft"
//
// Operands are literals or dotted paths looked up in a Scope.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is a parsed boolean expression.
type Node interface {
	exprNode()
}

// Logical is AND / OR.
type Logical struct {
	Op          string
	Left, Right Node
}

// Not negates its operand.
type Not struct{ X Node }

// Compare is <operand> <op> <operand>.
type Compare struct {
	Left  Operand
	Op    Op
	Right Operand
}

// Truthy is a bare operand used as a condition.
type Truthy struct{ X Operand }

func (*Logical) exprNode() {}
func (*Not) exprNode()     {}
func (*Compare) exprNode() {}
func (*Truthy) exprNode()  {}

// Operand is a Literal or a Path.
type Operand interface {
	operand()
}

type Literal struct{ Value any }

// Path is a dotted lookup like inputs.user.name.
type Path []string

func (*Literal) operand() {}
func (Path) operand()     {}

func (p Path) String() string { return strings.Join(p, ".") }

type parser struct {
	toks []token
	pos  int
}

// Parse turns an expression into its syntax tree.
func Parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) or() (Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) unary() (Node, error) {
	if p.keyword("NOT") {
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Not{X: x}, nil
	}
	if p.peek().kind == tokLParen {
		p.advance()
		x, err := p.or()
		if err != nil {
			return nil, err
		}
		if t := p.advance(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at position %d, got %q", t.pos, t.text)
		}
		return x, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Node, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	var op Op
	switch {
	case t.kind == tokCmp:
		op = Op(t.text)
	case t.kind == tokIdent && strings.EqualFold(t.text, string(OpContains)):
		op = OpContains
	case t.kind == tokIdent && strings.EqualFold(t.text, string(OpMatches)):
		op = OpMatches
	default:
		return &Truthy{X: left}, nil
	}
	p.advance()
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return &Compare{Left: left, Op: op, Right: right}, nil
}

func (p *parser) operand() (Operand, error) {
	t := p.advance()
	switch t.kind {
	case tokString:
		return &Literal{Value: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.text, t.pos)
		}
		return &Literal{Value: f}, nil
	case tokBool:
		return &Literal{Value: t.text == "true"}, nil
	case tokNull:
		return &Literal{Value: nil}, nil
	case tokIdent:
		if strings.HasPrefix(t.text, ".") || strings.HasSuffix(t.text, ".") || strings.Contains(t.text, "..") {
			return nil, fmt.Errorf("malformed path %q at position %d", t.text, t.pos)
		}
		return Path(strings.Split(t.text, ".")), nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.text)
}
