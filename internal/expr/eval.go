package expr

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "=="
	OpNeq      Op = "!="
	OpGt       Op = ">"
	OpGte      Op = ">="
	OpLt       Op = "<"
	OpLte      Op = "<="
	OpContains Op = "contains"
	OpMatches  Op = "matches"
)

// Scope resolves dotted paths during evaluation.
type Scope interface {
	Lookup(path []string) (any, bool)
}

// MapScope resolves paths through nested maps.
type MapScope map[string]any

func (m MapScope) Lookup(path []string) (any, bool) {
	var cur any = map[string]any(m)
	for _, key := range path {
		next, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = next[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Program is a compiled expression, safe for concurrent use.
type Program struct {
	src  string
	root Node

	mu      sync.Mutex
	regexps map[string]*regexp.Regexp
}

// Compile parses src once for repeated evaluation.
func Compile(src string) (*Program, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Program{src: src, root: root, regexps: make(map[string]*regexp.Regexp)}, nil
}

func (p *Program) String() string { return p.src }

// Eval evaluates the program against scope.
func (p *Program) Eval(scope Scope) (bool, error) {
	return p.eval(p.root, scope)
}

// Eval is a convenience for one-off evaluation.
func Eval(src string, scope Scope) (bool, error) {
	p, err := Compile(src)
	if err != nil {
		return false, err
	}
	return p.Eval(scope)
}

func (p *Program) eval(n Node, scope Scope) (bool, error) {
	switch n := n.(type) {
	case *Logical:
		left, err := p.eval(n.Left, scope)
		if err != nil {
			return false, err
		}
		if n.Op == "AND" && !left {
			return false, nil
		}
		if n.Op == "OR" && left {
			return true, nil
		}
		return p.eval(n.Right, scope)
	case *Not:
		v, err := p.eval(n.X, scope)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *Truthy:
		v, err := value(n.X, scope, true)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	case *Compare:
		left, err := value(n.Left, scope, n.Op == OpEq || n.Op == OpNeq)
		if err != nil {
			return false, err
		}
		right, err := value(n.Right, scope, n.Op == OpEq || n.Op == OpNeq)
		if err != nil {
			return false, err
		}
		return p.compare(n.Op, left, right)
	}
	return false, fmt.Errorf("unknown expression node %T", n)
}

// value resolves an operand. Missing paths are an error unless lenient, in
// which case they read as nil.
func value(o Operand, scope Scope, lenient bool) (any, error) {
	switch o := o.(type) {
	case *Literal:
		return o.Value, nil
	case Path:
		v, ok := scope.Lookup(o)
		if !ok && !lenient {
			return nil, fmt.Errorf("field %q not found", o)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown operand %T", o)
}

func (p *Program) compare(op Op, left, right any) (bool, error) {
	switch op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	case OpGt, OpGte, OpLt, OpLte:
		return ordered(op, left, right)
	case OpContains:
		return contains(left, right)
	case OpMatches:
		s, ok := left.(string)
		if !ok {
			return false, fmt.Errorf("matches: left operand must be a string, got %T", left)
		}
		pattern, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("matches: pattern must be a string, got %T", right)
		}
		re, err := p.regexp(pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(s), nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func (p *Program) regexp(pattern string) (*regexp.Regexp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if re, ok := p.regexps[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("matches: invalid pattern %q: %w", pattern, err)
	}
	p.regexps[pattern] = re
	return re, nil
}

// equal compares numbers by value and everything else by type and value.
func equal(left, right any) bool {
	lf, lok := nodetype.AsFloat(left)
	rf, rok := nodetype.AsFloat(right)
	if lok && rok {
		return math.Abs(lf-rf) < 1e-9
	}
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if lb, ok := left.(bool); ok {
		rb, ok := right.(bool)
		return ok && lb == rb
	}
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		return ok && ls == rs
	}
	return reflect.DeepEqual(left, right)
}

func ordered(op Op, left, right any) (bool, error) {
	var c int
	lf, lok := nodetype.AsFloat(left)
	rf, rok := nodetype.AsFloat(right)
	ls, lsok := left.(string)
	rs, rsok := right.(string)
	switch {
	case lok && rok:
		switch {
		case lf < rf:
			c = -1
		case lf > rf:
			c = 1
		}
	case lsok && rsok:
		c = strings.Compare(ls, rs)
	default:
		return false, fmt.Errorf("operator %s needs two numbers or two strings, got %T and %T", op, left, right)
	}
	switch op {
	case OpGt:
		return c > 0, nil
	case OpGte:
		return c >= 0, nil
	case OpLt:
		return c < 0, nil
	}
	return c <= 0, nil
}

// contains is substring search on strings and membership on lists.
func contains(left, right any) (bool, error) {
	if s, ok := left.(string); ok {
		return strings.Contains(s, fmt.Sprint(right)), nil
	}
	rv := reflect.ValueOf(left)
	if left != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		for i := range rv.Len() {
			if equal(rv.Index(i).Interface(), right) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("contains: left operand must be a string or a list, got %T", left)
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
	if f, ok := nodetype.AsFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
