package condition

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Evaluation errors. Callers match them with errors.Is.
var (
	ErrUndefinedName  = errors.New("undefined name")
	ErrDivisionByZero = errors.New("division by zero")
	ErrType           = errors.New("type mismatch")
)

// Env supplies the values an expression can read.
type Env interface {
	Lookup(name string) (float64, bool)
}

// MapEnv is an Env backed by a map.
type MapEnv map[string]float64

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Expr is a compiled condition. It is immutable and safe for concurrent use.
type Expr struct {
	src   string
	root  node
	names []string
}

// Compile parses src into an Expr.
func Compile(src string) (*Expr, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	collectNames(root, seen)
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return &Expr{src: src, root: root, names: names}, nil
}

// MustCompile is like Compile but panics on error. Intended for built-in
// rule tables.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(fmt.Sprintf("condition: Compile(%q): %v", src, err))
	}
	return e
}

// String returns the source text.
func (e *Expr) String() string {
	return e.src
}

// Names returns the identifiers the expression reads, sorted.
func (e *Expr) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Eval evaluates the expression against env and reports its truth value.
// Numbers are true when non-zero.
func (e *Expr) Eval(env Env) (bool, error) {
	v, err := eval(e.root, env)
	if err != nil {
		return false, err
	}
	return v.truthy(), nil
}

type value struct {
	isBool bool
	b      bool
	n      float64
}

func num(f float64) value { return value{n: f} }
func boolean(b bool) value { return value{isBool: true, b: b} }

func (v value) truthy() bool {
	if v.isBool {
		return v.b
	}
	return v.n != 0 && !math.IsNaN(v.n)
}

func (v value) number() (float64, error) {
	if v.isBool {
		return 0, fmt.Errorf("%w: expected number, got boolean", ErrType)
	}
	return v.n, nil
}

func eval(n node, env Env) (value, error) {
	switch n := n.(type) {
	case *numberLit:
		return num(n.v), nil

	case *boolLit:
		return boolean(n.v), nil

	case *ident:
		v, ok := env.Lookup(n.name)
		if !ok {
			return value{}, fmt.Errorf("%w %q", ErrUndefinedName, n.name)
		}
		return num(v), nil

	case *not:
		x, err := eval(n.x, env)
		if err != nil {
			return value{}, err
		}
		return boolean(!x.truthy()), nil

	case *logical:
		l, err := eval(n.l, env)
		if err != nil {
			return value{}, err
		}
		if n.and && !l.truthy() {
			return boolean(false), nil
		}
		if !n.and && l.truthy() {
			return boolean(true), nil
		}
		r, err := eval(n.r, env)
		if err != nil {
			return value{}, err
		}
		return boolean(r.truthy()), nil

	case *compare:
		return evalCompare(n, env)

	case *unary:
		x, err := evalNumber(n.x, env)
		if err != nil {
			return value{}, err
		}
		if n.op == "-" {
			return num(-x), nil
		}
		return num(x), nil

	case *binary:
		return evalBinary(n, env)

	case *call:
		return evalCall(n, env)
	}
	return value{}, fmt.Errorf("condition: unknown node %T", n)
}

func evalNumber(n node, env Env) (float64, error) {
	v, err := eval(n, env)
	if err != nil {
		return 0, err
	}
	return v.number()
}

func evalCompare(n *compare, env Env) (value, error) {
	left, err := eval(n.operands[0], env)
	if err != nil {
		return value{}, err
	}
	for i, op := range n.ops {
		right, err := eval(n.operands[i+1], env)
		if err != nil {
			return value{}, err
		}
		ok, err := compareValues(op, left, right)
		if err != nil {
			return value{}, err
		}
		if !ok {
			return boolean(false), nil
		}
		left = right
	}
	return boolean(true), nil
}

func compareValues(op string, l, r value) (bool, error) {
	if l.isBool || r.isBool {
		if !(l.isBool && r.isBool) || (op != "==" && op != "!=") {
			return false, fmt.Errorf("%w: cannot apply %s to boolean", ErrType, op)
		}
		if op == "==" {
			return l.b == r.b, nil
		}
		return l.b != r.b, nil
	}
	switch op {
	case "<":
		return l.n < r.n, nil
	case "<=":
		return l.n <= r.n, nil
	case ">":
		return l.n > r.n, nil
	case ">=":
		return l.n >= r.n, nil
	case "==":
		return l.n == r.n, nil
	case "!=":
		return l.n != r.n, nil
	}
	return false, fmt.Errorf("condition: unknown operator %q", op)
}

func evalBinary(n *binary, env Env) (value, error) {
	l, err := evalNumber(n.l, env)
	if err != nil {
		return value{}, err
	}
	r, err := evalNumber(n.r, env)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "+":
		return num(l + r), nil
	case "-":
		return num(l - r), nil
	case "*":
		return num(l * r), nil
	case "/":
		if r == 0 {
			return value{}, ErrDivisionByZero
		}
		return num(l / r), nil
	}
	return value{}, fmt.Errorf("condition: unknown operator %q", n.op)
}

func evalCall(n *call, env Env) (value, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := evalNumber(a, env)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}
	switch n.fn {
	case "abs":
		return num(math.Abs(args[0])), nil
	case "min":
		out := args[0]
		for _, a := range args[1:] {
			if a < out {
				out = a
			}
		}
		return num(out), nil
	case "max":
		out := args[0]
		for _, a := range args[1:] {
			if a > out {
				out = a
			}
		}
		return num(out), nil
	}
	return value{}, fmt.Errorf("condition: unknown function %q", n.fn)
}

func collectNames(n node, seen map[string]bool) {
	switch n := n.(type) {
	case *ident:
		seen[n.name] = true
	case *not:
		collectNames(n.x, seen)
	case *logical:
		collectNames(n.l, seen)
		collectNames(n.r, seen)
	case *compare:
		for _, o := range n.operands {
			collectNames(o, seen)
		}
	case *unary:
		collectNames(n.x, seen)
	case *binary:
		collectNames(n.l, seen)
		collectNames(n.r, seen)
	case *call:
		for _, a := range n.args {
			collectNames(a, seen)
		}
	}
}
