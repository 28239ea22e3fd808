package condition

import (
	"fmt"
	"strconv"
)

type node interface{}

type numberLit struct{ v float64 }

type boolLit struct{ v bool }

type ident struct{ name string }

type call struct {
	fn   string
	args []node
}

type unary struct {
	op string
	x  node
}

type binary struct {
	op   string
	l, r node
}

// compare holds a comparison chain such as 5 <= x < 10, which is evaluated
// as (5 <= x) and (x < 10) with x read once.
type compare struct {
	ops      []string
	operands []node
}

type logical struct {
	and  bool
	l, r node
}

type not struct{ x node }

// builtins lists the callable functions and their minimum arity.
var builtins = map[string]int{
	"min": 1,
	"max": 1,
	"abs": 1,
}

type parser struct {
	toks []token
	pos  int
}

func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s %q", t.kind, t.text)}
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// accept consumes the next token when it is an operator or keyword matching
// one of words.
func (p *parser) accept(words ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp && t.kind != tokIdent {
		return "", false
	}
	for _, w := range words {
		if t.text == w {
			p.pos++
			return w, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept("or", "||"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logical{and: false, l: left, r: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept("and", "&&"); !ok {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logical{and: true, l: left, r: right}
	}
}

func (p *parser) parseNot() (node, error) {
	if _, ok := p.accept("not", "!"); ok {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &not{x: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	first, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	cmp := &compare{operands: []node{first}}
	for {
		op, ok := p.accept("<", "<=", ">", ">=", "==", "!=")
		if !ok {
			break
		}
		operand, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		cmp.ops = append(cmp.ops, op)
		cmp.operands = append(cmp.operands, operand)
	}
	if len(cmp.ops) == 0 {
		return first, nil
	}
	return cmp, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.accept("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.accept("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.accept("-", "+"); ok {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{op: op, x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("invalid number %q", t.text)}
		}
		return &numberLit{v: v}, nil

	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if r := p.next(); r.kind != tokRParen {
			return nil, &SyntaxError{Pos: r.pos, Msg: fmt.Sprintf("expected ')', found %s", r.kind)}
		}
		return inner, nil

	case tokIdent:
		switch t.text {
		case "true", "True":
			return &boolLit{v: true}, nil
		case "false", "False":
			return &boolLit{v: false}, nil
		case "and", "or", "not":
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected keyword %q", t.text)}
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return &ident{name: t.text}, nil
	}

	return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s %q", t.kind, t.text)}
}

func (p *parser) parseCall(name token) (node, error) {
	minArgs, ok := builtins[name.text]
	if !ok {
		return nil, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("unknown function %q", name.text)}
	}
	p.next() // (

	c := &call{fn: name.text}
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			c.args = append(c.args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if r := p.next(); r.kind != tokRParen {
		return nil, &SyntaxError{Pos: r.pos, Msg: fmt.Sprintf("expected ')' after arguments to %s, found %s", name.text, r.kind)}
	}
	if len(c.args) < minArgs {
		return nil, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("%s expects at least %d argument(s)", name.text, minArgs)}
	}
	if name.text == "abs" && len(c.args) != 1 {
		return nil, &SyntaxError{Pos: name.pos, Msg: "abs expects exactly 1 argument"}
	}
	return c, nil
}
