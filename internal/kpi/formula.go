package kpi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// The formula language is a deliberately small arithmetic subset:
// + - * / ( ), numeric literals, and identifiers matching
// [A-Za-z_][A-Za-z0-9_%/]*. No function calls, no exponentiation, no
// general expression evaluator anywhere near user input. Identifier
// characters bind greedily, so division between two identifiers needs
// surrounding whitespace ("A / B", since "A/B" is one identifier).

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '%' || c == '/' || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func lex(formula string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(formula) {
		c := formula[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			tokens = append(tokens, token{tokenPlus, "+", i})
			i++
		case c == '-':
			tokens = append(tokens, token{tokenMinus, "-", i})
			i++
		case c == '*':
			tokens = append(tokens, token{tokenStar, "*", i})
			i++
		case c == '/':
			tokens = append(tokens, token{tokenSlash, "/", i})
			i++
		case c == '(':
			tokens = append(tokens, token{tokenLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRParen, ")", i})
			i++
		case isDigit(c) || c == '.':
			start := i
			dots := 0
			for i < len(formula) && (isDigit(formula[i]) || formula[i] == '.') {
				if formula[i] == '.' {
					dots++
				}
				i++
			}
			text := formula[start:i]
			if dots > 1 || text == "." {
				return nil, &InvalidFormulaSyntaxError{Formula: formula, Pos: start,
					Message: fmt.Sprintf("malformed number %q", text)}
			}
			tokens = append(tokens, token{tokenNumber, text, start})
		case isIdentStart(c):
			start := i
			for i < len(formula) && isIdentPart(formula[i]) {
				i++
			}
			tokens = append(tokens, token{tokenIdent, formula[start:i], start})
		default:
			return nil, &InvalidFormulaSyntaxError{Formula: formula, Pos: i,
				Message: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	tokens = append(tokens, token{tokenEOF, "", len(formula)})
	return tokens, nil
}

// expr is a parsed formula node.
type expr interface {
	eval(resolve resolver) (decimal.Decimal, error)
}

// resolver maps an identifier to its value for the period under
// evaluation.
type resolver func(name string) (decimal.Decimal, error)

// errDivisionByZero marks the per-period undefined sentinel: a zero
// denominator makes that period undefined without failing the series.
var errDivisionByZero = errors.New("division by zero")

type numberExpr struct {
	value decimal.Decimal
}

func (e numberExpr) eval(resolver) (decimal.Decimal, error) {
	return e.value, nil
}

type identExpr struct {
	name string
}

func (e identExpr) eval(resolve resolver) (decimal.Decimal, error) {
	return resolve(e.name)
}

type binaryExpr struct {
	op    tokenKind
	left  expr
	right expr
}

func (e binaryExpr) eval(resolve resolver) (decimal.Decimal, error) {
	left, err := e.left.eval(resolve)
	if err != nil {
		return decimal.Zero, err
	}
	right, err := e.right.eval(resolve)
	if err != nil {
		return decimal.Zero, err
	}
	switch e.op {
	case tokenPlus:
		return left.Add(right), nil
	case tokenMinus:
		return left.Sub(right), nil
	case tokenStar:
		return left.Mul(right), nil
	default:
		if right.IsZero() {
			return decimal.Zero, errDivisionByZero
		}
		return left.Div(right), nil
	}
}

type negateExpr struct {
	operand expr
}

func (e negateExpr) eval(resolve resolver) (decimal.Decimal, error) {
	v, err := e.operand.eval(resolve)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

// Formula is a validated, parsed KPI formula.
type Formula struct {
	Source      string
	root        expr
	identifiers []string
}

// Identifiers returns the distinct identifier tokens of the formula in
// first-appearance order.
func (f *Formula) Identifiers() []string {
	return f.identifiers
}

// Evaluate computes the formula with identifier values supplied by
// resolve. A zero denominator returns errDivisionByZero, which callers
// translate into the per-period undefined sentinel.
func (f *Formula) Evaluate(resolve resolver) (decimal.Decimal, error) {
	return f.root.eval(resolve)
}

// ParseFormula lexes and parses a formula string, rejecting anything
// outside the supported grammar at registration time.
func ParseFormula(formula string) (*Formula, error) {
	if strings.TrimSpace(formula) == "" {
		return nil, &InvalidFormulaSyntaxError{Formula: formula, Pos: 0, Message: "empty formula"}
	}
	tokens, err := lex(formula)
	if err != nil {
		return nil, err
	}
	p := &parser{formula: formula, tokens: tokens}
	root, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, &InvalidFormulaSyntaxError{Formula: formula, Pos: p.peek().pos,
			Message: fmt.Sprintf("unexpected token %q", p.peek().text)}
	}

	seen := make(map[string]bool)
	var idents []string
	collectIdentifiers(root, seen, &idents)
	return &Formula{Source: formula, root: root, identifiers: idents}, nil
}

func collectIdentifiers(e expr, seen map[string]bool, out *[]string) {
	switch node := e.(type) {
	case identExpr:
		if !seen[node.name] {
			seen[node.name] = true
			*out = append(*out, node.name)
		}
	case binaryExpr:
		collectIdentifiers(node.left, seen, out)
		collectIdentifiers(node.right, seen, out)
	case negateExpr:
		collectIdentifiers(node.operand, seen, out)
	}
}

// parser is a recursive-descent parser over the token stream.
type parser struct {
	formula string
	tokens  []token
	pos     int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseAdditive() (expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op.kind != tokenPlus && op.kind != tokenMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op.kind, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op.kind != tokenStar && op.kind != tokenSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op.kind, left: left, right: right}
	}
}

func (p *parser) parseUnary() (expr, error) {
	if p.peek().kind == tokenMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negateExpr{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokenNumber:
		value, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, &InvalidFormulaSyntaxError{Formula: p.formula, Pos: t.pos,
				Message: fmt.Sprintf("malformed number %q", t.text)}
		}
		return numberExpr{value: value}, nil
	case tokenIdent:
		return identExpr{name: t.text}, nil
	case tokenLParen:
		inner, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, &InvalidFormulaSyntaxError{Formula: p.formula, Pos: closing.pos,
				Message: "missing closing parenthesis"}
		}
		return inner, nil
	case tokenEOF:
		return nil, &InvalidFormulaSyntaxError{Formula: p.formula, Pos: t.pos,
			Message: "unexpected end of formula"}
	default:
		return nil, &InvalidFormulaSyntaxError{Formula: p.formula, Pos: t.pos,
			Message: fmt.Sprintf("unexpected token %q", t.text)}
	}
}
