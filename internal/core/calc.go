package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidExpression = errors.New("invalid expression")
	ErrDivisionByZero    = errors.New("division by zero")
)

const (
	maxExpressionLen   = 200
	maxExpressionDepth = 32
)

// EvalExpression evaluates a four-operator arithmetic expression such as
// "12.5*2 + (3-1)/4". Unary signs and parentheses are supported. The result
// is not rounded.
func EvalExpression(s string) (decimal.Decimal, error) {
	if len(s) > maxExpressionLen {
		return decimal.Zero, fmt.Errorf("%w: too long", ErrInvalidExpression)
	}
	toks, err := tokenize(s)
	if err != nil {
		return decimal.Zero, err
	}
	if len(toks) == 0 {
		return decimal.Zero, ErrInvalidExpression
	}
	p := &exprParser{toks: toks}
	v, err := p.expr(0)
	if err != nil {
		return decimal.Zero, err
	}
	if p.pos != len(p.toks) {
		return decimal.Zero, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, p.toks[p.pos].text)
	}
	return v, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  decimal.Decimal
}

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			text := string(rs[i:j])
			n, err := decimal.NewFromString(text)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrInvalidExpression, text)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: n})
			i = j
		case r == '+' || r == '-' || r == '*' || r == '/':
			toks = append(toks, token{kind: tokOp, text: string(r)})
			i++
		case r == 'x' || r == 'X' || r == '×':
			toks = append(toks, token{kind: tokOp, text: "*"})
			i++
		case r == '÷':
			toks = append(toks, token{kind: tokOp, text: "/"})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, string(r))
		}
	}
	return toks, nil
}

// exprParser is a recursive descent parser over the grammar
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = ("+" | "-") factor | number | "(" expr ")"
type exprParser struct {
	toks []token
	pos  int
}

func (p *exprParser) peekOp(ops string) (string, bool) {
	if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokOp {
		return "", false
	}
	op := p.toks[p.pos].text
	return op, strings.Contains(ops, op)
}

func (p *exprParser) expr(depth int) (decimal.Decimal, error) {
	left, err := p.term(depth)
	if err != nil {
		return decimal.Zero, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.term(depth)
		if err != nil {
			return decimal.Zero, err
		}
		if op == "+" {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
}

func (p *exprParser) term(depth int) (decimal.Decimal, error) {
	left, err := p.factor(depth)
	if err != nil {
		return decimal.Zero, err
	}
	for {
		op, ok := p.peekOp("*/")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.factor(depth)
		if err != nil {
			return decimal.Zero, err
		}
		if op == "*" {
			left = left.Mul(right)
			continue
		}
		if right.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		left = left.Div(right)
	}
}

func (p *exprParser) factor(depth int) (decimal.Decimal, error) {
	if depth > maxExpressionDepth {
		return decimal.Zero, fmt.Errorf("%w: nested too deeply", ErrInvalidExpression)
	}
	if p.pos >= len(p.toks) {
		return decimal.Zero, fmt.Errorf("%w: unexpected end", ErrInvalidExpression)
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokNumber:
		p.pos++
		return tok.num, nil
	case tokOp:
		if tok.text != "+" && tok.text != "-" {
			return decimal.Zero, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, tok.text)
		}
		p.pos++
		v, err := p.factor(depth + 1)
		if err != nil {
			return decimal.Zero, err
		}
		if tok.text == "-" {
			return v.Neg(), nil
		}
		return v, nil
	case tokLParen:
		p.pos++
		v, err := p.expr(depth + 1)
		if err != nil {
			return decimal.Zero, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokRParen {
			return decimal.Zero, fmt.Errorf("%w: missing )", ErrInvalidExpression)
		}
		p.pos++
		return v, nil
	}
	return decimal.Zero, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, tok.text)
}
