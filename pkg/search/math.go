package search

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrNotExpression is returned by EvalExpression for input that is not a
// complete arithmetic expression with at least one operator.
var ErrNotExpression = errors.New("not an arithmetic expression")

// EvalExpression evaluates + - * / % ^ over decimal numbers with
// parentheses and unary minus. "×" and "÷" are accepted as operators.
// A bare number is not an expression.
func EvalExpression(s string) (float64, error) {
	p := &exprParser{src: []rune(strings.TrimSpace(s))}
	if len(p.src) == 0 {
		return 0, ErrNotExpression
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.src) || p.ops == 0 {
		return 0, ErrNotExpression
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is not finite", ErrNotExpression)
	}
	return v, nil
}

// FormatNumber renders v without a trailing ".0" and with at most ten
// fractional digits.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', 10, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

type exprParser struct {
	src []rune
	pos int
	ops int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *exprParser) peek() rune {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// expr := term { ("+" | "-") term }
func (p *exprParser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return v, nil
		}
		p.pos++
		p.ops++
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += rhs
		} else {
			v -= rhs
		}
	}
}

// term := power { ("*" | "/" | "%") power }
func (p *exprParser) term() (float64, error) {
	v, err := p.power()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		switch op {
		case '*', '×', '/', '÷', '%':
		default:
			return v, nil
		}
		p.pos++
		p.ops++
		rhs, err := p.power()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*', '×':
			v *= rhs
		case '/', '÷':
			if rhs == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrNotExpression)
			}
			v /= rhs
		case '%':
			if rhs == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrNotExpression)
			}
			v = math.Mod(v, rhs)
		}
	}
}

// power := unary [ "^" power ]   (right associative)
func (p *exprParser) power() (float64, error) {
	base, err := p.unary()
	if err != nil {
		return 0, err
	}
	if p.peek() != '^' {
		return base, nil
	}
	p.pos++
	p.ops++
	exp, err := p.power()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

// unary := "-" unary | "+" unary | primary
func (p *exprParser) unary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case '+':
		p.pos++
		return p.unary()
	}
	return p.primary()
}

// primary := number | "(" expr ")"
func (p *exprParser) primary() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, ErrNotExpression
		}
		p.pos++
		return v, nil
	}
	start := p.pos
	dot := false
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		if r == '.' && !dot {
			dot = true
		} else if r < '0' || r > '9' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return 0, ErrNotExpression
	}
	v, err := strconv.ParseFloat(string(p.src[start:p.pos]), 64)
	if err != nil {
		return 0, ErrNotExpression
	}
	return v, nil
}
