// Parser for the condition/transition expression grammar:
//
//	expr       = orExpr
//	orExpr     = andExpr ( "||" andExpr )*
//	andExpr    = unary ( "&&" unary )*
//	unary      = "!" unary | comparison
//	comparison = primary ( compareOp primary )?
//	compareOp  = "==" | "!=" | "<" | "<=" | ">" | ">="
//	primary    = number | string | "true" | "false"
//	           | "has" "(" path ")"
//	           | "exists" "(" ident ")"
//	           | "result" "(" ident ")" "." path
//	           | path
//	           | "(" expr ")"
//	path       = ident ( "." ident )*
//
// There is deliberately no general-purpose evaluation here: no loops, no
// assignment, no user-defined functions. This is the one package in the
// module built on the standard library rather than a third-party parser
// combinator or grammar library (see DESIGN.md for why).
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// Parse compiles source into a reusable Expr, or returns a ConditionError
// of kind Parse on malformed input.
func Parse(source string) (*Expr, error) {
	p := &parser{src: source}
	p.s.Init(strings.NewReader(source))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	p.s.Error = func(_ *scanner.Scanner, msg string) { p.lexErr = msg }
	p.advance()

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.lexErr != "" {
		return nil, &ConditionError{Kind: ErrParse, Pos: p.s.Pos().Offset, Detail: p.lexErr}
	}
	if p.tok != scanner.EOF {
		return nil, p.errorf("unexpected trailing input %q", p.text)
	}
	return &Expr{root: root, src: source}, nil
}

type parser struct {
	s      scanner.Scanner
	src    string
	tok    rune
	text   string
	lexErr string
}

// advance scans the next token. text/scanner tokenizes rune-by-rune for
// punctuation, so two-character operators (&&, ||, ==, !=, <=, >=) are
// assembled here by peeking at the following rune before consuming it.
func (p *parser) advance() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()

	switch p.text {
	case "&", "|", "=", "!", "<", ">":
		if p.s.Peek() == rune(p.text[0]) && (p.text == "&" || p.text == "|") {
			p.s.Scan()
			p.text = p.text + p.text
		} else if p.s.Peek() == '=' && p.text != "&" && p.text != "|" {
			p.s.Scan()
			p.text = p.text + "="
		}
	}
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ConditionError{Kind: ErrParse, Pos: p.s.Pos().Offset, Detail: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(text string) error {
	if p.text != text {
		return p.errorf("expected %q, got %q", text, p.text)
	}
	p.advance()
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.text == "||" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolOpNode{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.text == "&&" {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &boolOpNode{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.text == "!" {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if compareOps[p.text] {
		op := p.text
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &compareNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parsePrimary() (node, error) {
	switch {
	case p.text == "(":
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.text == "true":
		p.advance()
		return &literalNode{value: true}, nil
	case p.text == "false":
		p.advance()
		return &literalNode{value: false}, nil
	case p.tok == scanner.String:
		s, err := strconv.Unquote(p.text)
		if err != nil {
			return nil, p.errorf("invalid string literal %q", p.text)
		}
		p.advance()
		return &literalNode{value: s}, nil
	case p.tok == scanner.Float || p.tok == scanner.Int:
		f, err := strconv.ParseFloat(p.text, 64)
		if err != nil {
			return nil, p.errorf("invalid number literal %q", p.text)
		}
		p.advance()
		return &literalNode{value: f}, nil
	case p.tok == scanner.Ident:
		return p.parseIdentStarting()
	default:
		return nil, p.errorf("unexpected token %q", p.text)
	}
}

func (p *parser) parseIdentStarting() (node, error) {
	name := p.text
	p.advance()

	switch name {
	case "has":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &hasNode{path: path}, nil
	case "exists":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		if p.tok != scanner.Ident {
			return nil, p.errorf("exists() requires a step id, got %q", p.text)
		}
		stepID := p.text
		p.advance()
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &existsNode{stepID: stepID}, nil
	case "result":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		if p.tok != scanner.Ident {
			return nil, p.errorf("result() requires a step id, got %q", p.text)
		}
		stepID := p.text
		p.advance()
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if err := p.expect("."); err != nil {
			return nil, err
		}
		field, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &resultFieldNode{stepID: stepID, field: field}, nil
	default:
		path := name
		for p.text == "." {
			p.advance()
			if p.tok != scanner.Ident {
				return nil, p.errorf("expected field name after '.', got %q", p.text)
			}
			path += "." + p.text
			p.advance()
		}
		return &fieldNode{path: path}, nil
	}
}

// parsePath parses a dotted identifier chain used as an argument (e.g.
// inside has(...)), where the next token is already positioned at the
// first identifier.
func (p *parser) parsePath() (string, error) {
	if p.tok != scanner.Ident {
		return "", p.errorf("expected a field path, got %q", p.text)
	}
	path := p.text
	p.advance()
	for p.text == "." {
		p.advance()
		if p.tok != scanner.Ident {
			return "", p.errorf("expected field name after '.', got %q", p.text)
		}
		path += "." + p.text
		p.advance()
	}
	return path, nil
}
