package resolver

import (
	stderrors "errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
)

// ErrUnknownIdentifier is wrapped by EvaluateExpression when an identifier
// names no known enum value. The builder retries such expressions once more
// values are known.
var ErrUnknownIdentifier = stderrors.New("unknown identifier")

// Integer constant expressions are evaluated by precedence climbing.
//
// Grammar (from lowest to highest precedence):
// expression → or
// or         → xor ( "|" xor )*
// xor        → and ( "^" and )*
// and        → shift ( "&" shift )*
// shift      → term ( ( "<<" | ">>" ) term )*
// term       → factor ( ( "+" | "-" ) factor )*
// factor     → unary ( ( "*" | "/" | "%" ) unary )*
// unary      → ( "-" | "+" | "~" | "!" ) unary | primary
// primary    → INTEGER | CHAR | IDENTIFIER ( "::" IDENTIFIER )* | "(" expression ")"
//
// Casts written as "Type(expr)" and "static_cast<Type>(expr)" are not
// supported.

var binaryPrecedence = map[string]int{
	"|":  3,
	"^":  4,
	"&":  5,
	"<<": 8,
	">>": 8,
	"+":  9,
	"-":  9,
	"*":  10,
	"/":  10,
	"%":  10,
}

type exprTokenKind int

const (
	exprEOF exprTokenKind = iota
	exprNumber
	exprIdent
	exprOperator
)

type exprToken struct {
	kind  exprTokenKind
	text  string
	value int64
}

func tokenizeExpression(s string) ([]exprToken, error) {
	var tokens []exprToken
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && (isExprIdentByte(s[j]) || s[j] == '\'') {
				j++
			}
			v, err := codemodel.ParseIntegerLiteral(s[i:j])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, exprToken{kind: exprNumber, text: s[i:j], value: v})
			i = j
		case c == '\'':
			v, n, err := charLiteral(s[i:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, exprToken{kind: exprNumber, text: s[i : i+n], value: v})
			i += n
		case isExprIdentByte(c) || c == ':':
			j := i
			for j < len(s) && (isExprIdentByte(s[j]) || s[j] == ':') {
				j++
			}
			name := strings.TrimPrefix(s[i:j], "::")
			if name == "" || strings.HasSuffix(name, ":") {
				return nil, fmt.Errorf("malformed name %q", s[i:j])
			}
			tokens = append(tokens, exprToken{kind: exprIdent, text: name})
			i = j
		default:
			op := string(c)
			if i+1 < len(s) && (s[i:i+2] == "<<" || s[i:i+2] == ">>") {
				op = s[i : i+2]
			}
			if !strings.Contains("|^&<<>>+-*/%~!()", op) {
				return nil, fmt.Errorf("unexpected character %q", c)
			}
			tokens = append(tokens, exprToken{kind: exprOperator, text: op})
			i += len(op)
		}
	}
	return append(tokens, exprToken{kind: exprEOF}), nil
}

func isExprIdentByte(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || (c >= '0' && c <= '9')
}

func charLiteral(s string) (int64, int, error) {
	if len(s) >= 3 && s[1] != '\\' && s[2] == '\'' {
		return int64(s[1]), 3, nil
	}
	if len(s) >= 4 && s[1] == '\\' && s[3] == '\'' {
		escapes := map[byte]int64{'n': '\n', 't': '\t', 'r': '\r', '0': 0, '\\': '\\', '\'': '\''}
		if v, ok := escapes[s[2]]; ok {
			return v, 4, nil
		}
	}
	return 0, 0, fmt.Errorf("unsupported character literal in %q", s)
}

type evaluator struct {
	tokens []exprToken
	pos    int
	lookup func(name string) (int64, bool)
}

func (e *evaluator) peek() exprToken {
	return e.tokens[e.pos]
}

func (e *evaluator) next() exprToken {
	t := e.tokens[e.pos]
	if t.kind != exprEOF {
		e.pos++
	}
	return t
}

func (e *evaluator) parseBinary(minPrecedence int) (int64, error) {
	left, err := e.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op := e.peek()
		prec, ok := binaryPrecedence[op.text]
		if op.kind != exprOperator || !ok || prec < minPrecedence {
			return left, nil
		}
		e.next()
		right, err := e.parseBinary(prec + 1)
		if err != nil {
			return 0, err
		}
		if left, err = applyBinary(op.text, left, right); err != nil {
			return 0, err
		}
	}
}

func (e *evaluator) parseUnary() (int64, error) {
	t := e.peek()
	if t.kind == exprOperator {
		switch t.text {
		case "-", "+", "~", "!":
			e.next()
			v, err := e.parseUnary()
			if err != nil {
				return 0, err
			}
			switch t.text {
			case "-":
				return -v, nil
			case "~":
				return ^v, nil
			case "!":
				if v == 0 {
					return 1, nil
				}
				return 0, nil
			}
			return v, nil
		}
	}
	return e.parsePrimary()
}

func (e *evaluator) parsePrimary() (int64, error) {
	t := e.next()
	switch t.kind {
	case exprNumber:
		return t.value, nil
	case exprIdent:
		v, ok := e.lookup(t.text)
		if !ok {
			return 0, fmt.Errorf("%w '%s'", ErrUnknownIdentifier, t.text)
		}
		return v, nil
	case exprOperator:
		if t.text == "(" {
			v, err := e.parseBinary(0)
			if err != nil {
				return 0, err
			}
			if closing := e.next(); closing.text != ")" {
				return 0, fmt.Errorf("expected ')'")
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("unexpected token %q", t.text)
}

func applyBinary(op string, left, right int64) (int64, error) {
	switch op {
	case "|":
		return left | right, nil
	case "^":
		return left ^ right, nil
	case "&":
		return left & right, nil
	case "<<":
		if right < 0 || right > 63 {
			return 0, fmt.Errorf("shift count %d out of range", right)
		}
		return left << uint(right), nil
	case ">>":
		if right < 0 || right > 63 {
			return 0, fmt.Errorf("shift count %d out of range", right)
		}
		return left >> uint(right), nil
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/", "%":
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		if op == "/" {
			return left / right, nil
		}
		return left % right, nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

// Evaluate evaluates an integer constant expression, resolving identifiers
// through lookup.
func Evaluate(expression string, lookup func(name string) (int64, bool)) (int64, error) {
	tokens, err := tokenizeExpression(expression)
	if err != nil {
		return 0, fmt.Errorf("invalid expression %q: %w", expression, err)
	}
	e := &evaluator{tokens: tokens, lookup: lookup}
	v, err := e.parseBinary(0)
	if err != nil {
		return 0, fmt.Errorf("cannot evaluate %q: %w", expression, err)
	}
	if t := e.peek(); t.kind != exprEOF {
		return 0, fmt.Errorf("cannot evaluate %q: unexpected token %q", expression, t.text)
	}
	return v, nil
}

// EvaluateExpression evaluates an expression with identifiers looked up as
// enum values from the given scope outwards.
func (r *Resolver) EvaluateExpression(expression string, scope []string) (int64, error) {
	return Evaluate(expression, func(name string) (int64, bool) {
		v, _, ok := r.LookupEnumValue(name, scope)
		return v, ok
	})
}
