package engine

import (
	"context"
	"strings"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/value"
)

// Expr is a compiled arithmetic expression, held as postfix (spec §4.5:
// "Evaluation uses Shunting-Yard to produce postfix, then a stack walk").
type Expr struct {
	postfix []exprToken
}

type tokKind int

const (
	tokLitNumber tokKind = iota
	tokLitString
	tokVar
	tokOp
	tokLParen
	tokRParen
)

type exprToken struct {
	kind tokKind
	text string   // literal text for tokLitNumber/tokLitString
	path []string // dotted variable path for tokVar
	op   byte     // '+','-','*','/' for tokOp
}

// tokenize scans an EXPR string into a flat token list: numeric literals,
// quoted string literals, `{name[.path]}` variables, and `+ - * / ( )`
// (spec §4.5 "Expression language").
func tokenize(text string) ([]exprToken, error) {
	var toks []exprToken
	runes := []rune(text)
	n := len(runes)
	i := 0
	// expectOperand tracks whether a leading '-' should be read as part of a
	// negative numeric literal (start of expression, after '(', after an
	// operator) rather than as a binary minus.
	expectOperand := true

	for i < n {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++
		case r == '{':
			j := i + 1
			for j < n && runes[j] != '}' {
				j++
			}
			if j >= n {
				return nil, errs.New(errs.Validation, "unterminated variable reference in %q", text)
			}
			inner := strings.TrimSpace(string(runes[i+1 : j]))
			path := strings.Split(inner, ".")
			for idx, seg := range path {
				path[idx] = strings.TrimSpace(seg)
				if path[idx] == "" {
					return nil, errs.New(errs.Validation, "empty path segment in variable %q", inner)
				}
			}
			toks = append(toks, exprToken{kind: tokVar, path: path})
			i = j + 1
			expectOperand = false
		case r == '"' || r == '\'':
			quote := r
			j := i + 1
			for j < n && runes[j] != quote {
				j++
			}
			if j >= n {
				return nil, errs.New(errs.Validation, "unterminated string literal in %q", text)
			}
			toks = append(toks, exprToken{kind: tokLitString, text: string(runes[i+1 : j])})
			i = j + 1
			expectOperand = false
		case r >= '0' && r <= '9' || (r == '-' && expectOperand && i+1 < n && runes[i+1] >= '0' && runes[i+1] <= '9'):
			start := i
			if r == '-' {
				i++
			}
			for i < n && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.') {
				i++
			}
			toks = append(toks, exprToken{kind: tokLitNumber, text: string(runes[start:i])})
			expectOperand = false
		case r == '(':
			toks = append(toks, exprToken{kind: tokLParen})
			i++
			expectOperand = true
		case r == ')':
			toks = append(toks, exprToken{kind: tokRParen})
			i++
			expectOperand = false
		case r == '+' || r == '-' || r == '*' || r == '/':
			toks = append(toks, exprToken{kind: tokOp, op: byte(r)})
			i++
			expectOperand = true
		default:
			return nil, errs.New(errs.Validation, "unexpected character %q in expression %q", string(r), text)
		}
	}
	return toks, nil
}

var precedence = map[byte]int{'+': 1, '-': 1, '*': 2, '/': 2}

// parseExpr compiles an EXPR string to postfix via the Shunting-Yard
// algorithm (spec §4.5).
func parseExpr(text string) (*Expr, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errs.New(errs.Validation, "empty expression")
	}

	var output []exprToken
	var ops []exprToken

	popOp := func() exprToken {
		last := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		return last
	}

	for _, t := range toks {
		switch t.kind {
		case tokLitNumber, tokLitString, tokVar:
			output = append(output, t)
		case tokOp:
			for len(ops) > 0 && ops[len(ops)-1].kind == tokOp && precedence[ops[len(ops)-1].op] >= precedence[t.op] {
				output = append(output, popOp())
			}
			ops = append(ops, t)
		case tokLParen:
			ops = append(ops, t)
		case tokRParen:
			for len(ops) > 0 && ops[len(ops)-1].kind != tokLParen {
				output = append(output, popOp())
			}
			if len(ops) == 0 {
				return nil, errs.New(errs.Validation, "unbalanced parentheses in %q", text)
			}
			popOp() // discard the '('
		}
	}
	for len(ops) > 0 {
		if ops[len(ops)-1].kind == tokLParen {
			return nil, errs.New(errs.Validation, "unbalanced parentheses in %q", text)
		}
		output = append(output, popOp())
	}
	return &Expr{postfix: output}, nil
}

// eval interprets the compiled postfix form. A bare single-token expression
// (a literal or a variable) resolves to whatever that variable holds —
// Value, *entity.Entity, or []*entity.Entity — so Return/ForEach/Get can
// carry non-scalar results through the same expression machinery.
// Multi-token expressions require every operand to reduce to a scalar
// Value, since arithmetic is only defined over the value system (spec
// §4.1/§4.5).
func (e *Expr) eval(ctx context.Context, scope *Scope) (any, error) {
	if len(e.postfix) == 1 {
		return evalOperand(ctx, e.postfix[0], scope)
	}

	var stack []value.Value
	for _, t := range e.postfix {
		if t.kind == tokOp {
			if len(stack) < 2 {
				return nil, errs.New(errs.Validation, "malformed expression")
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			var result value.Value
			var err error
			switch t.op {
			case '+':
				result, err = value.Add(a, b)
			case '-':
				result, err = value.Sub(a, b)
			case '*':
				result, err = value.Mul(a, b)
			case '/':
				result, err = value.Div(a, b)
			}
			if err != nil {
				return nil, err
			}
			stack = append(stack, result)
			continue
		}
		operand, err := evalOperand(ctx, t, scope)
		if err != nil {
			return nil, err
		}
		v, ok := operand.(value.Value)
		if !ok {
			return nil, errs.New(errs.Validation, "arithmetic operand must be a scalar value")
		}
		stack = append(stack, v)
	}
	if len(stack) != 1 {
		return nil, errs.New(errs.Validation, "malformed expression")
	}
	return stack[0], nil
}

func evalOperand(ctx context.Context, t exprToken, scope *Scope) (any, error) {
	switch t.kind {
	case tokLitNumber:
		return value.NewNumber(t.text, nil, nil)
	case tokLitString:
		return value.NewString(t.text, nil)
	case tokVar:
		return scope.Resolve(ctx, t.path)
	default:
		return nil, errs.New(errs.Validation, "not an operand")
	}
}
