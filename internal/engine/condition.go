package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/value"
)

// conditionPhrases maps each natural-language phrase to its operator
// symbol (spec §4.5 "Conditions"). Longer phrases are listed first so "is
// greater than or equal to" is rewritten whole, not left with a stray "or
// equal to" after a shorter phrase already matched "is greater than".
var conditionPhrases = []struct {
	re *regexp.Regexp
	op string
}{
	{regexp.MustCompile(`(?i)is\s+not\s+equal\s+to`), "!="},
	{regexp.MustCompile(`(?i)is\s+greater\s+than\s+or\s+equal\s+to`), ">="},
	{regexp.MustCompile(`(?i)is\s+less\s+than\s+or\s+equal\s+to`), "<="},
	{regexp.MustCompile(`(?i)is\s+equal\s+to`), "=="},
	{regexp.MustCompile(`(?i)is\s+greater\s+than`), ">"},
	{regexp.MustCompile(`(?i)is\s+less\s+than`), "<"},
}

func normalizeCondition(text string) string {
	for _, p := range conditionPhrases {
		text = p.re.ReplaceAllString(text, p.op)
	}
	return text
}

// comparisonOps is checked longest-first so "==" isn't mistaken for two
// bare "=" tokens or ">=" cut short as ">".
var comparisonOps = []string{"==", "!=", "<=", ">=", "<", ">"}

// splitCondition finds the first top-level comparison operator (outside
// quotes, braces and parens) and splits the text around it.
func splitCondition(text string) (left, op, right string, found bool) {
	depth := 0
	var inQuote rune
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
			continue
		case r == '\'' || r == '"':
			inQuote = r
			continue
		case r == '{' || r == '(':
			depth++
			continue
		case r == '}' || r == ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		rest := string(runes[i:])
		for _, cand := range comparisonOps {
			if strings.HasPrefix(rest, cand) {
				return strings.TrimSpace(string(runes[:i])), cand, strings.TrimSpace(string(runes[i+len(cand):])), true
			}
		}
	}
	return text, "", "", false
}

// Condition is a compiled `If COND:` predicate (spec §4.5 "Conditions").
type Condition struct {
	Bare  *Expr // set when the condition is a bare boolean variable
	Left  *Expr
	Op    string
	Right *Expr
}

func parseCondition(text string) (*Condition, error) {
	normalized := normalizeCondition(text)
	left, op, right, found := splitCondition(normalized)
	if !found {
		bare, err := parseExpr(normalized)
		if err != nil {
			return nil, err
		}
		return &Condition{Bare: bare}, nil
	}
	leftExpr, err := parseExpr(left)
	if err != nil {
		return nil, err
	}
	rightExpr, err := parseExpr(right)
	if err != nil {
		return nil, err
	}
	return &Condition{Left: leftExpr, Op: op, Right: rightExpr}, nil
}

func evalCondition(ctx context.Context, cond *Condition, scope *Scope) (bool, error) {
	if cond.Bare != nil {
		v, err := cond.Bare.eval(ctx, scope)
		if err != nil {
			return false, err
		}
		val, ok := v.(value.Value)
		if !ok || val.Kind() != value.KindBool {
			return false, errs.New(errs.Validation, "condition does not evaluate to a boolean")
		}
		return val.AsBool(), nil
	}

	lv, err := cond.Left.eval(ctx, scope)
	if err != nil {
		return false, err
	}
	rv, err := cond.Right.eval(ctx, scope)
	if err != nil {
		return false, err
	}
	lval, err := resolveValue(lv)
	if err != nil {
		return false, err
	}
	rval, err := resolveValue(rv)
	if err != nil {
		return false, err
	}

	switch cond.Op {
	case "==":
		return value.Eq(lval, rval)
	case "!=":
		eq, err := value.Eq(lval, rval)
		return !eq, err
	case ">":
		return value.Gt(lval, rval)
	case "<":
		return value.Lt(lval, rval)
	case ">=":
		lt, err := value.Lt(lval, rval)
		return !lt, err
	case "<=":
		gt, err := value.Gt(lval, rval)
		return !gt, err
	default:
		return false, errs.New(errs.Validation, "unknown comparison operator %q", cond.Op)
	}
}
