package engine

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/kalita-labs/truss/internal/errs"
)

var (
	procHeaderRe = regexp.MustCompile(`(?i)^([A-Za-z_]\w*)\s*\(((?:[^()]|\([^()]*\))*)\)\s*:\s*$`)
	getRe        = regexp.MustCompile(`(?i)^Get\s+(?:(?:a|an|the)\s+)?(\w+)\s+by id of\s+(.+?)\s+as\s+(\w+)\s*$`)
	createRe     = regexp.MustCompile(`(?i)^Create\s+(?:(?:a|an)\s+)?(\w+)\s+with\s+(.+)$`)
	updateRe     = regexp.MustCompile(`(?i)^Update\s+(?:the\s+)?(\w+)\s+to set\s+(.+)$`)
	setRe        = regexp.MustCompile(`(?i)^Set\s+\{(\w+)\}\s*=\s*(.+)$`)
	ifRe         = regexp.MustCompile(`(?i)^If\s+(.+):\s*$`)
	forEachRe    = regexp.MustCompile(`(?i)^For Each\s+(\w+)\s+in\s+(.+):\s*$`)
	returnRe     = regexp.MustCompile(`(?i)^return\s+(.+)$`)
	assignOfRe   = regexp.MustCompile(`(?i)^\s*(\w+)\s+of\s+(.+)$`)
	assignEqRe   = regexp.MustCompile(`^\s*(\w+)\s*=\s*(.+)$`)
)

// compileFrame is one open scope on the indentation stack (spec §4.5:
// "a scope stack pairs each open block header with its body list").
type compileFrame struct {
	indent int
	body   *[]Stmt
}

// CompileSource parses every `Name(params):` procedure block in source into
// a statement tree, using an indent-stack scope model exactly as spec §4.5
// describes. Non-procedure lines (entity declarations, blank lines,
// comments) are skipped, mirroring schema.ParseSource's tolerance for lines
// outside its own grammar.
func CompileSource(source string) (map[string]*ProcedureDef, error) {
	procedures := make(map[string]*ProcedureDef)
	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sentinel := compileFrame{indent: -1}
	stack := []compileFrame{sentinel}
	var current *ProcedureDef

	flush := func() {
		if current != nil {
			procedures[current.Name] = current
		}
		current = nil
		stack = stack[:1]
	}

	for scanner.Scan() {
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		indent := indentOf(raw)

		if m := procHeaderRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			params, err := parseParams(m[2])
			if err != nil {
				return nil, err
			}
			current = &ProcedureDef{Name: m[1], Params: params}
			stack = []compileFrame{sentinel, {indent: indent, body: &current.Body}}
			continue
		}

		if current == nil {
			continue
		}

		for len(stack) > 1 && indent <= stack[len(stack)-1].indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 1 {
			flush()
			continue
		}

		stmt, block, err := parseStatementLine(trimmed)
		if err != nil {
			return nil, err
		}
		top := &stack[len(stack)-1]
		*top.body = append(*top.body, stmt)
		if block != nil {
			stack = append(stack, compileFrame{indent: indent, body: block})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.Schema, err, "reading procedure source")
	}
	flush()
	return procedures, nil
}

func indentOf(raw string) int {
	n := 0
	for _, r := range raw {
		if r == ' ' || r == '\t' {
			n++
			continue
		}
		break
	}
	return n
}

// parseStatementLine classifies one trimmed line per spec §4.5's prefix
// table. It returns the compiled statement and, for a block header (If /
// ForEach), a pointer to that block's body slice so the caller can push a
// new indentation frame.
func parseStatementLine(line string) (Stmt, *[]Stmt, error) {
	if m := getRe.FindStringSubmatch(line); m != nil {
		idExpr, err := parseExpr(m[2])
		if err != nil {
			return nil, nil, err
		}
		return &GetStmt{Entity: m[1], IDExpr: idExpr, Alias: m[3]}, nil, nil
	}
	if m := createRe.FindStringSubmatch(line); m != nil {
		entityName := m[1]
		rest := m[2]
		alias := ""
		if before, after, found := lastTopLevelWord(rest, "as"); found {
			rest, alias = before, strings.TrimSpace(after)
		}
		assigns, err := parseAssigns(rest, assignOfRe, "of")
		if err != nil {
			return nil, nil, err
		}
		return &CreateStmt{Entity: entityName, Assigns: assigns, Alias: alias}, nil, nil
	}
	if m := updateRe.FindStringSubmatch(line); m != nil {
		assigns, err := parseAssigns(m[2], assignEqRe, "=")
		if err != nil {
			return nil, nil, err
		}
		return &UpdateStmt{Alias: m[1], Assigns: assigns}, nil, nil
	}
	if m := setRe.FindStringSubmatch(line); m != nil {
		expr, err := parseExpr(m[2])
		if err != nil {
			return nil, nil, err
		}
		return &SetStmt{Var: m[1], Expr: expr}, nil, nil
	}
	if m := ifRe.FindStringSubmatch(line); m != nil {
		cond, err := parseCondition(m[1])
		if err != nil {
			return nil, nil, err
		}
		node := &IfStmt{Cond: cond}
		return node, &node.Body, nil
	}
	if m := forEachRe.FindStringSubmatch(line); m != nil {
		iter, err := parseExpr(m[2])
		if err != nil {
			return nil, nil, err
		}
		node := &ForEachStmt{Var: m[1], Iter: iter}
		return node, &node.Body, nil
	}
	if m := returnRe.FindStringSubmatch(line); m != nil {
		expr, err := parseExpr(m[1])
		if err != nil {
			return nil, nil, err
		}
		return &ReturnStmt{Expr: expr}, nil, nil
	}
	expr, err := parseExpr(line)
	if err != nil {
		return nil, nil, err
	}
	return &ExprStmt{Expr: expr}, nil, nil
}

// parseAssigns splits a "FIELD of EXPR and FIELD of EXPR" (or
// comma-and-"=" for Update) clause list into FieldAssigns.
func parseAssigns(text string, fieldRe *regexp.Regexp, keyword string) ([]FieldAssign, error) {
	var segs []string
	if keyword == "of" {
		segs = splitTopLevelWord(text, "and")
	} else {
		segs = splitTopLevelComma(text)
	}
	assigns := make([]FieldAssign, 0, len(segs))
	for _, seg := range segs {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		m := fieldRe.FindStringSubmatch(seg)
		if m == nil {
			return nil, errs.New(errs.Schema, "malformed assignment %q", seg)
		}
		expr, err := parseExpr(m[2])
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, FieldAssign{Field: m[1], Expr: expr})
	}
	return assigns, nil
}
