package schema

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/value"
)

// entityHeaderRe matches "Name { ... }" or "Name (Owner, Owner) { ... }",
// capturing whatever follows the opening brace on the same line (which may
// already contain the closing brace, for the single-line body form shown in
// spec §8 scenario S1).
var entityHeaderRe = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?:\(([^)]*)\))?\s*\{\s*(.*)$`)

// fieldLineRe matches one "TYPE:name [attr] (default)" field segment (spec
// §4.4 pass 1). Type tokens match case-insensitively; everything after the
// name is free-form attribute/default text handled by parseFieldRest.
var fieldLineRe = regexp.MustCompile(`(?i)^(number(?:\[[^\]]*\])?|str(?:\[[^\]]*\])?|bool|datetime|list(?:\[[^\]]*\])?)\s*:\s*(\w+)\s*(.*)$`)

var attrRe = regexp.MustCompile(`\[([^\]]*)\]`)
var defaultRe = regexp.MustCompile(`\(([^)]*)\)`)

// ParseSource runs passes 1-2 of spec §4.4 (lexical entity parse and
// validation) over a DSL source that may also contain procedure blocks;
// non-entity lines are ignored (procedure parsing lives in the engine
// package). Parse never touches a Storage Adapter — every parsing error is
// raised before any side effect, so physical table creation is deferred
// entirely to Registry.Synthesize, splitting what spec §4.4 describes as
// one pass-1 side effect out of Parse itself.
//
// Grounded on the teacher's internal/dsl/parser.go line-dispatch scanner,
// generalized from its one-field-per-line module.entity grammar to this
// spec's owners/relations/single-or-multi-line bodies.
func ParseSource(source string) (*Registry, error) {
	reg := newRegistry()

	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current *EntityDef
	var bodyBuf []string

	finishEntity := func(ent *EntityDef, bodyText string) error {
		if err := parseEntityBody(ent, bodyText); err != nil {
			return err
		}
		if _, dup := reg.Entities[ent.Name]; dup {
			return errs.New(errs.Schema, "duplicate entity %q", ent.Name)
		}
		reg.Entities[ent.Name] = ent
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if current == nil {
			if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
				continue
			}
			m := entityHeaderRe.FindStringSubmatch(trimmed)
			if m == nil {
				continue // not an entity header; leave procedure lines untouched
			}
			ent := &EntityDef{
				Name:   m[1],
				Fields: make(map[string]*FieldDef),
				Owners: splitCSV(m[2]),
			}
			ent.IsOwned = len(ent.Owners) > 0
			rest := m[3]
			if idx := strings.LastIndex(rest, "}"); idx >= 0 {
				if err := finishEntity(ent, rest[:idx]); err != nil {
					return nil, err
				}
				continue
			}
			current = ent
			bodyBuf = nil
			if strings.TrimSpace(rest) != "" {
				bodyBuf = append(bodyBuf, rest)
			}
			continue
		}

		// inside an open entity body
		if idx := strings.Index(line, "}"); idx >= 0 {
			before := line[:idx]
			if strings.TrimSpace(before) != "" {
				bodyBuf = append(bodyBuf, before)
			}
			if err := finishEntity(current, strings.Join(bodyBuf, ",")); err != nil {
				return nil, err
			}
			current = nil
			bodyBuf = nil
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		bodyBuf = append(bodyBuf, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.Schema, err, "reading schema source")
	}
	if current != nil {
		return nil, errs.New(errs.Schema, "entity %q missing closing brace", current.Name)
	}

	if err := validate(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// parseEntityBody splits the collected body text into field segments and
// parses each one, distinguishing List[Target] relation declarations from
// scalar fields.
func parseEntityBody(ent *EntityDef, body string) error {
	for _, seg := range splitFieldSegments(body) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		m := fieldLineRe.FindStringSubmatch(seg)
		if m == nil {
			return errs.New(errs.Schema, "entity %q: malformed field %q", ent.Name, seg)
		}
		typeTok, name, rest := m[1], m[2], m[3]
		lower := strings.ToLower(typeTok)

		if strings.HasPrefix(lower, "list") {
			target := bracketContent(typeTok)
			if target == "" {
				return errs.New(errs.Schema, "entity %q: List field %q missing target", ent.Name, name)
			}
			ent.Relations = append(ent.Relations, RelationDecl{FieldName: name, Target: target})
			continue
		}

		fd := &FieldDef{Name: name, RawType: typeTok}
		switch {
		case strings.HasPrefix(lower, "number"):
			fd.Kind = value.KindNumber
			if spec := bracketContent(typeTok); spec != "" {
				p, s, err := parseNumberSpec(spec)
				if err != nil {
					return errs.Wrap(errs.Schema, err, "entity %q field %q", ent.Name, name)
				}
				fd.Precision, fd.Scale = p, s
			}
		case strings.HasPrefix(lower, "str"):
			fd.Kind = value.KindString
			if spec := bracketContent(typeTok); spec != "" {
				n, err := strconv.Atoi(strings.TrimSpace(spec))
				if err != nil {
					return errs.Wrap(errs.Schema, err, "entity %q field %q: invalid max length", ent.Name, name)
				}
				fd.MaxLen = &n
			}
		case lower == "bool":
			fd.Kind = value.KindBool
		case lower == "datetime":
			fd.Kind = value.KindDateTime
		default:
			return errs.New(errs.Schema, "entity %q field %q: unknown type %q", ent.Name, name, typeTok)
		}

		for _, am := range attrRe.FindAllStringSubmatch(rest, -1) {
			switch strings.TrimSpace(strings.ToLower(am[1])) {
			case "primary":
				fd.Primary = true
				fd.NotNull = true
				fd.Unique = true
			case "not null":
				fd.NotNull = true
			case "unique":
				fd.Unique = true
			default:
				return errs.New(errs.Schema, "entity %q field %q: unknown attribute %q", ent.Name, name, am[1])
			}
		}
		if dm := defaultRe.FindStringSubmatch(rest); dm != nil {
			fd.Default = strings.Trim(strings.TrimSpace(dm[1]), `"'`)
		}

		if _, dup := ent.Fields[name]; dup {
			return errs.New(errs.Schema, "entity %q: duplicate field %q", ent.Name, name)
		}
		ent.Fields[name] = fd
		ent.FieldOrder = append(ent.FieldOrder, name)
	}
	return nil
}

// splitFieldSegments splits a body string on commas (and, transparently,
// original line breaks already joined with commas by the caller) while
// respecting [...] and (...) nesting, so "number[10,2]" style specs never
// get split mid-bracket. No field in this grammar contains braces.
func splitFieldSegments(body string) []string {
	var segs []string
	depth := 0
	start := 0
	for i, r := range body {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				segs = append(segs, body[start:i])
				start = i + 1
			}
		}
	}
	segs = append(segs, body[start:])
	return segs
}

func bracketContent(token string) string {
	i := strings.IndexByte(token, '[')
	j := strings.LastIndexByte(token, ']')
	if i < 0 || j < 0 || j <= i {
		return ""
	}
	return strings.TrimSpace(token[i+1 : j])
}

// parseNumberSpec parses "P" or "P.S" into precision/scale pointers.
func parseNumberSpec(spec string) (*int, *int, error) {
	parts := strings.SplitN(spec, ".", 2)
	p, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, nil, errs.Wrap(errs.Schema, err, "invalid precision %q", parts[0])
	}
	if len(parts) == 1 {
		return &p, nil, nil
	}
	s, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, nil, errs.Wrap(errs.Schema, err, "invalid scale %q", parts[1])
	}
	return &p, &s, nil
}
