package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/value"
)

// paramRe matches one "type:name" or "type:name (default)" segment (spec
// §4.5: "each param is type:name with optional (default)"). The type
// vocabulary mirrors schema.fieldLineRe's, plus list[Target] for relation
// parameters.
var paramRe = regexp.MustCompile(`(?i)^\s*(number(?:\[[^\]]*\])?|str(?:\[[^\]]*\])?|bool|datetime|list\[[^\]]*\])\s*:\s*(\w+)\s*(?:\(([^)]*)\))?\s*$`)

func parseParams(text string) ([]ParamDef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var params []ParamDef
	for _, seg := range splitTopLevelComma(text) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		m := paramRe.FindStringSubmatch(seg)
		if m == nil {
			return nil, errs.New(errs.Schema, "malformed parameter %q", seg)
		}
		p, err := parseParamType(m[1], m[2])
		if err != nil {
			return nil, err
		}
		if m[3] != "" {
			p.Default = strings.Trim(strings.TrimSpace(m[3]), `"'`)
			p.HasDefault = true
		}
		params = append(params, p)
	}
	return params, nil
}

func parseParamType(typeTok, name string) (ParamDef, error) {
	p := ParamDef{Name: name, RawType: typeTok}
	lower := strings.ToLower(typeTok)
	switch {
	case strings.HasPrefix(lower, "list"):
		p.IsList = true
		p.ListTarget = bracketContent(typeTok)
		if p.ListTarget == "" {
			return ParamDef{}, errs.New(errs.Schema, "parameter %q: list type missing target", name)
		}
	case strings.HasPrefix(lower, "number"):
		p.Kind = value.KindNumber
		if spec := bracketContent(typeTok); spec != "" {
			pr, sc, err := parseNumberSpec(spec)
			if err != nil {
				return ParamDef{}, errs.Wrap(errs.Schema, err, "parameter %q", name)
			}
			p.Precision, p.Scale = pr, sc
		}
	case strings.HasPrefix(lower, "str"):
		p.Kind = value.KindString
		if spec := bracketContent(typeTok); spec != "" {
			n, err := strconv.Atoi(strings.TrimSpace(spec))
			if err != nil {
				return ParamDef{}, errs.Wrap(errs.Schema, err, "parameter %q: invalid max length", name)
			}
			p.MaxLen = &n
		}
	case lower == "bool":
		p.Kind = value.KindBool
	case lower == "datetime":
		p.Kind = value.KindDateTime
	default:
		return ParamDef{}, errs.New(errs.Schema, "parameter %q: unknown type %q", name, typeTok)
	}
	return p, nil
}

func bracketContent(token string) string {
	i := strings.IndexByte(token, '[')
	j := strings.LastIndexByte(token, ']')
	if i < 0 || j < 0 || j <= i {
		return ""
	}
	return strings.TrimSpace(token[i+1 : j])
}

func parseNumberSpec(spec string) (*int, *int, error) {
	parts := strings.SplitN(spec, ".", 2)
	pr, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, nil, errs.Wrap(errs.Schema, err, "invalid precision %q", parts[0])
	}
	if len(parts) == 1 {
		return &pr, nil, nil
	}
	sc, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, nil, errs.Wrap(errs.Schema, err, "invalid scale %q", parts[1])
	}
	return &pr, &sc, nil
}

// literalToValue parses a parameter's default-literal text into a Value of
// the declared kind (spec §4.5: "the default (if any) is parsed and
// assigned").
func literalToValue(p ParamDef, text string) (value.Value, error) {
	return value.FromRaw(p.Kind, text, p.Precision, p.Scale, p.MaxLen)
}
