package schema

import "strings"

func toLower(s string) string { return strings.ToLower(s) }

// trimTrailingS implements the name-based pluralization heuristic used when
// resolving a List[Target] or owner name against a declared entity (spec §9
// open question: "should a plural reference like Students resolve to the
// Student entity?" — decided yes).
func trimTrailingS(name string) string {
	if len(name) > 1 && strings.HasSuffix(strings.ToLower(name), "s") {
		return name[:len(name)-1]
	}
	return name
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
