// Package reference loads the enum catalogs a schema's field defaults may
// point at symbolically, instead of spelling out a literal code.
//
// Grounded on the teacher's internal/reference (avangerus-kalita):
// LoadEnumCatalog's directory scan and yaml.v3 unmarshal are kept verbatim;
// the catalog is repurposed from a REST-served enum lookup into an
// auxiliary default-value source consulted once, during cmd/truss's
// bootstrap, before a schema source is handed to schema.ParseSource (see
// DESIGN.md).
package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// catalogDefaultRe matches a field default written as Catalog.Item, the
// symbolic form ResolveDefaults substitutes before a schema source is
// handed to schema.ParseSource (the schema package itself has no notion
// of catalogs — this substitution happens strictly at the text level).
var catalogDefaultRe = regexp.MustCompile(`\(([A-Za-z_]\w*)\.([A-Za-z_]\w*)\)`)

// ResolveDefaults rewrites every "(Catalog.Item)" default literal in source
// into the literal code the named catalog resolves it to, leaving anything
// it can't resolve untouched so schema.ParseSource reports it as an
// ordinary malformed default rather than this function failing silently.
func ResolveDefaults(source string, catalogs map[string]EnumDirectory) string {
	if len(catalogs) == 0 {
		return source
	}
	return catalogDefaultRe.ReplaceAllStringFunc(source, func(m string) string {
		parts := catalogDefaultRe.FindStringSubmatch(m)
		cat, ok := catalogs[parts[1]]
		if !ok {
			return m
		}
		code, ok := cat.CodeForName(parts[2])
		if !ok {
			return m
		}
		return "(" + code + ")"
	})
}

// LoadCatalogs reads every *.yaml/*.yml file directly under dir into a
// name-keyed set of enum directories. A missing directory is not an error —
// enum catalogs are optional (spec.md's DSL has no enum field kind of its
// own; this is purely a default-value convenience).
func LoadCatalogs(dir string) (map[string]EnumDirectory, error) {
	result := make(map[string]EnumDirectory)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var cat EnumDirectory
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("parsing enum catalog %q: %w", name, err)
		}
		key := cat.Name
		if key == "" {
			key = strings.TrimSuffix(name, filepath.Ext(name))
		}
		result[key] = cat
	}
	return result, nil
}
