// Package schema implements the four-pass schema ingestion described in
// spec §4.4: lexical entity parse, validation, relation (junction table)
// synthesis, and orphan-removal trigger synthesis. The line-dispatch
// scanning technique is carried over from the teacher's
// internal/dsl/parser.go entity-body parser (avangerus-kalita), generalized
// from its module.entity namespacing to the spec's owners/relation/orphan
// model (see DESIGN.md).
package schema

import "github.com/kalita-labs/truss/internal/value"

// FieldDef is one declared column (spec §3).
type FieldDef struct {
	Name      string
	RawType   string // original text, e.g. "number[10.2]"
	Kind      value.Kind
	Precision *int
	Scale     *int
	MaxLen    *int
	Default   string // textual literal, parsed lazily
	Primary   bool
	NotNull   bool
	Unique    bool
}

// RelationDecl is a List[Target] declaration inside an entity body.
type RelationDecl struct {
	FieldName string
	Target    string
}

// EntityDef is one schema type (spec §3).
type EntityDef struct {
	Name        string
	FieldOrder  []string
	Fields      map[string]*FieldDef
	Relations   []RelationDecl
	Owners      []string
	IsOwned     bool
}

// PrimaryField returns the entity's primary-key field, or nil if none is
// declared (schema validation rejects entities used in relations without
// one, see validate.go; Synthesize rejects an owned entity without one).
func (e *EntityDef) PrimaryField() *FieldDef {
	for _, name := range e.FieldOrder {
		if e.Fields[name].Primary {
			return e.Fields[name]
		}
	}
	return nil
}

// RelationInfo is one registered direction of a many-to-many relation
// (spec §3 "Relation row" + §4.4 pass 3). Both directions of a declared
// relation are registered, pointing at the same junction table — spec §9's
// open question on one-sided List[Target] declarations is resolved by
// preserving this "both directions visible" behavior exactly.
type RelationInfo struct {
	Table        string
	SourceEntity string
	TargetEntity string
	SourceCol    string
	TargetCol    string
}

// TriggerSpec describes one AFTER DELETE orphan-removal trigger (spec
// §4.4 pass 4). One TriggerSpec is emitted per (owned entity, owner)
// pair, but Checks always lists every owner junction table — spec §9's
// open question on this shape is preserved exactly.
type TriggerSpec struct {
	Name          string
	TargetEntity  string
	TargetPK      string
	TriggerTable  string // junction table whose AFTER DELETE fires this trigger
	TriggerTarget string // column in TriggerTable holding the target entity's pk
	Checks        []TriggerCheck
}

// TriggerCheck is one NOT EXISTS(...) clause in a trigger body: "no row
// remains in Table referring to the deleted target pk via Column".
type TriggerCheck struct {
	Table  string
	Column string
}

// Registry is the immutable result of a successful Parse + Synthesize
// (spec §5: "immutable after parse returns").
type Registry struct {
	Entities  map[string]*EntityDef
	Relations map[string]map[string]*RelationInfo // entity -> target -> info
	Triggers  []TriggerSpec
	Warnings  []string
}

func newRegistry() *Registry {
	return &Registry{
		Entities:  make(map[string]*EntityDef),
		Relations: make(map[string]map[string]*RelationInfo),
	}
}

// Relation looks up the registered relation from source to target,
// case-insensitively, in either declared direction (spec §9).
func (r *Registry) Relation(source, target string) (*RelationInfo, bool) {
	se, ok := r.resolveName(source)
	if !ok {
		return nil, false
	}
	te, ok := r.resolveName(target)
	if !ok {
		return nil, false
	}
	byTarget, ok := r.Relations[se]
	if !ok {
		return nil, false
	}
	info, ok := byTarget[te]
	return info, ok
}

// resolveName resolves an entity name case-insensitively to its canonical
// declared form, trimming a trailing pluralization "s" per spec §9's
// "name-based pluralization" note (documented heuristic, preserved as-is).
func (r *Registry) resolveName(name string) (string, bool) {
	if _, ok := r.Entities[name]; ok {
		return name, true
	}
	lower := toLower(name)
	for canonical := range r.Entities {
		if toLower(canonical) == lower {
			return canonical, true
		}
	}
	singular := trimTrailingS(name)
	if singular != name {
		return r.resolveName(singular)
	}
	return "", false
}

func (r *Registry) Entity(name string) (*EntityDef, bool) {
	canonical, ok := r.resolveName(name)
	if !ok {
		return nil, false
	}
	return r.Entities[canonical], true
}
