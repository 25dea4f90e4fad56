package engine

import (
	"context"

	"github.com/kalita-labs/truss/internal/entity"
	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/value"
)

// Scope is one procedure invocation's flat variable bindings. It is not
// nested per block: a ForEach loop variable overwrites any prior binding of
// the same name, a documented leakage carried over from spec §4.5's
// execution contract rather than introduced here.
type Scope struct {
	vars map[string]any
}

func newScope() *Scope {
	return &Scope{vars: make(map[string]any)}
}

func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *Scope) Set(name string, v any) {
	s.vars[name] = v
}

// Resolve looks up a dotted variable path. The root segment is a scope
// binding; any further segment is resolved through Entity.get for a scalar
// field, or Entity.Related (triggering the lazy loader) for a declared
// relation field, since spec §4.5 only defines dotted-path traversal onto
// Entities ("if its value is an Entity, the tail is resolved through
// Entity.get(field)") — relation fields are the one extension beyond that,
// needed so `{user.posts}` and a ForEach iterable can name a relation
// directly.
func (s *Scope) Resolve(ctx context.Context, path []string) (any, error) {
	root, ok := s.vars[path[0]]
	if !ok {
		return nil, errs.New(errs.Resolution, "undefined variable %q", path[0])
	}
	cur := any(root)
	for _, seg := range path[1:] {
		ent, ok := cur.(*entity.Entity)
		if !ok {
			return nil, errs.New(errs.Resolution, "cannot resolve field %q: %q is not an entity", seg, path[0])
		}
		if isRelationField(ent, seg) {
			list, err := ent.Related(ctx, seg)
			if err != nil {
				return nil, err
			}
			cur = list
			continue
		}
		v, err := ent.Get(seg)
		if err != nil {
			return nil, err
		}
		cur = v
	}
	return cur, nil
}

func isRelationField(ent *entity.Entity, field string) bool {
	for _, rel := range ent.Type.Relations {
		if rel.FieldName == field {
			return true
		}
	}
	return false
}

// resolveValue is a convenience for call sites that require a scalar
// (arithmetic operands, field assignments).
func resolveValue(v any) (value.Value, error) {
	val, ok := v.(value.Value)
	if !ok {
		return value.Value{}, errs.New(errs.Validation, "expected a scalar value")
	}
	return val, nil
}
