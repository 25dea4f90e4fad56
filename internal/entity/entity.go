// Package entity implements the runtime object described in spec §4.2: a
// typed wrapper around one storage row, with lazily-loaded many-to-many
// relation slots and change tracking.
//
// Grounded on the teacher's internal/api/storage.go Record struct
// (avangerus-kalita), generalized from an always-resident flat map into an
// Entity carrying a loader-backed relation slot per field (see DESIGN.md).
package entity

import (
	"context"
	"io"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/value"
)

// Loader fetches the related rows for one relation field; it is a closure
// that already captures the owning entity (see engine.wireRelations), so it
// takes only a context. Implementations live in the engine, which has
// access to the open Storage transaction; entity itself stays
// storage-agnostic (spec §4.2: "the entity runtime never talks to storage
// directly outside of a loader it was handed").
type Loader func(ctx context.Context) ([]*Entity, error)

type slotState int

const (
	slotEmpty slotState = iota
	slotResolved
)

// relationSlot is the one-shot lazy cache described in spec §4.2/§9: the
// first Load call fetches and caches; concurrent callers block on mu and
// share the one fetch. Unlike sync.Once, a failed fetch clears the slot
// back to slotEmpty instead of caching the error, so a later call can
// retry (spec §9: "Empty -> InFlight -> Resolved(list) or Empty on
// failure").
type relationSlot struct {
	mu     sync.Mutex
	state  slotState
	list   []*Entity
	loader Loader
}

// Entity is one runtime row, typed against its schema definition.
type Entity struct {
	Type      *schema.EntityDef
	Data      map[string]any // raw storage form, keyed by field name
	mu        sync.RWMutex
	relations map[string]*relationSlot
	dirty     bool
}

// New constructs an Entity from a raw storage row (as returned by a
// storage.Adapter Find/FindOne call).
func New(def *schema.EntityDef, raw map[string]any) *Entity {
	if raw == nil {
		raw = make(map[string]any)
	}
	return &Entity{
		Type:      def,
		Data:      raw,
		relations: make(map[string]*relationSlot),
	}
}

// DefaultsFor returns the field defaults that Create should seed before
// overlaying a procedure's explicit `FIELD of EXPR` assignments (spec §4.5:
// Create evaluates every declared assignment itself; this only fills in
// what an assignment list may have omitted). A str-typed primary field with
// no literal default gets a generated ULID surrogate id — a supplemented
// feature beyond the base grammar's always-explicit-id examples, grounded
// on the teacher's Storage.newID / ulid.Monotonic; a number-typed primary
// field is left unset so an omitted id surfaces as a NOT NULL violation
// rather than a silently-invented number.
func DefaultsFor(def *schema.EntityDef, entropy io.Reader) map[string]any {
	raw := make(map[string]any)
	if pk := def.PrimaryField(); pk != nil {
		switch {
		case pk.Default != "":
			raw[pk.Name] = pk.Default
		case pk.Kind == value.KindString:
			raw[pk.Name] = ulid.MustNew(ulid.Now(), entropy).String()
		}
	}
	for _, name := range def.FieldOrder {
		fd := def.Fields[name]
		if fd.Primary {
			continue
		}
		if fd.Default != "" {
			raw[name] = fd.Default
		}
	}
	return raw
}

// RegisterRelationLoader wires the lazy loader for a relation field; called
// by the engine immediately after constructing an Entity from storage, once
// per relation field declared on its type.
func (e *Entity) RegisterRelationLoader(field string, loader Loader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.relations[field] = &relationSlot{loader: loader}
}

// Get returns the typed value for a scalar field (spec §4.2).
func (e *Entity) Get(field string) (value.Value, error) {
	fd, ok := e.Type.Fields[field]
	if !ok {
		return value.Value{}, errs.New(errs.Resolution, "entity %q has no field %q", e.Type.Name, field)
	}
	e.mu.RLock()
	raw, present := e.Data[field]
	e.mu.RUnlock()
	if !present {
		raw = nil
	}
	return value.FromRaw(fd.Kind, raw, fd.Precision, fd.Scale, fd.MaxLen)
}

// Set stores a new scalar value and marks the entity dirty (spec §4.2).
// The incoming value is re-cast against the field's own precision/scale/
// max-length before it lands in Data — a value freshly computed from an
// untyped literal or an uncapped procedure parameter carries no caps of
// its own, so the field's declared caps must be applied here, not assumed
// already present on v (see DESIGN.md, engine/ section).
func (e *Entity) Set(field string, v value.Value) error {
	fd, ok := e.Type.Fields[field]
	if !ok {
		return errs.New(errs.Resolution, "entity %q has no field %q", e.Type.Name, field)
	}
	if fd.Primary {
		return errs.New(errs.Constraint, "field %q is a primary key and cannot be reassigned", field)
	}
	cast, err := value.Cast(v, fd.Kind, fd.Precision, fd.Scale, fd.MaxLen)
	if err != nil {
		return errs.Wrap(errs.Validation, err, "field %q", field)
	}
	e.mu.Lock()
	e.Data[field] = cast.Raw()
	e.dirty = true
	e.mu.Unlock()
	return nil
}

// PK returns the entity's primary key raw value.
func (e *Entity) PK() any {
	pk := e.Type.PrimaryField()
	if pk == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Data[pk.Name]
}

func (e *Entity) Dirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dirty
}

func (e *Entity) ClearDirty() {
	e.mu.Lock()
	e.dirty = false
	e.mu.Unlock()
}

// Related resolves a List[Target] relation field, fetching it at most once
// per Entity regardless of how many callers request it concurrently (spec
// §4.2/§9 "one-shot caching").
func (e *Entity) Related(ctx context.Context, field string) ([]*Entity, error) {
	e.mu.Lock()
	slot, ok := e.relations[field]
	e.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.Resolution, "entity %q has no relation %q", e.Type.Name, field)
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.state == slotResolved {
		return slot.list, nil
	}
	list, err := slot.loader(ctx)
	if err != nil {
		slot.state = slotEmpty
		slot.list = nil
		return nil, err
	}
	slot.list = list
	slot.state = slotResolved
	return slot.list, nil
}

// relationLoaded reports whether a relation slot has already been resolved,
// without triggering a fetch — used by ToTree so unmaterialized relations
// are omitted (spec §4.2: "to_tree only includes already-materialized
// relations").
func (e *Entity) relationLoaded(field string) bool {
	e.mu.Lock()
	slot, ok := e.relations[field]
	e.mu.Unlock()
	if !ok {
		return false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.state == slotResolved
}

// ToTree serializes the entity into a plain tree: scalar fields in their
// raw storage form, plus any relation field that has already been resolved
// (spec §4.2, §6). Unresolved relations are omitted entirely rather than
// triggering a fetch, so calling ToTree never has I/O side effects.
func (e *Entity) ToTree() map[string]any {
	e.mu.RLock()
	out := make(map[string]any, len(e.Data)+len(e.Type.Relations))
	for k, v := range e.Data {
		out[k] = v
	}
	e.mu.RUnlock()

	for _, rel := range e.Type.Relations {
		if !e.relationLoaded(rel.FieldName) {
			continue
		}
		e.mu.Lock()
		slot := e.relations[rel.FieldName]
		e.mu.Unlock()
		children := make([]map[string]any, 0, len(slot.list))
		for _, child := range slot.list {
			children = append(children, child.ToTree())
		}
		out[rel.FieldName] = children
	}
	return out
}
