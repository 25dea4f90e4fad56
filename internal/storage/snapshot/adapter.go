package snapshot

import (
	"context"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
)

// EnsureTable registers the schema and, if missing, an empty table. Table
// creation here is bookkeeping only — the snapshot backend has no physical
// DDL to run, so this is unconditionally idempotent (spec §8 Testable
// Property 2 is trivially satisfied).
func (a *Adapter) EnsureTable(ctx context.Context, def *schema.EntityDef) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.d.Schemas[def.Name] = def
	if a.d.Tables[def.Name] == nil {
		a.d.Tables[def.Name] = make(map[string]map[string]any)
	}
	return nil
}

func junctionTableName(e1, e2 string) string {
	// mirrors schema.synthesizeRelations: lex-ordered {e1_lower}_{e2_lower}.
	if lower(e2) < lower(e1) {
		e1, e2 = e2, e1
	}
	return lower(e1) + "_" + lower(e2)
}

func lower(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

func (a *Adapter) EnsureRelationTable(ctx context.Context, e1, e2, pk1, pk2 string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	table := junctionTableName(e1, e2)
	if a.d.Relations[table] == nil {
		a.d.Relations[table] = []map[string]any{}
	}
	return nil
}

// EnsureOrphanTrigger is a documented no-op: spec §4.3 defines orphan
// removal only for the relational back end and explicitly states orphan GC
// is not available on the snapshot back end. UnlinkRelation therefore never
// deletes a target row, even for owned entities.
func (a *Adapter) EnsureOrphanTrigger(ctx context.Context, spec schema.TriggerSpec) error {
	return nil
}

func (a *Adapter) FindOne(ctx context.Context, table string, criteria map[string]any) (map[string]any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, row := range a.d.Tables[table] {
		if matches(row, criteria) {
			return cloneRow(row), nil
		}
	}
	return nil, nil
}

func (a *Adapter) Find(ctx context.Context, table string, criteria map[string]any) ([]map[string]any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []map[string]any
	for _, row := range a.d.Tables[table] {
		if matches(row, criteria) {
			out = append(out, cloneRow(row))
		}
	}
	return out, nil
}

func (a *Adapter) Insert(ctx context.Context, table string, row map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	def, ok := a.d.Schemas[table]
	if !ok {
		return errs.New(errs.Storage, "unknown table %q", table)
	}
	pk := def.PrimaryField()
	if pk == nil {
		return errs.New(errs.Storage, "table %q has no primary key", table)
	}
	key := pkString(row[pk.Name])
	if a.d.Tables[table] == nil {
		a.d.Tables[table] = make(map[string]map[string]any)
	}
	if _, exists := a.d.Tables[table][key]; exists {
		return errs.New(errs.Constraint, "duplicate primary key %v in table %q", row[pk.Name], table)
	}
	a.d.Tables[table][key] = cloneRow(row)
	return nil
}

func (a *Adapter) Update(ctx context.Context, table string, pkCriteria, updates map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, row := range a.d.Tables[table] {
		if matches(row, pkCriteria) {
			for k, v := range updates {
				row[k] = v
			}
			a.d.Tables[table][key] = row
			return nil
		}
	}
	return errs.New(errs.Resolution, "no row in %q matches update criteria", table)
}

func (a *Adapter) Delete(ctx context.Context, table string, pkCriteria map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, row := range a.d.Tables[table] {
		if matches(row, pkCriteria) {
			delete(a.d.Tables[table], key)
			return nil
		}
	}
	return nil
}

func (a *Adapter) LinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.d.Relations[table] = append(a.d.Relations[table], map[string]any{col1: val1, col2: val2})
	return nil
}

// UnlinkRelation removes one junction row. Orphan GC does not run here —
// spec §4.3 defines it only for the relational back end.
func (a *Adapter) UnlinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.d.Relations[table][:0]
	for _, row := range a.d.Relations[table] {
		if row[col1] == val1 && row[col2] == val2 {
			continue
		}
		kept = append(kept, row)
	}
	a.d.Relations[table] = kept
	return nil
}

func (a *Adapter) RelatedRows(ctx context.Context, table, matchCol string, matchVal any, otherCol string) ([]any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []any
	for _, row := range a.d.Relations[table] {
		if row[matchCol] == matchVal {
			out = append(out, row[otherCol])
		}
	}
	return out, nil
}
