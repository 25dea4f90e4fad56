package schema

import (
	"context"
	"sort"

	"github.com/kalita-labs/truss/internal/errs"
)

// adapter is the minimal surface Synthesize needs from a storage.Adapter.
// Declared locally (instead of importing package storage) to avoid a
// schema -> storage import cycle; storage.Adapter satisfies it structurally.
type adapter interface {
	EnsureTable(ctx context.Context, def *EntityDef) error
	EnsureRelationTable(ctx context.Context, e1, e2, pk1, pk2 string) error
	EnsureOrphanTrigger(ctx context.Context, spec TriggerSpec) error
}

// Synthesize drives passes 3 (relation/junction-table synthesis) and 4
// (orphan-removal trigger synthesis) of spec §4.4, then applies both against
// the given adapter. It is idempotent: calling it twice against the same
// adapter must not error (spec §8 Testable Property 2), which both adapter
// implementations guarantee at the DDL-application layer (see
// storage/pgadapter and storage/snapshot).
func (r *Registry) Synthesize(ctx context.Context, ad adapter) error {
	names := sortedEntityNames(r.Entities)
	for _, name := range names {
		if err := ad.EnsureTable(ctx, r.Entities[name]); err != nil {
			return errs.Wrap(errs.Schema, err, "ensure table for %q", name)
		}
	}

	if err := r.synthesizeRelations(ctx, ad); err != nil {
		return err
	}
	if err := r.synthesizeTriggers(ctx, ad); err != nil {
		return err
	}
	return nil
}

// synthesizeRelations is pass 3: for every declared List[Target] field,
// derive a deterministic junction table name from the lexicographically
// ordered pair of entity names and register both directions of traversal
// (spec §9: "relations are visible from both sides regardless of which
// entity declared the List field").
func (r *Registry) synthesizeRelations(ctx context.Context, ad adapter) error {
	seen := map[string]bool{}
	names := sortedEntityNames(r.Entities)
	for _, name := range names {
		ent := r.Entities[name]
		for _, rel := range ent.Relations {
			target, ok := r.Entity(rel.Target)
			if !ok {
				return errs.New(errs.Schema, "entity %q: unresolved relation target %q", ent.Name, rel.Target)
			}
			e1, e2 := ent.Name, target.Name
			if toLower(e2) < toLower(e1) {
				e1, e2 = e2, e1
			}
			pairKey := e1 + "|" + e2
			if seen[pairKey] {
				continue
			}
			seen[pairKey] = true

			pk1 := entityByName(r, e1).PrimaryField()
			pk2 := entityByName(r, e2).PrimaryField()
			if pk1 == nil || pk2 == nil {
				return errs.New(errs.Schema, "relation between %q and %q requires both entities to have a primary field", e1, e2)
			}

			table := toLower(e1) + "_" + toLower(e2)
			col1 := toLower(e1) + "_" + pk1.Name
			col2 := toLower(e2) + "_" + pk2.Name

			if err := ad.EnsureRelationTable(ctx, e1, e2, col1, col2); err != nil {
				return errs.Wrap(errs.Schema, err, "ensure relation table between %q and %q", e1, e2)
			}

			addDirection(r, e1, e2, table, col1, col2)
			addDirection(r, e2, e1, table, col2, col1)
		}
	}
	return nil
}

func addDirection(r *Registry, source, target, table, sourceCol, targetCol string) {
	if r.Relations[source] == nil {
		r.Relations[source] = make(map[string]*RelationInfo)
	}
	r.Relations[source][target] = &RelationInfo{
		Table:        table,
		SourceEntity: source,
		TargetEntity: target,
		SourceCol:    sourceCol,
		TargetCol:    targetCol,
	}
}

// synthesizeTriggers is pass 4: for every owned entity, emit one
// AFTER-DELETE trigger per owner junction table, each checking NOT EXISTS
// across ALL of that entity's owner junction tables (spec §4.4, §9 open
// question preserved as-is: a single delete from any one owner junction
// table re-checks every owner relation before deleting the orphan).
func (r *Registry) synthesizeTriggers(ctx context.Context, ad adapter) error {
	names := sortedEntityNames(r.Entities)
	for _, name := range names {
		ent := r.Entities[name]
		if len(ent.Owners) == 0 {
			continue
		}
		pk := ent.PrimaryField()
		if pk == nil {
			return errs.New(errs.Schema, "owned entity %q has no primary field", ent.Name)
		}

		var checks []TriggerCheck
		for _, owner := range ent.Owners {
			info, ok := r.Relation(owner, ent.Name)
			if !ok {
				continue // unresolved owner already warned in validate()
			}
			checks = append(checks, TriggerCheck{Table: info.Table, Column: info.TargetCol})
		}
		if len(checks) == 0 {
			continue
		}

		for _, owner := range ent.Owners {
			info, ok := r.Relation(owner, ent.Name)
			if !ok {
				continue
			}
			spec := TriggerSpec{
				Name:          "orphan_" + toLower(ent.Name) + "_via_" + toLower(info.Table),
				TargetEntity:  ent.Name,
				TargetPK:      pk.Name,
				TriggerTable:  info.Table,
				TriggerTarget: info.TargetCol,
				Checks:        checks,
			}
			if err := ad.EnsureOrphanTrigger(ctx, spec); err != nil {
				return errs.Wrap(errs.Schema, err, "ensure orphan trigger for %q", ent.Name)
			}
			r.Triggers = append(r.Triggers, spec)
		}
	}
	return nil
}

func entityByName(r *Registry, name string) *EntityDef {
	e, _ := r.Entity(name)
	return e
}

func sortedEntityNames(m map[string]*EntityDef) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
