package engine

import (
	"context"

	"github.com/kalita-labs/truss/internal/entity"
	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/storage"
)

// wireRelations registers a lazy Loader for every List[Target] field
// declared on ent's type (spec §4.5 "Lazy loader contract"). Each fetched
// child is wired the same way, so traversal works transitively through a
// chain of relations.
func wireRelations(registry *schema.Registry, tx storage.Transaction, ent *entity.Entity) {
	for _, rel := range ent.Type.Relations {
		rel := rel
		ent.RegisterRelationLoader(rel.FieldName, func(ctx context.Context) ([]*entity.Entity, error) {
			return loadRelation(ctx, registry, tx, ent, rel)
		})
	}
}

// loadRelation determines the junction table by lex-ordering (E,T) exactly
// as schema.synthesizeRelations does, reads the matching junction rows,
// and fetches each target row via find_one (spec §4.5).
func loadRelation(ctx context.Context, registry *schema.Registry, tx storage.Transaction, owner *entity.Entity, rel schema.RelationDecl) ([]*entity.Entity, error) {
	info, ok := registry.Relation(owner.Type.Name, rel.Target)
	if !ok {
		return nil, errs.New(errs.Resolution, "no relation registered between %q and %q", owner.Type.Name, rel.Target)
	}
	targetDef, ok := registry.Entity(rel.Target)
	if !ok {
		return nil, errs.New(errs.Resolution, "unknown entity %q", rel.Target)
	}

	matchCol, otherCol := info.TargetCol, info.SourceCol
	if info.SourceEntity == owner.Type.Name {
		matchCol, otherCol = info.SourceCol, info.TargetCol
	}

	pks, err := tx.RelatedRows(ctx, info.Table, matchCol, owner.PK(), otherCol)
	if err != nil {
		return nil, err
	}

	targetPK := targetDef.PrimaryField()
	if targetPK == nil {
		return nil, errs.New(errs.Schema, "entity %q has no primary key", targetDef.Name)
	}

	out := make([]*entity.Entity, 0, len(pks))
	for _, pk := range pks {
		row, err := tx.FindOne(ctx, targetDef.Name, map[string]any{targetPK.Name: pk})
		if err != nil {
			return nil, err
		}
		if row == nil {
			continue
		}
		child := entity.New(targetDef, row)
		wireRelations(registry, tx, child)
		out = append(out, child)
	}
	return out, nil
}
