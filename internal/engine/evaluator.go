package engine

import (
	"context"
	"io"
	"log"

	"github.com/kalita-labs/truss/internal/entity"
	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/storage"
	"github.com/kalita-labs/truss/internal/value"
)

// evaluator interprets one procedure's statement tree against one open
// transaction. Every handler follows spec §4.5's execution contract; the
// boolean "done" return is the return sentinel spec §9 calls for — a value
// every block handler checks explicitly, rather than using exceptions for
// control flow.
type evaluator struct {
	registry *schema.Registry
	tx       storage.Transaction
	entropy  io.Reader
}

func (ev *evaluator) execBlock(ctx context.Context, scope *Scope, stmts []Stmt) (bool, any, error) {
	for _, st := range stmts {
		done, val, err := ev.execStmt(ctx, scope, st)
		if err != nil {
			return false, nil, err
		}
		if done {
			return true, val, nil
		}
	}
	return false, nil, nil
}

func (ev *evaluator) execStmt(ctx context.Context, scope *Scope, st Stmt) (bool, any, error) {
	switch n := st.(type) {
	case *GetStmt:
		return false, nil, ev.execGet(ctx, scope, n)
	case *CreateStmt:
		return false, nil, ev.execCreate(ctx, scope, n)
	case *UpdateStmt:
		return false, nil, ev.execUpdate(ctx, scope, n)
	case *SetStmt:
		v, err := n.Expr.eval(ctx, scope)
		if err != nil {
			return false, nil, err
		}
		scope.Set(n.Var, v)
		return false, nil, nil
	case *IfStmt:
		ok, err := evalCondition(ctx, n.Cond, scope)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, nil, nil
		}
		return ev.execBlock(ctx, scope, n.Body)
	case *ForEachStmt:
		return ev.execForEach(ctx, scope, n)
	case *ReturnStmt:
		v, err := n.Expr.eval(ctx, scope)
		if err != nil {
			return false, nil, err
		}
		return true, serializeReturn(v), nil
	case *ExprStmt:
		_, err := n.Expr.eval(ctx, scope)
		return false, nil, err
	default:
		return false, nil, errs.New(errs.Validation, "unhandled statement node %T", st)
	}
}

func (ev *evaluator) execGet(ctx context.Context, scope *Scope, n *GetStmt) error {
	def, ok := ev.registry.Entity(n.Entity)
	if !ok {
		return errs.New(errs.Resolution, "unknown entity %q", n.Entity)
	}
	pk := def.PrimaryField()
	if pk == nil {
		return errs.New(errs.Schema, "entity %q has no primary key", def.Name)
	}
	idAny, err := n.IDExpr.eval(ctx, scope)
	if err != nil {
		return err
	}
	idVal, err := resolveValue(idAny)
	if err != nil {
		return err
	}
	row, err := ev.tx.FindOne(ctx, def.Name, map[string]any{pk.Name: idVal.Raw()})
	if err != nil {
		return err
	}
	if row == nil {
		return errs.New(errs.Resolution, "no %s with id %v", def.Name, idVal.Raw())
	}
	ent := entity.New(def, row)
	wireRelations(ev.registry, ev.tx, ent)
	scope.Set(n.Alias, ent)
	return nil
}

func (ev *evaluator) execCreate(ctx context.Context, scope *Scope, n *CreateStmt) error {
	def, ok := ev.registry.Entity(n.Entity)
	if !ok {
		return errs.New(errs.Resolution, "unknown entity %q", n.Entity)
	}
	raw := entity.DefaultsFor(def, ev.entropy)
	for _, a := range n.Assigns {
		fd, ok := def.Fields[a.Field]
		if !ok {
			return errs.New(errs.Resolution, "entity %q has no field %q", def.Name, a.Field)
		}
		rv, err := a.Expr.eval(ctx, scope)
		if err != nil {
			return err
		}
		val, err := resolveValue(rv)
		if err != nil {
			return errs.Wrap(errs.Validation, err, "field %q", a.Field)
		}
		// The expression's Value carries whatever caps its source (a
		// literal or an uncapped procedure parameter) happened to have;
		// re-cast to the field's own declared caps before it's stored
		// (see value.Cast, DESIGN.md engine/ section).
		cast, err := value.Cast(val, fd.Kind, fd.Precision, fd.Scale, fd.MaxLen)
		if err != nil {
			return errs.Wrap(errs.Validation, err, "field %q", a.Field)
		}
		raw[a.Field] = cast.Raw()
	}
	if err := ev.tx.Insert(ctx, def.Name, raw); err != nil {
		return err
	}
	if n.Alias != "" {
		ent := entity.New(def, raw)
		wireRelations(ev.registry, ev.tx, ent)
		scope.Set(n.Alias, ent)
	}
	return nil
}

func (ev *evaluator) execUpdate(ctx context.Context, scope *Scope, n *UpdateStmt) error {
	v, ok := scope.Get(n.Alias)
	if !ok {
		return errs.New(errs.Resolution, "undefined variable %q", n.Alias)
	}
	ent, ok := v.(*entity.Entity)
	if !ok {
		return errs.New(errs.Resolution, "%q is not an entity", n.Alias)
	}
	pk := ent.Type.PrimaryField()
	if pk == nil {
		return errs.New(errs.Schema, "entity %q has no primary key", ent.Type.Name)
	}
	updates := make(map[string]any, len(n.Assigns))
	for _, a := range n.Assigns {
		rv, err := a.Expr.eval(ctx, scope)
		if err != nil {
			return err
		}
		val, err := resolveValue(rv)
		if err != nil {
			return errs.Wrap(errs.Validation, err, "field %q", a.Field)
		}
		if err := ent.Set(a.Field, val); err != nil {
			return err
		}
		// Entity.Set re-casts to the field's declared caps; read the cast
		// form back so the persisted row matches what the entity now holds
		// in memory (spec §4.5: "in-memory and persisted state must stay
		// in lock-step").
		cast, err := ent.Get(a.Field)
		if err != nil {
			return err
		}
		updates[a.Field] = cast.Raw()
	}
	// In-memory and persisted state stay in lock-step (spec §4.5: "so
	// subsequent reads in the same procedure see the new value").
	return ev.tx.Update(ctx, ent.Type.Name, map[string]any{pk.Name: ent.PK()}, updates)
}

func (ev *evaluator) execForEach(ctx context.Context, scope *Scope, n *ForEachStmt) (bool, any, error) {
	iterAny, err := n.Iter.eval(ctx, scope)
	if err != nil {
		return false, nil, err
	}
	if iterAny == nil {
		return false, nil, nil
	}
	list, ok := iterAny.([]*entity.Entity)
	if !ok {
		// A resolvable but non-list value: spec §4.5 treats this as a
		// logged, skipped loop rather than an aborting error.
		log.Printf("engine: for each %q: value is not a list, skipping loop", n.Var)
		return false, nil, nil
	}
	for _, item := range list {
		scope.Set(n.Var, item)
		done, val, err := ev.execBlock(ctx, scope, n.Body)
		if err != nil {
			return false, nil, err
		}
		if done {
			return true, val, nil
		}
	}
	return false, nil, nil
}

// serializeReturn implements spec §4.5's Return handler: an Entity
// serializes via to_tree, a list of Entities serializes element-wise, a
// scalar Value renders to its raw storage form.
func serializeReturn(v any) any {
	switch t := v.(type) {
	case *entity.Entity:
		return t.ToTree()
	case []*entity.Entity:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			out = append(out, e.ToTree())
		}
		return out
	case value.Value:
		return t.Raw()
	default:
		return v
	}
}
