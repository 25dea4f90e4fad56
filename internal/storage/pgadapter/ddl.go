package pgadapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/value"
)

// quoteIdent double-quotes an identifier. Every identifier pgadapter emits
// is quoted (spec.md §9's open question on this is deliberately NOT
// preserved — see DESIGN.md).
func quoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

// mapType maps a field's value.Kind to a Postgres column type. Decimals and
// datetimes are stored as text for exact round-trip fidelity (spec §4.1/§6:
// "no float64 anywhere on the persistence path"); bools are native boolean.
func mapType(fd *schema.FieldDef) string {
	switch fd.Kind {
	case value.KindNumber:
		return "text"
	case value.KindString:
		return "text"
	case value.KindBool:
		return "boolean"
	case value.KindDateTime:
		return "text"
	default:
		return "text"
	}
}

// applyDDL executes stmt, tolerating Postgres's 42710 (duplicate_object) so
// re-running Init against an already-provisioned database is a no-op.
// Grounded verbatim on the teacher's internal/pg/apply.go ApplyDDL.
func applyDDL(ctx context.Context, ex execer, stmt string) error {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil
	}
	if _, err := ex.ExecContext(ctx, stmt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42710" {
			log.Printf("DDL skipped (already exists): %s", strings.TrimSpace(pgErr.Message))
			return nil
		}
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "already exists") || strings.Contains(lower, "duplicate") {
			log.Printf("DDL skipped (already exists): %v", err)
			return nil
		}
		return errs.Wrap(errs.Storage, err, "applying DDL: %s", stmt)
	}
	return nil
}

// EnsureTable idempotently creates a table for def (spec §4.3): declared
// columns plus a composite primary-key clause (currently always a single
// column, since spec.md's grammar allows at most one [primary] field).
func (a *Adapter) EnsureTable(ctx context.Context, def *schema.EntityDef) error {
	return ensureTable(ctx, a.db, def)
}

func ensureTable(ctx context.Context, ex execer, def *schema.EntityDef) error {
	var cols []string
	var pkCols []string
	for _, name := range def.FieldOrder {
		fd := def.Fields[name]
		col := fmt.Sprintf("%s %s", quoteIdent(fd.Name), mapType(fd))
		if fd.NotNull {
			col += " not null"
		}
		cols = append(cols, col)
		if fd.Primary {
			pkCols = append(pkCols, quoteIdent(fd.Name))
		}
	}
	if len(pkCols) > 0 {
		cols = append(cols, fmt.Sprintf("primary key (%s)", strings.Join(pkCols, ", ")))
	}
	stmt := fmt.Sprintf("create table if not exists %s (\n  %s\n);", quoteIdent(def.Name), strings.Join(cols, ",\n  "))
	if err := applyDDL(ctx, ex, stmt); err != nil {
		return err
	}

	for _, name := range def.FieldOrder {
		fd := def.Fields[name]
		if fd.Unique && !fd.Primary {
			idxName := strings.ToLower(def.Name) + "_" + strings.ToLower(fd.Name) + "_uq"
			idx := fmt.Sprintf("create unique index if not exists %s on %s(%s);",
				quoteIdent(idxName), quoteIdent(def.Name), quoteIdent(fd.Name))
			if err := applyDDL(ctx, ex, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnsureRelationTable idempotently creates a many-to-many junction table
// (spec §4.3/§6): composite primary key on both id columns, a create_time
// default column, cascade-delete FKs to both parents, one index per column.
func (a *Adapter) EnsureRelationTable(ctx context.Context, e1, e2, col1, col2 string) error {
	return ensureRelationTable(ctx, a.db, e1, e2, col1, col2)
}

func ensureRelationTable(ctx context.Context, ex execer, e1, e2, col1, col2 string) error {
	table := strings.ToLower(e1) + "_" + strings.ToLower(e2)
	stmt := fmt.Sprintf(`create table if not exists %s (
  %s text not null references %s(%s) on delete cascade,
  %s text not null references %s(%s) on delete cascade,
  %s timestamp with time zone not null default now(),
  primary key (%s, %s)
);`,
		quoteIdent(table),
		quoteIdent(col1), quoteIdent(e1), pkColumnOf(col1, e1),
		quoteIdent(col2), quoteIdent(e2), pkColumnOf(col2, e2),
		quoteIdent("create_time"),
		quoteIdent(col1), quoteIdent(col2),
	)
	if err := applyDDL(ctx, ex, stmt); err != nil {
		return err
	}
	for _, col := range []string{col1, col2} {
		idxName := table + "_" + strings.ToLower(col) + "_idx"
		idx := fmt.Sprintf("create index if not exists %s on %s(%s);", quoteIdent(idxName), quoteIdent(table), quoteIdent(col))
		if err := applyDDL(ctx, ex, idx); err != nil {
			return err
		}
	}
	return nil
}

// pkColumnOf strips the "{entity_lower}_" prefix synthesize.go used to
// build a junction column name, recovering the referenced table's own
// primary-key column name for the foreign key clause.
func pkColumnOf(junctionCol, entity string) string {
	prefix := strings.ToLower(entity) + "_"
	return quoteIdent(strings.TrimPrefix(junctionCol, prefix))
}

// EnsureOrphanTrigger creates the AFTER DELETE trigger described in spec
// §4.4: after a junction row is deleted, if no owner junction table still
// references the target pk, the target row is deleted too. Named
// auto_gc_{target_lower}_from_{trigger_table} per spec §6.
func (a *Adapter) EnsureOrphanTrigger(ctx context.Context, spec schema.TriggerSpec) error {
	return ensureOrphanTrigger(ctx, a.db, spec)
}

func ensureOrphanTrigger(ctx context.Context, ex execer, spec schema.TriggerSpec) error {
	fnName := quoteIdent("fn_" + spec.Name)
	trgName := quoteIdent("auto_gc_" + strings.ToLower(spec.TargetEntity) + "_from_" + strings.ToLower(spec.TriggerTable))

	var checks []string
	for _, c := range spec.Checks {
		checks = append(checks, fmt.Sprintf(
			"not exists (select 1 from %s where %s = old.%s)",
			quoteIdent(c.Table), quoteIdent(c.Column), quoteIdent(spec.TriggerTarget),
		))
	}

	fn := fmt.Sprintf(`create or replace function %s() returns trigger as $$
begin
  if %s then
    delete from %s where %s = old.%s;
  end if;
  return old;
end;
$$ language plpgsql;`,
		fnName,
		strings.Join(checks, "\n     and "),
		quoteIdent(spec.TargetEntity), quoteIdent(spec.TargetPK), quoteIdent(spec.TriggerTarget),
	)
	if err := applyDDL(ctx, ex, fn); err != nil {
		return err
	}

	trg := fmt.Sprintf(`create trigger %s after delete on %s for each row execute function %s();`,
		trgName, quoteIdent(spec.TriggerTable), fnName)
	if err := applyDDL(ctx, ex, trg); err != nil {
		return err
	}
	return nil
}
