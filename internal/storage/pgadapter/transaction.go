package pgadapter

import (
	"context"
	"database/sql"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/storage"
)

// transaction wraps *sql.Tx to satisfy storage.Transaction. Opened at
// serializable isolation, the "strictest isolation mode" spec §4.3 calls
// for. Shaped after leandroluk-golem's postgresTransaction wrapping a
// pgx.Tx (see DESIGN.md) — the underlying handle here is *sql.Tx because
// the teacher uses database/sql, not pgxpool.
type transaction struct {
	tx *sql.Tx
}

var _ storage.Transaction = (*transaction)(nil)

// BeginTransaction opens a new serializable transaction. Nested
// transactions are the engine's responsibility to reject (spec §5: "nested
// begin fails with a distinct error kind"); this adapter always opens a
// fresh top-level transaction against the pool.
func (a *Adapter) BeginTransaction(ctx context.Context) (storage.Transaction, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, errs.Wrap(errs.Storage, err, "beginning transaction")
	}
	return &transaction{tx: tx}, nil
}

func (t *transaction) Init(ctx context.Context) error { return nil }
func (t *transaction) Close(ctx context.Context) error { return nil }

func (t *transaction) EnsureTable(ctx context.Context, def *schema.EntityDef) error {
	return ensureTable(ctx, t.tx, def)
}

func (t *transaction) EnsureRelationTable(ctx context.Context, e1, e2, pk1, pk2 string) error {
	return ensureRelationTable(ctx, t.tx, e1, e2, pk1, pk2)
}

func (t *transaction) EnsureOrphanTrigger(ctx context.Context, spec schema.TriggerSpec) error {
	return ensureOrphanTrigger(ctx, t.tx, spec)
}

func (t *transaction) FindOne(ctx context.Context, table string, criteria map[string]any) (map[string]any, error) {
	return findOne(ctx, t.tx, table, criteria)
}

func (t *transaction) Find(ctx context.Context, table string, criteria map[string]any) ([]map[string]any, error) {
	return findRows(ctx, t.tx, table, criteria)
}

func (t *transaction) Insert(ctx context.Context, table string, row map[string]any) error {
	return insert(ctx, t.tx, table, row)
}

func (t *transaction) Update(ctx context.Context, table string, pkCriteria, updates map[string]any) error {
	return update(ctx, t.tx, table, pkCriteria, updates)
}

func (t *transaction) Delete(ctx context.Context, table string, pkCriteria map[string]any) error {
	return deleteRows(ctx, t.tx, table, pkCriteria)
}

func (t *transaction) LinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error {
	return insert(ctx, t.tx, table, map[string]any{col1: val1, col2: val2})
}

func (t *transaction) UnlinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error {
	return deleteRows(ctx, t.tx, table, map[string]any{col1: val1, col2: val2})
}

func (t *transaction) RelatedRows(ctx context.Context, table, matchCol string, matchVal any, otherCol string) ([]any, error) {
	return relatedRows(ctx, t.tx, table, matchCol, matchVal, otherCol)
}

func (t *transaction) BeginTransaction(ctx context.Context) (storage.Transaction, error) {
	return nil, errs.New(errs.Transaction, "nested transactions are not supported")
}

func (t *transaction) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return errs.Wrap(errs.Transaction, err, "commit failed")
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return errs.Wrap(errs.Transaction, err, "rollback failed")
	}
	return nil
}
