package snapshot

import (
	"context"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/storage"
)

// txScope is a shadow-copy transaction: BeginTransaction deep-copies the
// live document into an isolated Adapter; Commit swaps the shadow back into
// the parent under lock, Rollback just discards it. Grounded on the
// teacher's always-live Storage generalized into "mutate a copy, swap on
// commit" per spec §4.3 (see DESIGN.md).
type txScope struct {
	parent *Adapter
	shadow *Adapter
}

var _ storage.Transaction = (*txScope)(nil)

func (a *Adapter) BeginTransaction(ctx context.Context) (storage.Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	shadow := &Adapter{d: a.d.clone()}
	return &txScope{parent: a, shadow: shadow}, nil
}

func (t *txScope) Init(ctx context.Context) error  { return nil }
func (t *txScope) Close(ctx context.Context) error { return nil }

func (t *txScope) EnsureTable(ctx context.Context, def *schema.EntityDef) error {
	return t.shadow.EnsureTable(ctx, def)
}

func (t *txScope) EnsureRelationTable(ctx context.Context, e1, e2, pk1, pk2 string) error {
	return t.shadow.EnsureRelationTable(ctx, e1, e2, pk1, pk2)
}

func (t *txScope) EnsureOrphanTrigger(ctx context.Context, spec schema.TriggerSpec) error {
	return t.shadow.EnsureOrphanTrigger(ctx, spec)
}

func (t *txScope) FindOne(ctx context.Context, table string, criteria map[string]any) (map[string]any, error) {
	return t.shadow.FindOne(ctx, table, criteria)
}

func (t *txScope) Find(ctx context.Context, table string, criteria map[string]any) ([]map[string]any, error) {
	return t.shadow.Find(ctx, table, criteria)
}

func (t *txScope) Insert(ctx context.Context, table string, row map[string]any) error {
	return t.shadow.Insert(ctx, table, row)
}

func (t *txScope) Update(ctx context.Context, table string, pkCriteria, updates map[string]any) error {
	return t.shadow.Update(ctx, table, pkCriteria, updates)
}

func (t *txScope) Delete(ctx context.Context, table string, pkCriteria map[string]any) error {
	return t.shadow.Delete(ctx, table, pkCriteria)
}

func (t *txScope) LinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error {
	return t.shadow.LinkRelation(ctx, table, col1, val1, col2, val2)
}

func (t *txScope) UnlinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error {
	return t.shadow.UnlinkRelation(ctx, table, col1, val1, col2, val2)
}

func (t *txScope) RelatedRows(ctx context.Context, table, matchCol string, matchVal any, otherCol string) ([]any, error) {
	return t.shadow.RelatedRows(ctx, table, matchCol, matchVal, otherCol)
}

func (t *txScope) BeginTransaction(ctx context.Context) (storage.Transaction, error) {
	return nil, errs.New(errs.Transaction, "nested transactions are not supported")
}

// Commit swaps the shadow document back into the parent under lock — the
// only moment the parent's live state changes.
func (t *txScope) Commit(ctx context.Context) error {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	t.parent.d = t.shadow.d
	return nil
}

// Rollback discards the shadow; the parent was never touched.
func (t *txScope) Rollback(ctx context.Context) error {
	return nil
}
