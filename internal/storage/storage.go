// Package storage defines the Storage Adapter contract (spec §4.3): a
// backend-agnostic surface the entity runtime and DSL evaluator drive
// without knowing whether rows live in Postgres or a JSON snapshot.
//
// Grounded on leandroluk-golem's core/driver.go Driver/Transaction split,
// adapted from that repo's reflection-based generic ORM driver down to this
// spec's concrete row/raw-map contract (see DESIGN.md).
package storage

import (
	"context"

	"github.com/kalita-labs/truss/internal/schema"
)

// Adapter is the backend-agnostic storage surface (spec §4.3).
type Adapter interface {
	Init(ctx context.Context) error
	Close(ctx context.Context) error

	EnsureTable(ctx context.Context, def *schema.EntityDef) error
	EnsureRelationTable(ctx context.Context, e1, e2, pk1, pk2 string) error
	EnsureOrphanTrigger(ctx context.Context, spec schema.TriggerSpec) error

	FindOne(ctx context.Context, table string, criteria map[string]any) (map[string]any, error)
	Find(ctx context.Context, table string, criteria map[string]any) ([]map[string]any, error)
	Insert(ctx context.Context, table string, row map[string]any) error
	Update(ctx context.Context, table string, pkCriteria, updates map[string]any) error
	Delete(ctx context.Context, table string, pkCriteria map[string]any) error

	// LinkRelation/UnlinkRelation/RelatedRows manage junction-table rows for
	// List[Target] fields (spec §4.2/§4.3 lazy relation loading).
	LinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error
	UnlinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error
	RelatedRows(ctx context.Context, table, matchCol string, matchVal any, otherCol string) ([]any, error)

	BeginTransaction(ctx context.Context) (Transaction, error)
}

// Transaction is an Adapter scoped to one open transaction (spec §4.3,
// §4.6: "every procedure call runs inside exactly one transaction").
type Transaction interface {
	Adapter
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
