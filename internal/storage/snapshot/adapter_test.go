package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalita-labs/truss/internal/schema"
)

func classStudentSchemas() (*schema.EntityDef, *schema.EntityDef) {
	class := &schema.EntityDef{
		Name:       "Class",
		FieldOrder: []string{"id"},
		Fields:     map[string]*schema.FieldDef{"id": {Name: "id", Primary: true}},
	}
	student := &schema.EntityDef{
		Name:       "Student",
		FieldOrder: []string{"id"},
		Fields:     map[string]*schema.FieldDef{"id": {Name: "id", Primary: true}},
		Owners:     []string{"Class"},
	}
	return class, student
}

func TestSnapshotEnsureTableIdempotent(t *testing.T) {
	ad := New()
	require.NoError(t, ad.Init(context.Background()))
	class, _ := classStudentSchemas()
	require.NoError(t, ad.EnsureTable(context.Background(), class))
	require.NoError(t, ad.EnsureTable(context.Background(), class))
}

// TestSnapshotOrphanGCIsNotAvailable pins down spec §4.3's explicit carve-out:
// the snapshot back end's EnsureOrphanTrigger is a documented no-op, so
// unlinking the last owner relation never deletes the target row (unlike
// the relational back end's real trigger, exercised in
// storage/pgadapter's gated container test).
func TestSnapshotOrphanGCIsNotAvailable(t *testing.T) {
	ad := New()
	require.NoError(t, ad.Init(context.Background()))
	class, student := classStudentSchemas()
	require.NoError(t, ad.EnsureTable(context.Background(), class))
	require.NoError(t, ad.EnsureTable(context.Background(), student))
	require.NoError(t, ad.EnsureRelationTable(context.Background(), "Class", "Student", "class_id", "student_id"))
	require.NoError(t, ad.EnsureOrphanTrigger(context.Background(), schema.TriggerSpec{
		Name:          "orphan_student_via_class_student",
		TargetEntity:  "Student",
		TargetPK:      "id",
		TriggerTable:  "class_student",
		TriggerTarget: "student_id",
		Checks:        []schema.TriggerCheck{{Table: "class_student", Column: "student_id"}},
	}))

	require.NoError(t, ad.Insert(context.Background(), "Class", map[string]any{"id": "201"}))
	require.NoError(t, ad.Insert(context.Background(), "Student", map[string]any{"id": "201"}))
	require.NoError(t, ad.LinkRelation(context.Background(), "class_student", "class_id", "201", "student_id", "201"))

	require.NoError(t, ad.UnlinkRelation(context.Background(), "class_student", "class_id", "201", "student_id", "201"))

	row, err := ad.FindOne(context.Background(), "Student", map[string]any{"id": "201"})
	require.NoError(t, err)
	require.NotNil(t, row, "snapshot back end has no orphan GC; the row must still exist")
}

func TestSnapshotTransactionRollbackLeavesParentUnchanged(t *testing.T) {
	ad := New()
	require.NoError(t, ad.Init(context.Background()))
	class, _ := classStudentSchemas()
	require.NoError(t, ad.EnsureTable(context.Background(), class))
	require.NoError(t, ad.Insert(context.Background(), "Class", map[string]any{"id": "1"}))

	tx, err := ad.BeginTransaction(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Update(context.Background(), "Class", map[string]any{"id": "1"}, map[string]any{"id": "1", "extra": "changed"}))
	require.NoError(t, tx.Rollback(context.Background()))

	row, err := ad.FindOne(context.Background(), "Class", map[string]any{"id": "1"})
	require.NoError(t, err)
	_, present := row["extra"]
	require.False(t, present, "rollback must not affect the parent document")
}

func TestSnapshotTransactionCommitAppliesChanges(t *testing.T) {
	ad := New()
	require.NoError(t, ad.Init(context.Background()))
	class, _ := classStudentSchemas()
	require.NoError(t, ad.EnsureTable(context.Background(), class))
	require.NoError(t, ad.Insert(context.Background(), "Class", map[string]any{"id": "1"}))

	tx, err := ad.BeginTransaction(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Update(context.Background(), "Class", map[string]any{"id": "1"}, map[string]any{"id": "1", "extra": "changed"}))
	require.NoError(t, tx.Commit(context.Background()))

	row, err := ad.FindOne(context.Background(), "Class", map[string]any{"id": "1"})
	require.NoError(t, err)
	require.Equal(t, "changed", row["extra"])
}
