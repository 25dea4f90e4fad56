//go:build integration

package pgadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalita-labs/truss/internal/schema"
)

// TestPostgresOrphanTriggerDeletesOrphan covers spec §8 Testable Property 3
// against a live server: unlinking a Student's last owning Class relation
// row must fire the synthesized trigger and delete the now-orphaned Student
// row, not merely leave a schema.TriggerSpec sitting unused.
func TestPostgresOrphanTriggerDeletesOrphan(t *testing.T) {
	url := startPostgres(t)
	ad := New(url)
	require.NoError(t, ad.Init(context.Background()))
	defer ad.Close(context.Background())

	class := &schema.EntityDef{
		Name:       "Class",
		FieldOrder: []string{"id"},
		Fields:     map[string]*schema.FieldDef{"id": {Name: "id", Primary: true, NotNull: true}},
	}
	student := &schema.EntityDef{
		Name:       "Student",
		FieldOrder: []string{"id"},
		Fields:     map[string]*schema.FieldDef{"id": {Name: "id", Primary: true, NotNull: true}},
	}
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
	require.Nil(t, row, "orphaned student row should have been removed by the trigger")
}
