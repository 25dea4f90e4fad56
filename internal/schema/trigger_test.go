package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOrphanTriggerChecksAllOwners covers spec §8 Testable Property 3
// (the schema-synthesis half): an entity owned by more than one parent gets
// one TriggerSpec per owner, and every spec checks ALL owner junction
// tables, not just the one whose delete fired it — an orphan-GC trigger
// must not remove a Student who lost their Class link but still has a Club
// link.
func TestOrphanTriggerChecksAllOwners(t *testing.T) {
	src := `
Class {
  number:id [primary]
  List[Student]:students
}

Club {
  number:id [primary]
  List[Student]:members
}

Student (Class, Club) {
  number:id [primary]
}
`
	reg, err := ParseSource(src)
	require.NoError(t, err)

	ad := newRecordingAdapter()
	require.NoError(t, reg.Synthesize(context.Background(), ad))

	require.Len(t, ad.triggers, 2) // one per owner relation
	for _, tr := range ad.triggers {
		require.Equal(t, "Student", tr.TargetEntity)
		require.Len(t, tr.Checks, 2) // both owner junction tables checked every time
	}
}

// TestOrphanTriggerSkipsUnownedEntities covers the negative case: an entity
// with no owners in its header gets no TriggerSpec at all.
func TestOrphanTriggerSkipsUnownedEntities(t *testing.T) {
	src := `
Tag {
  number:id [primary]
}
`
	reg, err := ParseSource(src)
	require.NoError(t, err)

	ad := newRecordingAdapter()
	require.NoError(t, reg.Synthesize(context.Background(), ad))

	require.Empty(t, ad.triggers)
}
