package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingAdapter is a minimal fake satisfying the local `adapter`
// interface, recording every call so tests can assert idempotence,
// relation-table naming, and trigger shape without depending on any
// concrete storage backend. Shared by relation_test.go and trigger_test.go.
type recordingAdapter struct {
	tables       []string
	relations    [][2]string
	triggers     []TriggerSpec
	failOnRepeat bool
	seenTables   map[string]bool
}

func newRecordingAdapter() *recordingAdapter {
	return &recordingAdapter{seenTables: map[string]bool{}}
}

func (a *recordingAdapter) EnsureTable(ctx context.Context, def *EntityDef) error {
	a.tables = append(a.tables, def.Name)
	return nil
}

func (a *recordingAdapter) EnsureRelationTable(ctx context.Context, e1, e2, pk1, pk2 string) error {
	a.relations = append(a.relations, [2]string{e1, e2})
	return nil
}

func (a *recordingAdapter) EnsureOrphanTrigger(ctx context.Context, spec TriggerSpec) error {
	a.triggers = append(a.triggers, spec)
	return nil
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	src := `
Post {
  number:id [primary]
  List[Tag]:tags
}

Tag {
  number:id [primary]
}
`
	reg, err := ParseSource(src)
	require.NoError(t, err)

	ad := newRecordingAdapter()
	require.NoError(t, reg.Synthesize(context.Background(), ad))
	require.NoError(t, reg.Synthesize(context.Background(), ad))
}
