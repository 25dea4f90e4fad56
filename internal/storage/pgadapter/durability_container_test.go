//go:build integration

package pgadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalita-labs/truss/internal/schema"
)

// TestPostgresDurabilityAcrossConnections covers spec §8 Testable Property
// 5: a row committed through one Adapter must still be readable through an
// entirely separate Adapter connected later against the same database — the
// property a snapshot adapter (all state in one process's memory) cannot
// demonstrate at all, which is why this test exists only here.
func TestPostgresDurabilityAcrossConnections(t *testing.T) {
	url := startPostgres(t)

	writer := New(url)
	require.NoError(t, writer.Init(context.Background()))

	item := &schema.EntityDef{
		Name:       "Item",
		FieldOrder: []string{"id", "name"},
		Fields: map[string]*schema.FieldDef{
			"id":   {Name: "id", RawType: "number", Primary: true, NotNull: true},
			"name": {Name: "name", RawType: "str"},
		},
	}
	require.NoError(t, writer.EnsureTable(context.Background(), item))
	require.NoError(t, writer.Insert(context.Background(), "Item", map[string]any{"id": "301", "name": "Shield"}))
	require.NoError(t, writer.Close(context.Background()))

	reader := New(url)
	require.NoError(t, reader.Init(context.Background()))
	defer reader.Close(context.Background())

	row, err := reader.FindOne(context.Background(), "Item", map[string]any{"id": "301"})
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "Shield", row["name"])
}
