package entity

import (
	"context"
	"crypto/rand"
	"sync/atomic"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/value"
)

func itemDef() *schema.EntityDef {
	precision, scale := 10, 2
	return &schema.EntityDef{
		Name:       "Item",
		FieldOrder: []string{"id", "name", "price"},
		Fields: map[string]*schema.FieldDef{
			"id":    {Name: "id", Kind: value.KindNumber, Primary: true},
			"name":  {Name: "name", Kind: value.KindString},
			"price": {Name: "price", Kind: value.KindNumber, Precision: &precision, Scale: &scale},
		},
		Relations: []schema.RelationDecl{{FieldName: "tags", Target: "Tag"}},
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	e := New(itemDef(), map[string]any{"id": "1", "name": "Sword", "price": "9.99"})

	name, err := e.Get("name")
	require.NoError(t, err)
	require.Equal(t, "Sword", name.AsString())

	newName, err := value.NewString("Shield", nil)
	require.NoError(t, err)
	require.NoError(t, e.Set("name", newName))
	require.True(t, e.Dirty())

	got, err := e.Get("name")
	require.NoError(t, err)
	require.Equal(t, "Shield", got.AsString())
}

func TestSetPrimaryRejected(t *testing.T) {
	e := New(itemDef(), map[string]any{"id": "1"})
	idVal, err := value.NewNumber("2", nil, nil)
	require.NoError(t, err)
	require.Error(t, e.Set("id", idVal))
}

func TestRelatedFetchesOnce(t *testing.T) {
	e := New(itemDef(), map[string]any{"id": "1"})
	var calls int32
	e.RegisterRelationLoader("tags", func(ctx context.Context) ([]*Entity, error) {
		atomic.AddInt32(&calls, 1)
		return []*Entity{New(itemDef(), map[string]any{"id": "9"})}, nil
	})

	list1, err := e.Related(context.Background(), "tags")
	require.NoError(t, err)
	list2, err := e.Related(context.Background(), "tags")
	require.NoError(t, err)

	require.Len(t, list1, 1)
	require.Same(t, list1[0], list2[0])
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestToTreeOmitsUnresolvedRelations(t *testing.T) {
	e := New(itemDef(), map[string]any{"id": "1", "name": "Sword"})
	e.RegisterRelationLoader("tags", func(ctx context.Context) ([]*Entity, error) {
		return nil, nil
	})

	tree := e.ToTree()
	_, present := tree["tags"]
	require.False(t, present, "unresolved relation must not appear in ToTree")

	_, err := e.Related(context.Background(), "tags")
	require.NoError(t, err)

	tree = e.ToTree()
	_, present = tree["tags"]
	require.True(t, present, "resolved relation must appear in ToTree")
}

func stringPKDef() *schema.EntityDef {
	return &schema.EntityDef{
		Name:       "Token",
		FieldOrder: []string{"id"},
		Fields: map[string]*schema.FieldDef{
			"id": {Name: "id", Kind: value.KindString, Primary: true},
		},
	}
}

func TestDefaultsForGeneratesULIDForStringPK(t *testing.T) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	raw := DefaultsFor(stringPKDef(), entropy)
	require.NotEmpty(t, raw["id"])
}

func TestDefaultsForLeavesNumberPKUnset(t *testing.T) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	raw := DefaultsFor(itemDef(), entropy)
	_, present := raw["id"]
	require.False(t, present)
}
