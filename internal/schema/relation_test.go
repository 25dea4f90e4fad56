package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRelationOrderIndependence covers spec §8 Testable Property 6:
// Registry.Relation("Post", "Tag") and Registry.Relation("Tag", "Post") must
// name the same physical junction table and agree on which column belongs
// to which side, regardless of which entity name sorts first alphabetically
// when synthesizeRelations picks the table/column names.
func TestRelationOrderIndependence(t *testing.T) {
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

	require.Len(t, ad.relations, 1) // one physical junction table

	postToTag, ok := reg.Relation("Post", "Tag")
	require.True(t, ok)
	tagToPost, ok := reg.Relation("Tag", "Post")
	require.True(t, ok)
	require.Equal(t, postToTag.Table, tagToPost.Table)
	require.Equal(t, postToTag.SourceCol, tagToPost.TargetCol)
	require.Equal(t, postToTag.TargetCol, tagToPost.SourceCol)
}

// TestRelationOrderIndependenceReverseAlpha covers the same property in the
// direction where the declaring entity's name sorts after its target's
// (Product declares List[Cart]), so synthesizeRelations swaps the pair
// before naming the table — both orderings must still agree.
func TestRelationOrderIndependenceReverseAlpha(t *testing.T) {
	src := `
Cart {
  number:id [primary]
}

Product {
  number:id [primary]
  List[Cart]:carts
}
`
	reg, err := ParseSource(src)
	require.NoError(t, err)

	ad := newRecordingAdapter()
	require.NoError(t, reg.Synthesize(context.Background(), ad))

	cartToProduct, ok := reg.Relation("Cart", "Product")
	require.True(t, ok)
	productToCart, ok := reg.Relation("Product", "Cart")
	require.True(t, ok)
	require.Equal(t, cartToProduct.Table, productToCart.Table)
	require.Equal(t, cartToProduct.SourceCol, productToCart.TargetCol)
}
