package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/storage/snapshot"
)

func newTestEngine(t *testing.T, schemaSource string) (*Engine, *schema.Registry, *snapshot.Adapter) {
	t.Helper()
	ctx := context.Background()
	reg, err := schema.ParseSource(schemaSource)
	require.NoError(t, err)
	ad := snapshot.New()
	require.NoError(t, ad.Init(ctx))
	require.NoError(t, reg.Synthesize(ctx, ad))
	return New(reg, ad), reg, ad
}

// TestS1CRUD covers spec §8 scenario S1: creating an Item then updating its
// price round-trips the decimal text form exactly.
func TestS1CRUD(t *testing.T) {
	e, _, _ := newTestEngine(t, `
Item {
    number:id [primary],
    str[50]:name,
    number[10.2]:price
}
`)
	require.NoError(t, e.Compile(`
CreateItem(number:id, str[50]:name, number:price):
    Create an Item with id of {id} and name of {name} and price of {price} as item
    return {item}

UpdatePrice(number:id, number:price):
    Get the Item by id of {id} as item
    Update the item to set price = {price}
    return {item}
`))

	ctx := context.Background()
	created, err := e.Call(ctx, "CreateItem", map[string]any{"id": "1", "name": "Sword", "price": "100.50"})
	require.NoError(t, err)
	row := created.(map[string]any)
	require.Equal(t, "100.50", row["price"])

	updated, err := e.Call(ctx, "UpdatePrice", map[string]any{"id": "1", "price": "150.00"})
	require.NoError(t, err)
	require.Equal(t, "150.00", updated.(map[string]any)["price"])
}

// TestS3IfElseFallthrough covers spec §8 scenario S3: sequential If checks
// with a final unconditional fallthrough return.
func TestS3IfElseFallthrough(t *testing.T) {
	e, _, _ := newTestEngine(t, ``)
	require.NoError(t, e.Compile(`
Classify(number:val):
    If {val} is greater than 10:
        return "High"
    If {val} is less than 5:
        return "Low"
    return "Medium"
`))

	ctx := context.Background()
	for val, want := range map[string]string{"20": "High", "2": "Low", "7": "Medium"} {
		got, err := e.Call(ctx, "Classify", map[string]any{"val": val})
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

// TestS4LazyRelations covers spec §8 scenario S4: GetUser omits the
// unresolved `posts` relation, while GetUserPosts resolves and returns both
// linked posts.
func TestS4LazyRelations(t *testing.T) {
	e, reg, ad := newTestEngine(t, `
User {
    number:id [primary],
    str[50]:name,
    List[Post]:posts
}
Post {
    number:id [primary],
    str[100]:title
}
`)
	require.NoError(t, e.Compile(`
SeedUser(number:id, str[50]:name):
    Create a User with id of {id} and name of {name} as user
    return {user}

SeedPost(number:id, str[100]:title):
    Create a Post with id of {id} and title of {title} as post
    return {post}

GetUser(number:id):
    Get the User by id of {id} as user
    return {user}

GetUserPosts(number:id):
    Get the User by id of {id} as user
    return {user.posts}
`))

	ctx := context.Background()
	_, err := e.Call(ctx, "SeedUser", map[string]any{"id": "1", "name": "Blogger"})
	require.NoError(t, err)
	_, err = e.Call(ctx, "SeedPost", map[string]any{"id": "101", "title": "First Post"})
	require.NoError(t, err)
	_, err = e.Call(ctx, "SeedPost", map[string]any{"id": "102", "title": "Second Post"})
	require.NoError(t, err)

	// Link the junction rows directly against the adapter — spec §8's S4
	// setup describes seeding junction rows, not a DSL relation-linking
	// statement (the grammar has none).
	info, ok := reg.Relation("User", "Post")
	require.True(t, ok)
	require.NoError(t, ad.LinkRelation(ctx, info.Table, info.SourceCol, "1", info.TargetCol, "101"))
	require.NoError(t, ad.LinkRelation(ctx, info.Table, info.SourceCol, "1", info.TargetCol, "102"))

	got, err := e.Call(ctx, "GetUser", map[string]any{"id": "1"})
	require.NoError(t, err)
	_, hasPosts := got.(map[string]any)["posts"]
	require.False(t, hasPosts, "GetUser must omit an unresolved relation")

	posts, err := e.Call(ctx, "GetUserPosts", map[string]any{"id": "1"})
	require.NoError(t, err)
	list := posts.([]map[string]any)
	require.Len(t, list, 2)
	titles := map[string]bool{list[0]["title"].(string): true, list[1]["title"].(string): true}
	require.True(t, titles["First Post"])
	require.True(t, titles["Second Post"])
}

// TestS7ForEachSum covers spec §8 scenario S7: a Cart's linked Products sum
// to an exact-scale total via ForEach accumulation.
func TestS7ForEachSum(t *testing.T) {
	e, reg, ad := newTestEngine(t, `
Cart {
    number:id [primary],
    number[10.2]:total(0.00),
    List[Product]:products
}
Product {
    number:id [primary],
    number[10.2]:price
}
`)
	require.NoError(t, e.Compile(`
SeedCart(number:id):
    Create a Cart with id of {id} as cart
    return {cart}

SeedProduct(number:id, number:price):
    Create a Product with id of {id} and price of {price} as product
    return {product}

CalculateTotal(number:cartId):
    Get the Cart by id of {cartId} as cart
    For Each product in {cart.products}:
        Update the cart to set total = {cart.total} + {product.price}
    return {cart.total}
`))

	ctx := context.Background()
	_, err := e.Call(ctx, "SeedCart", map[string]any{"id": "1"})
	require.NoError(t, err)
	_, err = e.Call(ctx, "SeedProduct", map[string]any{"id": "1", "price": "10.50"})
	require.NoError(t, err)
	_, err = e.Call(ctx, "SeedProduct", map[string]any{"id": "2", "price": "20.00"})
	require.NoError(t, err)
	_, err = e.Call(ctx, "SeedProduct", map[string]any{"id": "3", "price": "5.50"})
	require.NoError(t, err)

	info, ok := reg.Relation("Cart", "Product")
	require.True(t, ok)
	require.NoError(t, ad.LinkRelation(ctx, info.Table, info.SourceCol, "1", info.TargetCol, "1"))
	require.NoError(t, ad.LinkRelation(ctx, info.Table, info.SourceCol, "1", info.TargetCol, "2"))
	require.NoError(t, ad.LinkRelation(ctx, info.Table, info.SourceCol, "1", info.TargetCol, "3"))

	total, err := e.Call(ctx, "CalculateTotal", map[string]any{"cartId": "1"})
	require.NoError(t, err)
	require.Equal(t, "36.00", total)
}
