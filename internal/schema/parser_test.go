package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSingleLineEntity(t *testing.T) {
	src := `Item { number:id [primary], str[50]:name, number[10.2]:price }`
	reg, err := ParseSource(src)
	require.NoError(t, err)

	item, ok := reg.Entity("Item")
	require.True(t, ok)
	require.Len(t, item.FieldOrder, 3)
	require.True(t, item.Fields["id"].Primary)
	require.Equal(t, 50, *item.Fields["name"].MaxLen)
	require.Equal(t, 10, *item.Fields["price"].Precision)
	require.Equal(t, 2, *item.Fields["price"].Scale)
}

func TestParseMultiLineEntityWithRelation(t *testing.T) {
	src := `
Post {
  number:id [primary]
  str[200]:title
  List[Tag]:tags
}

Tag {
  number:id [primary]
  str[30]:name [unique]
}
`
	reg, err := ParseSource(src)
	require.NoError(t, err)

	post, ok := reg.Entity("Post")
	require.True(t, ok)
	require.Len(t, post.Relations, 1)
	require.Equal(t, "Tag", post.Relations[0].Target)

	tag, ok := reg.Entity("Tag")
	require.True(t, ok)
	require.True(t, tag.Fields["name"].Unique)
}

func TestParseOwnedEntity(t *testing.T) {
	src := `
Class {
  number:id [primary]
  str[100]:name
  List[Student]:students
}

Student (Class) {
  number:id [primary]
  str[100]:name
}
`
	reg, err := ParseSource(src)
	require.NoError(t, err)
	student, ok := reg.Entity("Student")
	require.True(t, ok)
	require.True(t, student.IsOwned)
	require.Equal(t, []string{"Class"}, student.Owners)
}

func TestParseSkipsProcedureBlocks(t *testing.T) {
	src := `
Item { number:id [primary], str[50]:name }

GetItem(id):
  Get an item by id of {id} as it
  return it
`
	reg, err := ParseSource(src)
	require.NoError(t, err)
	require.Len(t, reg.Entities, 1)
}

func TestParseRejectsMultiplePrimary(t *testing.T) {
	src := `Item { number:id [primary], number:other [primary] }`
	_, err := ParseSource(src)
	require.Error(t, err)
}

func TestParseRejectsUnknownRelationTarget(t *testing.T) {
	src := `Post { number:id [primary], List[Ghost]:ghosts }`
	_, err := ParseSource(src)
	require.Error(t, err)
}

func TestParseIgnoresComments(t *testing.T) {
	src := `
# a comment
Item {
  // another comment
  number:id [primary]
}
`
	reg, err := ParseSource(src)
	require.NoError(t, err)
	require.Len(t, reg.Entities, 1)
}
