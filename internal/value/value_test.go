package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStringMaxLength(t *testing.T) {
	maxLen := 3
	_, err := NewString("abcd", &maxLen)
	require.Error(t, err)

	v, err := NewString("abc", &maxLen)
	require.NoError(t, err)
	require.Equal(t, "abc", v.AsString())
}

func TestStringConcat(t *testing.T) {
	a, err := NewString("Sword of ", nil)
	require.NoError(t, err)
	b, err := NewString("Truth", nil)
	require.NoError(t, err)
	sum, err := Add(a, b)
	require.NoError(t, err)
	require.Equal(t, "Sword of Truth", sum.AsString())
}

func TestBoolOps(t *testing.T) {
	tru := NewBool(true)
	fls := NewBool(false)

	and, err := And(tru, fls)
	require.NoError(t, err)
	require.False(t, and.AsBool())

	or, err := Or(tru, fls)
	require.NoError(t, err)
	require.True(t, or.AsBool())

	not, err := Not(tru)
	require.NoError(t, err)
	require.False(t, not.AsBool())
}

func TestDateTimeComparison(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(time.Hour)

	a := NewDateTime(now)
	b := NewDateTime(later)

	lt, err := Lt(a, b)
	require.NoError(t, err)
	require.True(t, lt)

	gt, err := Gt(b, a)
	require.NoError(t, err)
	require.True(t, gt)
}

func TestRawScalarWrapping(t *testing.T) {
	// Comparing a typed Number to a raw string wraps the raw side using
	// the typed side's kind (spec §4.1).
	a, err := NewNumber("10", nil, nil)
	require.NoError(t, err)
	raw, err := NewString("10", nil)
	require.NoError(t, err)
	eq, err := Eq(a, raw)
	require.NoError(t, err)
	require.True(t, eq)
}
