package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ip(n int) *int { return &n }

func TestNumberCanonicalScale(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		scale *int
		want  string
	}{
		{"padded to scale", "100.5", ip(2), "100.50"},
		{"no scale minimal", "100.500", nil, "100.5"},
		{"integer no scale", "42", nil, "42"},
		{"zero scale", "3.00", ip(0), "3"},
		{"negative", "-10.4", ip(2), "-10.40"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := NewNumber(tc.text, nil, tc.scale)
			require.NoError(t, err)
			require.Equal(t, tc.want, v.AsNumberText())
		})
	}
}

func TestNumberScaleViolation(t *testing.T) {
	_, err := NewNumber("1.234", nil, ip(2))
	require.Error(t, err)
}

func TestNumberPrecisionViolation(t *testing.T) {
	precision, scale := 4, 2
	_, err := NewNumber("123.45", &precision, &scale)
	require.Error(t, err)

	_, err = NewNumber("12.34", &precision, &scale)
	require.NoError(t, err)
}

func TestNumberArithmeticExactScale(t *testing.T) {
	precision, scale := 10, 2
	a, err := NewNumber("10.50", &precision, &scale)
	require.NoError(t, err)
	b, err := NewNumber("20.00", &precision, &scale)
	require.NoError(t, err)
	c, err := NewNumber("5.50", &precision, &scale)
	require.NoError(t, err)

	sum, err := Add(a, b)
	require.NoError(t, err)
	sum, err = Add(sum, c)
	require.NoError(t, err)
	require.Equal(t, "36.00", sum.AsNumberText())
}

func TestNumberMultiplicationExactScale(t *testing.T) {
	precision, scale := 10, 2
	a, err := NewNumber("2.50", &precision, &scale)
	require.NoError(t, err)
	b, err := NewNumber("2.50", &precision, &scale)
	require.NoError(t, err)

	product, err := Mul(a, b)
	require.NoError(t, err)
	require.Equal(t, "6.25", product.AsNumberText())
}

func TestNumberMultiplicationTrimsBeforeCapCheck(t *testing.T) {
	scale := 2
	cases := []struct {
		a, b, want string
	}{
		{"0.50", "0.50", "0.25"},
		{"1.50", "2.00", "3.00"},
		{"10.50", "3.00", "31.50"},
	}
	for _, tc := range cases {
		a, err := NewNumber(tc.a, nil, &scale)
		require.NoError(t, err)
		b, err := NewNumber(tc.b, nil, &scale)
		require.NoError(t, err)
		product, err := Mul(a, b)
		require.NoError(t, err)
		require.Equal(t, tc.want, product.AsNumberText())
	}
}

func TestNumberMultiplicationExceedsScaleErrors(t *testing.T) {
	scale := 2
	a, err := NewNumber("1.111", nil, nil)
	require.NoError(t, err)
	b, err := NewNumber("1.00", nil, &scale)
	require.NoError(t, err)

	// Left operand's cap governs the result (spec §4.1); a genuinely
	// non-trimmable extra fractional digit must still error.
	_, err = Mul(b, a)
	require.Error(t, err)
}

func TestNumberDivisionByZero(t *testing.T) {
	a, err := NewNumber("10", nil, nil)
	require.NoError(t, err)
	z, err := NewNumber("0", nil, nil)
	require.NoError(t, err)
	_, err = Div(a, z)
	require.Error(t, err)
}

func TestNumberDivisionExactAtScale(t *testing.T) {
	scale := 2
	a, err := NewNumber("100.00", nil, &scale)
	require.NoError(t, err)
	b, err := NewNumber("4", nil, nil)
	require.NoError(t, err)
	q, err := Div(a, b)
	require.NoError(t, err)
	require.Equal(t, "25.00", q.AsNumberText())
}

func TestNumberDivisionNonTerminatingErrors(t *testing.T) {
	scale := 2
	a, err := NewNumber("10.00", nil, &scale)
	require.NoError(t, err)
	b, err := NewNumber("3", nil, nil)
	require.NoError(t, err)
	_, err = Div(a, b)
	require.Error(t, err)
}

func TestNumberRoundHalfUp(t *testing.T) {
	a, err := NewNumber("1.005", nil, nil)
	require.NoError(t, err)
	r, err := Round(a, 2)
	require.NoError(t, err)
	require.Equal(t, "1.01", r.AsNumberText())

	neg, err := NewNumber("-1.005", nil, nil)
	require.NoError(t, err)
	rn, err := Round(neg, 2)
	require.NoError(t, err)
	require.Equal(t, "-1.01", rn.AsNumberText())
}

func TestNumberComparison(t *testing.T) {
	a, err := NewNumber("10.5", nil, nil)
	require.NoError(t, err)
	b, err := NewNumber("10.50", nil, nil)
	require.NoError(t, err)
	eq, err := Eq(a, b)
	require.NoError(t, err)
	require.True(t, eq)

	c, err := NewNumber("11", nil, nil)
	require.NoError(t, err)
	gt, err := Gt(c, a)
	require.NoError(t, err)
	require.True(t, gt)
}

func TestNumberRoundTripThroughRaw(t *testing.T) {
	scale := 2
	a, err := NewNumber("36.00", nil, &scale)
	require.NoError(t, err)
	raw := a.Raw()
	b, err := FromRaw(KindNumber, raw, nil, &scale, nil)
	require.NoError(t, err)
	require.Equal(t, a.AsNumberText(), b.AsNumberText())
}
