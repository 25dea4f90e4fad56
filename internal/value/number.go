package value

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/kalita-labs/truss/internal/errs"
)

// number is the internal fixed-point representation: the decimal value
// equals unscaled * 10^-scale. precision/scale are the field-level caps
// (nil = uncapped) carried so later arithmetic on the same Value keeps
// re-validating against them (spec §3: "Number(decimal, precision?, scale?)").
//
// math/big.Int (stdlib) is used instead of float64 because the engine must
// round-trip exact decimals bit-for-bit (spec §8 property 1); no library in
// the retrieval pack depends on an arbitrary-precision decimal type (see
// DESIGN.md), so this is hand-rolled on math/big rather than borrowed.
type number struct {
	unscaled  *big.Int
	scale     int
	precision *int
	scaleCap  *int
}

const maxDivisionScale = 60

// NewNumber parses text (an optionally-signed decimal literal) into a Number,
// validating it against precision/scale caps immediately (spec §3).
func NewNumber(text string, precision, scale *int) (Value, error) {
	n, err := parseNumber(text)
	if err != nil {
		return Value{}, errs.Wrap(errs.Validation, err, "invalid number literal %q", text)
	}
	n.precision = precision
	n.scaleCap = scale
	if err := n.applyCaps(); err != nil {
		return Value{}, err
	}
	return Value{kind: KindNumber, num: n}, nil
}

func parseNumber(text string) (*number, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, fmt.Errorf("empty number")
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart, hasFrac := s, "", false
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
		hasFrac = true
	}
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && fracPart == "" {
		return nil, fmt.Errorf("trailing decimal point")
	}
	digits := intPart + fracPart
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("non-digit character %q", r)
		}
	}
	unscaled, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("malformed digits")
	}
	if neg {
		unscaled.Neg(unscaled)
	}
	return &number{unscaled: unscaled, scale: len(fracPart)}, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// rescaledTo returns a copy scaled to newScale (must be >= current scale, which
// is always true for the call sites here: caps only ever widen the scale).
func (n *number) rescaledTo(newScale int) *big.Int {
	if newScale == n.scale {
		return new(big.Int).Set(n.unscaled)
	}
	diff := newScale - n.scale
	if diff > 0 {
		return new(big.Int).Mul(n.unscaled, pow10(diff))
	}
	// shrinking only happens for minimal-representation trimming, handled
	// by trimTrailingZeros, never here.
	return new(big.Int).Quo(n.unscaled, pow10(-diff))
}

// applyCaps enforces the scale cap (fractional-digit limit) and precision
// cap (total significant-digit limit), normalizing the canonical scale when
// a scale cap is set (spec §4.1: "canonical text form is exactly that many
// fractional digits, zero-padded").
func (n *number) applyCaps() error {
	if n.scaleCap != nil {
		// Trim to the minimal fractional-digit count first: a product's raw
		// scale is additive (e.g. two scale-2 operands multiply to scale 4)
		// even though trailing zeros in that result may bring it back within
		// the cap once trimmed (2.50*2.50 = 6.2500 -> 6.25).
		n.trimTrailingZeros()
		if n.scale > *n.scaleCap {
			return errs.New(errs.Validation, "value has %d fractional digits, exceeds scale %d", n.scale, *n.scaleCap)
		}
		n.unscaled = n.rescaledTo(*n.scaleCap)
		n.scale = *n.scaleCap
	} else {
		n.trimTrailingZeros()
	}
	if n.precision != nil {
		limit := pow10(*n.precision)
		abs := new(big.Int).Abs(n.unscaled)
		if abs.Cmp(limit) >= 0 {
			return errs.New(errs.Validation, "value magnitude exceeds precision %d (scale %d)", *n.precision, n.scale)
		}
	}
	return nil
}

// trimTrailingZeros reduces scale to the minimal representation of the
// exact value when no scale cap pins it down (spec §4.1).
func (n *number) trimTrailingZeros() {
	if n.unscaled.Sign() == 0 {
		n.scale = 0
		return
	}
	ten := big.NewInt(10)
	for n.scale > 0 {
		q, r := new(big.Int).QuoRem(n.unscaled, ten, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		n.unscaled = q
		n.scale--
	}
}

func (n *number) clone() *number {
	return &number{
		unscaled:  new(big.Int).Set(n.unscaled),
		scale:     n.scale,
		precision: n.precision,
		scaleCap:  n.scaleCap,
	}
}

// Canonical renders the decimal text form per spec §4.1.
func (n *number) Canonical() string {
	neg := n.unscaled.Sign() < 0
	abs := new(big.Int).Abs(n.unscaled)
	digits := abs.String()
	if n.scale == 0 {
		if neg && abs.Sign() != 0 {
			return "-" + digits
		}
		return digits
	}
	for len(digits) <= n.scale {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-n.scale]
	fracPart := digits[len(digits)-n.scale:]
	out := intPart + "." + fracPart
	if neg && abs.Sign() != 0 {
		out = "-" + out
	}
	return out
}

func alignScales(a, b *number) (ua, ub *big.Int, scale int) {
	scale = a.scale
	if b.scale > scale {
		scale = b.scale
	}
	ua = a.rescaledTo(scale)
	ub = b.rescaledTo(scale)
	return
}

// arith applies op to the unscaled, scale-aligned operands and wraps the
// result with the LEFT operand's caps, per spec §4.1 ("result inherits the
// left operand's precision/scale constraints and is revalidated").
func (a *number) arith(b *number, op func(scale int, ua, ub *big.Int) (*big.Int, int, error)) (*number, error) {
	ua, ub, scale := alignScales(a, b)
	unscaled, resultScale, err := op(scale, ua, ub)
	if err != nil {
		return nil, err
	}
	out := &number{unscaled: unscaled, scale: resultScale, precision: a.precision, scaleCap: a.scaleCap}
	if err := out.applyCaps(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *number) Add(b *number) (*number, error) {
	return a.arith(b, func(scale int, ua, ub *big.Int) (*big.Int, int, error) {
		return new(big.Int).Add(ua, ub), scale, nil
	})
}

func (a *number) Sub(b *number) (*number, error) {
	return a.arith(b, func(scale int, ua, ub *big.Int) (*big.Int, int, error) {
		return new(big.Int).Sub(ua, ub), scale, nil
	})
}

func (a *number) Mul(b *number) (*number, error) {
	// Multiplying two fixed-point numbers of scale s1/s2 yields scale s1+s2
	// before re-aligning to the common scale used elsewhere; simplest exact
	// approach is to multiply the raw unscaled values (pre-alignment) and
	// add the original scales.
	unscaled := new(big.Int).Mul(a.unscaled, b.unscaled)
	scale := a.scale + b.scale
	out := &number{unscaled: unscaled, scale: scale, precision: a.precision, scaleCap: a.scaleCap}
	if err := out.applyCaps(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *number) Div(b *number) (*number, error) {
	if b.unscaled.Sign() == 0 {
		return nil, errs.New(errs.Validation, "division by zero")
	}
	num := new(big.Rat).SetFrac(a.unscaled, pow10(a.scale))
	den := new(big.Rat).SetFrac(b.unscaled, pow10(b.scale))
	quotient := new(big.Rat).Quo(num, den)

	tryScale := func(s int) (*big.Int, bool) {
		scaled := new(big.Rat).Mul(quotient, new(big.Rat).SetInt(pow10(s)))
		if scaled.IsInt() {
			return scaled.Num(), true
		}
		return nil, false
	}

	if a.scaleCap != nil {
		unscaled, ok := tryScale(*a.scaleCap)
		if !ok {
			return nil, errs.New(errs.Validation, "division result is not exact at scale %d", *a.scaleCap)
		}
		out := &number{unscaled: unscaled, scale: *a.scaleCap, precision: a.precision, scaleCap: a.scaleCap}
		if err := out.applyCaps(); err != nil {
			return nil, err
		}
		return out, nil
	}
	for s := 0; s <= maxDivisionScale; s++ {
		if unscaled, ok := tryScale(s); ok {
			out := &number{unscaled: unscaled, scale: s, precision: a.precision, scaleCap: a.scaleCap}
			if err := out.applyCaps(); err != nil {
				return nil, err
			}
			return out, nil
		}
	}
	return nil, errs.New(errs.Validation, "division result does not terminate within %d fractional digits", maxDivisionScale)
}

// Round implements round(dp, half_up): a new Number whose fractional digit
// count is <= dp (spec §4.1).
func (a *number) Round(dp int) (*number, error) {
	if dp >= a.scale {
		return a.clone(), nil
	}
	diff := a.scale - dp
	divisor := pow10(diff)
	q, r := new(big.Int).QuoRem(a.unscaled, divisor, new(big.Int))
	halfUp(&q, r, divisor)
	out := &number{unscaled: q, scale: dp, precision: a.precision, scaleCap: a.scaleCap}
	if err := out.applyCaps(); err != nil {
		return nil, err
	}
	return out, nil
}

// halfUp nudges q away from zero when the remainder is at least half the
// divisor, implementing round-half-up for both signs.
func halfUp(q **big.Int, r, divisor *big.Int) {
	absR := new(big.Int).Abs(r)
	twice := new(big.Int).Lsh(absR, 1)
	if twice.Cmp(divisor) >= 0 {
		if (*q).Sign() < 0 || (r.Sign() < 0) {
			*q = new(big.Int).Sub(*q, big.NewInt(1))
		} else {
			*q = new(big.Int).Add(*q, big.NewInt(1))
		}
	}
}

func (a *number) cmp(b *number) int {
	ua, ub, _ := alignScales(a, b)
	return ua.Cmp(ub)
}

func (a *number) Eq(b *number) bool { return a.cmp(b) == 0 }
func (a *number) Gt(b *number) bool { return a.cmp(b) > 0 }
func (a *number) Lt(b *number) bool { return a.cmp(b) < 0 }
