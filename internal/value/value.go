package value

import (
	"fmt"
	"time"

	"github.com/kalita-labs/truss/internal/errs"
)

// Value is the tagged union described in spec §3. Only the field matching
// Kind is populated; callers dispatch through the typed accessors/methods
// below rather than inspecting the struct directly.
type Value struct {
	kind Kind
	num  *number
	str  string
	maxL *int
	b    bool
	t    time.Time
}

func (v Value) Kind() Kind { return v.kind }

// NewString validates text against an optional max length (spec §3).
func NewString(text string, maxLen *int) (Value, error) {
	if maxLen != nil && len([]rune(text)) > *maxLen {
		return Value{}, errs.New(errs.Validation, "string exceeds max length %d", *maxLen)
	}
	return Value{kind: KindString, str: text, maxL: maxLen}, nil
}

func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

func NewDateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t} }

// AsNumberText/AsString/AsBool/AsDateTime do not check Kind: AsNumberText
// panics on a non-Number and the others return their zero value, so
// callers are expected to check Kind() first (the evaluator always does,
// since field types are known from the schema before any value is read).
func (v Value) AsNumberText() string  { return v.num.Canonical() }
func (v Value) AsString() string      { return v.str }
func (v Value) AsBool() bool          { return v.b }
func (v Value) AsDateTime() time.Time { return v.t }

// Raw returns the canonical storage form described in spec §4.2/§6:
// decimals and datetimes as text, bools as native bool. No 0/1 mapping is
// applied: the relational adapter stores bools in a native boolean column.
func (v Value) Raw() any {
	switch v.kind {
	case KindNumber:
		return v.num.Canonical()
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindDateTime:
		return v.t.UTC().Format(time.RFC3339Nano)
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return v.num.Canonical()
	case KindString:
		return v.str
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindDateTime:
		return v.t.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func requireKind(v Value, k Kind) error {
	if v.kind != k {
		return errs.New(errs.Validation, "expected %s, got %s", k, v.kind)
	}
	return nil
}

// Add/Sub/Mul/Div dispatch on the LEFT operand's kind (spec §4.1:
// "cross-type arithmetic is not promoted").
func Add(a, b Value) (Value, error) {
	switch a.kind {
	case KindNumber:
		bn, err := coerceNumberOperand(a, b)
		if err != nil {
			return Value{}, err
		}
		n, err := a.num.Add(bn)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindNumber, num: n}, nil
	case KindString:
		return Value{kind: KindString, str: a.str + b.String(), maxL: a.maxL}, nil
	default:
		return Value{}, errs.New(errs.Validation, "add is not defined for %s", a.kind)
	}
}

func Sub(a, b Value) (Value, error) {
	if a.kind != KindNumber {
		return Value{}, errs.New(errs.Validation, "sub is not defined for %s", a.kind)
	}
	bn, err := coerceNumberOperand(a, b)
	if err != nil {
		return Value{}, err
	}
	n, err := a.num.Sub(bn)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: KindNumber, num: n}, nil
}

func Mul(a, b Value) (Value, error) {
	if a.kind != KindNumber {
		return Value{}, errs.New(errs.Validation, "mul is not defined for %s", a.kind)
	}
	bn, err := coerceNumberOperand(a, b)
	if err != nil {
		return Value{}, err
	}
	n, err := a.num.Mul(bn)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: KindNumber, num: n}, nil
}

func Div(a, b Value) (Value, error) {
	if a.kind != KindNumber {
		return Value{}, errs.New(errs.Validation, "div is not defined for %s", a.kind)
	}
	bn, err := coerceNumberOperand(a, b)
	if err != nil {
		return Value{}, err
	}
	n, err := a.num.Div(bn)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: KindNumber, num: n}, nil
}

// coerceNumberOperand wraps a "raw" right-hand scalar using the left
// operand's kind before the op runs (spec §4.1: "Comparison between a typed
// value and a raw scalar wraps the raw side using the typed side's kind").
// Arithmetic reuses the same rule for the right operand.
func coerceNumberOperand(left, right Value) (*number, error) {
	if right.kind == KindNumber {
		return right.num, nil
	}
	wrapped, err := NewNumber(right.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	return wrapped.num, nil
}

func Not(a Value) (Value, error) {
	if err := requireKind(a, KindBool); err != nil {
		return Value{}, err
	}
	return NewBool(!a.b), nil
}

// And/Or evaluate both operands before combining (spec §4.1: short-circuit
// semantics are not required at the value-operator level).
func And(a, b Value) (Value, error) {
	if err := requireKind(a, KindBool); err != nil {
		return Value{}, err
	}
	if err := requireKind(b, KindBool); err != nil {
		return Value{}, err
	}
	return NewBool(a.b && b.b), nil
}

func Or(a, b Value) (Value, error) {
	if err := requireKind(a, KindBool); err != nil {
		return Value{}, err
	}
	if err := requireKind(b, KindBool); err != nil {
		return Value{}, err
	}
	return NewBool(a.b || b.b), nil
}

// Round returns a new Number with fractional digits <= dp (spec §4.1).
func Round(a Value, dp int) (Value, error) {
	if err := requireKind(a, KindNumber); err != nil {
		return Value{}, err
	}
	n, err := a.num.Round(dp)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: KindNumber, num: n}, nil
}

// Eq/Gt/Lt dispatch on the left operand's kind, wrapping a raw right side
// the same way arithmetic does.
func Eq(a, b Value) (bool, error) {
	switch a.kind {
	case KindNumber:
		bn, err := coerceNumberOperand(a, b)
		if err != nil {
			return false, err
		}
		return a.num.Eq(bn), nil
	case KindString:
		return a.str == b.String(), nil
	case KindBool:
		if err := requireKind(b, KindBool); err != nil {
			return false, err
		}
		return a.b == b.b, nil
	case KindDateTime:
		bt, err := coerceDateTimeOperand(b)
		if err != nil {
			return false, err
		}
		return a.t.Equal(bt), nil
	default:
		return false, errs.New(errs.Validation, "eq is not defined for %s", a.kind)
	}
}

func Gt(a, b Value) (bool, error) {
	switch a.kind {
	case KindNumber:
		bn, err := coerceNumberOperand(a, b)
		if err != nil {
			return false, err
		}
		return a.num.Gt(bn), nil
	case KindDateTime:
		bt, err := coerceDateTimeOperand(b)
		if err != nil {
			return false, err
		}
		return a.t.After(bt), nil
	default:
		return false, errs.New(errs.Validation, "gt is not defined for %s", a.kind)
	}
}

func Lt(a, b Value) (bool, error) {
	switch a.kind {
	case KindNumber:
		bn, err := coerceNumberOperand(a, b)
		if err != nil {
			return false, err
		}
		return a.num.Lt(bn), nil
	case KindDateTime:
		bt, err := coerceDateTimeOperand(b)
		if err != nil {
			return false, err
		}
		return a.t.Before(bt), nil
	default:
		return false, errs.New(errs.Validation, "lt is not defined for %s", a.kind)
	}
}

// Cast re-derives v against a target field's declared precision/scale/
// max-length, checking its kind matches first. A value computed from an
// untyped literal or an uncapped parameter (e.g. a bare "number" procedure
// argument) carries no field-level caps of its own; Cast is what applies
// the destination field's caps at the moment a Create/Update assignment
// writes into it, independently of whatever caps produced the value.
func Cast(v Value, kind Kind, precision, scale, maxLen *int) (Value, error) {
	if v.Kind() != kind {
		return Value{}, errs.New(errs.Validation, "expected %s, got %s", kind, v.Kind())
	}
	return FromRaw(kind, v.Raw(), precision, scale, maxLen)
}

// FromRaw wraps a raw storage scalar (as read back from an adapter row or
// held in an Entity's Data map) into a typed Value, given the declared
// field kind and its constraints. This is the counterpart to Raw() and is
// used by the entity runtime's get() (spec §4.2).
func FromRaw(kind Kind, raw any, precision, scale, maxLen *int) (Value, error) {
	if raw == nil {
		return Value{}, nil
	}
	switch kind {
	case KindNumber:
		return NewNumber(fmt.Sprintf("%v", raw), precision, scale)
	case KindString:
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprintf("%v", raw)
		}
		return NewString(s, maxLen)
	case KindBool:
		switch b := raw.(type) {
		case bool:
			return NewBool(b), nil
		case int64:
			return NewBool(b != 0), nil
		case string:
			return NewBool(b == "true" || b == "1"), nil
		default:
			return Value{}, errs.New(errs.Validation, "cannot interpret %v as bool", raw)
		}
	case KindDateTime:
		switch t := raw.(type) {
		case time.Time:
			return NewDateTime(t), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return Value{}, errs.Wrap(errs.Validation, err, "invalid datetime literal %q", t)
			}
			return NewDateTime(parsed), nil
		default:
			return Value{}, errs.New(errs.Validation, "cannot interpret %v as datetime", raw)
		}
	default:
		return Value{}, errs.New(errs.Validation, "unknown kind %v", kind)
	}
}

func coerceDateTimeOperand(v Value) (time.Time, error) {
	if v.kind == KindDateTime {
		return v.t, nil
	}
	if v.kind == KindString {
		t, err := time.Parse(time.RFC3339Nano, v.str)
		if err != nil {
			return time.Time{}, errs.Wrap(errs.Validation, err, "invalid datetime literal %q", v.str)
		}
		return t, nil
	}
	return time.Time{}, errs.New(errs.Validation, "cannot compare datetime to %s", v.kind)
}
