// Package value defines the tagged value variant that providers, the
// planner, the evaluator, and the wire encoder all exchange. Providers map
// their native values into this variant at the scan boundary.
package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind enumerates the closed set of value kinds.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBool
	KindTimestamp
	// KindOpaque is the fallback for provider values that have no
	// representation in the other kinds. Carried as text.
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBool:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindOpaque:
		return "opaque"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a provider-declared type name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "integer", "int64", "bigint":
		return KindInt, nil
	case "float", "double", "float64", "real":
		return KindFloat, nil
	case "text", "string", "str", "varchar":
		return KindText, nil
	case "bool", "boolean":
		return KindBool, nil
	case "timestamp", "datetime":
		return KindTimestamp, nil
	case "opaque":
		return KindOpaque, nil
	}
	return KindNull, fmt.Errorf("unknown value kind %q", name)
}

// Value is an immutable tagged value. The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
	b    bool
}

func Null() Value                  { return Value{} }
func Int(i int64) Value            { return Value{kind: KindInt, i: i} }
func Float(f float64) Value        { return Value{kind: KindFloat, f: f} }
func Text(s string) Value          { return Value{kind: KindText, s: s} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Timestamp(t time.Time) Value  { return Value{kind: KindTimestamp, t: t} }
func Opaque(s string) Value        { return Value{kind: KindOpaque, s: s} }

func (v Value) Kind() Kind           { return v.kind }
func (v Value) IsNull() bool         { return v.kind == KindNull }
func (v Value) Int() int64           { return v.i }
func (v Value) Float() float64       { return v.f }
func (v Value) Text() string         { return v.s }
func (v Value) Bool() bool           { return v.b }
func (v Value) Timestamp() time.Time { return v.t }

// TimestampLayout is the text rendering used for timestamp values, both on
// the wire and in CLI output.
const TimestampLayout = "2006-01-02 15:04:05.999999"

// String renders the value for human-facing output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText, KindOpaque:
		return v.s
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindTimestamp:
		return v.t.Format(TimestampLayout)
	}
	return ""
}

// FromAny maps a native Go value into the variant. Unrepresentable values
// fall back to KindOpaque via fmt.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return Text(t)
	case bool:
		return Bool(t)
	case time.Time:
		return Timestamp(t)
	default:
		return Opaque(fmt.Sprintf("%v", t))
	}
}

// asFloat returns the numeric reading of the value. Text that parses as a
// number counts as numeric: the engine coerces text literals compared
// against numeric columns.
func (v Value) asFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Compare orders two non-null values. Integers and floats interoperate;
// text compared against a numeric value is coerced when it parses as a
// number; string comparison is byte-lexicographic. Returns an error for
// kind pairings with no defined order.
func Compare(a, b Value) (int, error) {
	if a.kind == KindNull || b.kind == KindNull {
		return 0, fmt.Errorf("cannot compare null values")
	}

	if a.kind == KindInt && b.kind == KindInt {
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		}
		return 0, nil
	}

	aNum, aOK := a.asFloat()
	bNum, bOK := b.asFloat()
	numeric := func(v Value) bool { return v.kind == KindInt || v.kind == KindFloat }
	if (numeric(a) || numeric(b)) && aOK && bOK {
		switch {
		case aNum < bNum:
			return -1, nil
		case aNum > bNum:
			return 1, nil
		}
		return 0, nil
	}

	if isTextual(a) && isTextual(b) {
		return strings.Compare(a.s, b.s), nil
	}

	if a.kind == KindBool && b.kind == KindBool {
		switch {
		case !a.b && b.b:
			return -1, nil
		case a.b && !b.b:
			return 1, nil
		}
		return 0, nil
	}

	if a.kind == KindTimestamp && b.kind == KindTimestamp {
		switch {
		case a.t.Before(b.t):
			return -1, nil
		case a.t.After(b.t):
			return 1, nil
		}
		return 0, nil
	}

	return 0, fmt.Errorf("cannot compare %s with %s", a.kind, b.kind)
}

func isTextual(v Value) bool { return v.kind == KindText || v.kind == KindOpaque }
