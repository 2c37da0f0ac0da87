package sdb

import (
	"bytes"
	"strconv"
)

// ValueType identifies which scalar a Value carries.
type ValueType int

// The scalar types of the unified value model. Every database value
// maps onto exactly one of these.
const (
	TypeNull ValueType = iota
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeBool
	TypeText
	TypeBytes
)

// String returns the textual name of the type.
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "Null"
	case TypeInt32:
		return "Int32"
	case TypeInt64:
		return "Int64"
	case TypeFloat64:
		return "Float64"
	case TypeBool:
		return "Bool"
	case TypeText:
		return "Text"
	case TypeBytes:
		return "Bytes"
	default:
		return "Unknown"
	}
}

// Value is the unified scalar exchanged with every driver.
//
// A Value is immutable once constructed. The zero Value is NULL.
// Accessors are strict: Int32 on a Text value reports false rather
// than converting.
type Value struct {
	kind ValueType

	i   int64
	f   float64
	b   bool
	s   string
	raw []byte
}

// Null returns the NULL value.
func Null() Value {
	return Value{}
}

// Int32 returns a 32-bit integer value.
func Int32(v int32) Value {
	return Value{kind: TypeInt32, i: int64(v)}
}

// Int64 returns a 64-bit integer value.
func Int64(v int64) Value {
	return Value{kind: TypeInt64, i: v}
}

// Float64 returns a double-precision floating point value.
func Float64(v float64) Value {
	return Value{kind: TypeFloat64, f: v}
}

// Bool returns a boolean value.
func Bool(v bool) Value {
	return Value{kind: TypeBool, b: v}
}

// Text returns a string value.
func Text(v string) Value {
	return Value{kind: TypeText, s: v}
}

// Bytes returns a binary value. The slice is not copied; callers must
// not mutate it after construction.
func Bytes(v []byte) Value {
	if v == nil {
		v = []byte{}
	}
	return Value{kind: TypeBytes, raw: v}
}

// Type reports which scalar the value carries.
func (v Value) Type() ValueType {
	return v.kind
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.kind == TypeNull
}

// Int32 returns the payload when the value is a 32-bit integer.
func (v Value) Int32() (int32, bool) {
	if v.kind != TypeInt32 {
		return 0, false
	}
	return int32(v.i), true
}

// Int64 returns the payload when the value is a 64-bit integer.
func (v Value) Int64() (int64, bool) {
	if v.kind != TypeInt64 {
		return 0, false
	}
	return v.i, true
}

// Float64 returns the payload when the value is a float.
func (v Value) Float64() (float64, bool) {
	if v.kind != TypeFloat64 {
		return 0, false
	}
	return v.f, true
}

// Bool returns the payload when the value is a boolean.
func (v Value) Bool() (bool, bool) {
	if v.kind != TypeBool {
		return false, false
	}
	return v.b, true
}

// Text returns the payload when the value is a string.
func (v Value) Text() (string, bool) {
	if v.kind != TypeText {
		return "", false
	}
	return v.s, true
}

// Bytes returns the payload when the value is binary. The returned
// slice is the value's backing storage; callers must not mutate it.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != TypeBytes {
		return nil, false
	}
	return v.raw, true
}

// String renders the value for display and logging.
//
// NULL renders as "NULL", text as the raw string, binary as "[BLOB]",
// floats in the shortest decimal form that round-trips, and booleans
// as "true" / "false".
func (v Value) String() string {
	switch v.kind {
	case TypeNull:
		return "NULL"
	case TypeInt32, TypeInt64:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeBool:
		if v.b {
			return "true"
		}
		return "false"
	case TypeText:
		return v.s
	case TypeBytes:
		return "[BLOB]"
	default:
		return "NULL"
	}
}

// Equal reports whether two values carry the same type and payload.
// Values of different types are never equal; no numeric coercion is
// performed.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case TypeNull:
		return true
	case TypeInt32, TypeInt64:
		return v.i == o.i
	case TypeFloat64:
		return v.f == o.f
	case TypeBool:
		return v.b == o.b
	case TypeText:
		return v.s == o.s
	case TypeBytes:
		return bytes.Equal(v.raw, o.raw)
	default:
		return false
	}
}
