package sqlite

import (
	"bytes"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// Kind is the discriminant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt64
	KindDouble
	KindText
	KindBlob
)

// String returns the SQLite storage class name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt64:
		return "INTEGER"
	case KindDouble:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return "unknown"
	}
}

// Value is a tagged SQL value with exactly one active variant.
//
// The zero Value is Null. Values are immutable: constructors copy caller
// buffers and Blob returns a copy, so a Value may be shared freely.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string // Text payload
	b    []byte // Blob payload, never nil for KindBlob
}

// Row is one decoded result row, in column order.
type Row []Value

// Null returns the Null value.
func Null() Value {
	return Value{}
}

// Int64 creates an INTEGER value.
func Int64(v int64) Value {
	return Value{kind: KindInt64, i: v}
}

// Double creates a REAL value.
func Double(v float64) Value {
	return Value{kind: KindDouble, f: v}
}

// Text creates a TEXT value.
func Text(s string) Value {
	return Value{kind: KindText, s: s}
}

// TextBytes creates a TEXT value from raw bytes. The bytes are copied and are
// not required to be valid UTF-8.
func TextBytes(b []byte) Value {
	return Value{kind: KindText, s: string(b)}
}

// Blob creates a BLOB value. The bytes are copied; a nil slice yields an
// empty blob, not Null.
func Blob(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBlob, b: cp}
}

// Kind returns the active discriminant.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is Null. Safe for every kind.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Int64 returns the INTEGER payload.
func (v Value) Int64() (int64, error) {
	if v.kind != KindInt64 {
		return 0, v.mismatch(KindInt64)
	}
	return v.i, nil
}

// Double returns the REAL payload.
func (v Value) Double() (float64, error) {
	if v.kind != KindDouble {
		return 0, v.mismatch(KindDouble)
	}
	return v.f, nil
}

// Text returns the TEXT payload.
func (v Value) Text() (string, error) {
	if v.kind != KindText {
		return "", v.mismatch(KindText)
	}
	return v.s, nil
}

// Blob returns a copy of the BLOB payload.
func (v Value) Blob() ([]byte, error) {
	if v.kind != KindBlob {
		return nil, v.mismatch(KindBlob)
	}
	cp := make([]byte, len(v.b))
	copy(cp, v.b)
	return cp, nil
}

func (v Value) mismatch(want Kind) *Error {
	return newError(ErrCodeTypeMismatch, "", "value is %s, not %s", v.kind, want)
}

// Equal reports whether v and o hold the same variant and payload.
// Text and Blob compare byte-exactly and Double compares bit-exactly,
// so NaN equals an identical NaN and 0.0 differs from -0.0.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt64:
		return v.i == o.i
	case KindDouble:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindText:
		return v.s == o.s
	case KindBlob:
		return bytes.Equal(v.b, o.b)
	}
	return false
}

// String renders v for display. Blobs are shown as x'..' hex literals.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindBlob:
		return "x'" + hex.EncodeToString(v.b) + "'"
	}
	return "unknown"
}

// driverValue converts v into the form the engine binds.
func (v Value) driverValue() driver.Value {
	switch v.kind {
	case KindInt64:
		return v.i
	case KindDouble:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	default:
		return nil
	}
}

// valueFromDriver translates one decoded column 1:1 into a Value. The cursor
// turns off declared-type conversion, so only the five storage classes arrive.
func valueFromDriver(dv driver.Value) (Value, error) {
	switch x := dv.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Int64(x), nil
	case float64:
		return Double(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported column type %T", dv)
	}
}
