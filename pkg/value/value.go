// Package value implements the structured data model shared by appraisal
// claims and extensions: a tagged union over the common subset of the JSON
// and CBOR data models that survives round trips through both wire formats.
package value

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNull reports a JSON or CBOR null in a position where a value is required.
var ErrNull = errors.New("null is not a valid value")

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindUnset Kind = iota
	KindBool
	KindText
	KindBytes
	KindInteger
	KindFloat
	KindArray
	KindMap
	KindTagged
)

var kindNames = []string{
	KindUnset:   "Unset",
	KindBool:    "Bool",
	KindText:    "Text",
	KindBytes:   "Bytes",
	KindInteger: "Integer",
	KindFloat:   "Float",
	KindArray:   "Array",
	KindMap:     "Map",
	KindTagged:  "Tagged",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler so kinds can be written in
// declaration files.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown value kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Kind names are matched
// case-insensitively.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if strings.EqualFold(string(text), name) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown value kind %q", string(text))
}

// Value is a single structured datum decoded from, or destined for, one of
// the two wire formats. The set of implementations is closed.
type Value interface {
	Kind() Kind
	isValue()
}

// Integer is a signed 64-bit integer value.
type Integer int64

// Float is a 64-bit floating point value.
type Float float64

// Text is a UTF-8 string value.
type Text string

// Bytes is a raw byte buffer. It is written to CBOR as a byte string and to
// JSON as an unpadded base64url text string.
type Bytes []byte

// Bool is a boolean value.
type Bool bool

// Array is an ordered sequence of values.
type Array []Value

// Pair is a single map entry. Keys are full values rather than strings
// because CBOR map keys need not be text.
type Pair struct {
	Key   Value
	Value Value
}

// Map is an ordered sequence of key/value pairs. Entry order is preserved
// through decode so that re-encoding in binary mode is deterministic.
type Map []Pair

// Tagged is a CBOR-tagged value. The tag is dropped when writing JSON.
type Tagged struct {
	Num     uint64
	Content Value
}

func (Integer) Kind() Kind { return KindInteger }
func (Float) Kind() Kind   { return KindFloat }
func (Text) Kind() Kind    { return KindText }
func (Bytes) Kind() Kind   { return KindBytes }
func (Bool) Kind() Kind    { return KindBool }
func (Array) Kind() Kind   { return KindArray }
func (Map) Kind() Kind     { return KindMap }
func (Tagged) Kind() Kind  { return KindTagged }

func (Integer) isValue() {}
func (Float) isValue()   {}
func (Text) isValue()    {}
func (Bytes) isValue()   {}
func (Bool) isValue()    {}
func (Array) isValue()   {}
func (Map) isValue()     {}
func (Tagged) isValue()  {}

// Equal reports whether two values are structurally equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Integer:
		return x == b.(Integer)
	case Float:
		return x == b.(Float)
	case Text:
		return x == b.(Text)
	case Bytes:
		return bytes.Equal(x, b.(Bytes))
	case Bool:
		return x == b.(Bool)
	case Array:
		y := b.(Array)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Map:
		y := b.(Map)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i].Key, y[i].Key) || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case Tagged:
		y := b.(Tagged)
		return x.Num == y.Num && Equal(x.Content, y.Content)
	}
	return false
}

// CanConvert reports whether Convert defines a conversion between the two
// kinds. Only text and bytes are interchangeable.
func CanConvert(from, to Kind) bool {
	return (from == KindText && to == KindBytes) || (from == KindBytes && to == KindText)
}

// Convert returns v re-expressed as kind k. Text converts to bytes by
// decoding the text as unpadded base64url, and bytes convert to text by
// applying that encoding. No other cross-kind conversions are defined.
func Convert(v Value, k Kind) (Value, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot convert into %s from any other variant", k)
	}
	if v.Kind() == k {
		return v, nil
	}
	switch k {
	case KindBytes:
		t, ok := v.(Text)
		if !ok {
			return nil, fmt.Errorf("cannot convert into %s from %s", k, v.Kind())
		}
		raw, err := base64.RawURLEncoding.DecodeString(string(t))
		if err != nil {
			return nil, err
		}
		return Bytes(raw), nil
	case KindText:
		b, ok := v.(Bytes)
		if !ok {
			return nil, fmt.Errorf("cannot convert into %s from %s", k, v.Kind())
		}
		return Text(base64.RawURLEncoding.EncodeToString(b)), nil
	default:
		return nil, fmt.Errorf("cannot convert into %s from any other variant", k)
	}
}
