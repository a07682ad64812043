package value

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// MarshalCBOR implements cbor.Marshaler.
func (v Integer) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(int64(v))
}

// MarshalCBOR implements cbor.Marshaler.
func (v Float) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(float64(v))
}

// MarshalCBOR implements cbor.Marshaler.
func (v Text) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(string(v))
}

// MarshalCBOR implements cbor.Marshaler.
func (v Bytes) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([]byte(v))
}

// MarshalCBOR implements cbor.Marshaler.
func (v Bool) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(bool(v))
}

// MarshalCBOR implements cbor.Marshaler.
func (v Array) MarshalCBOR() ([]byte, error) {
	out := appendCBORHead(nil, 4, uint64(len(v)))
	for _, el := range v {
		raw, err := cbor.Marshal(el)
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	return out, nil
}

// MarshalCBOR implements cbor.Marshaler. Entries are written in order as a
// definite length map.
func (v Map) MarshalCBOR() ([]byte, error) {
	w := &MapWriter{}
	for _, pair := range v {
		if err := w.Put(pair.Key, pair.Value); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// MarshalCBOR implements cbor.Marshaler.
func (v Tagged) MarshalCBOR() ([]byte, error) {
	if v.Content == nil {
		return nil, errors.New("tagged value has no content")
	}
	content, err := cbor.Marshal(v.Content)
	if err != nil {
		return nil, err
	}
	return append(appendCBORHead(nil, 6, v.Num), content...), nil
}

// DecodeCBOR consumes exactly one CBOR item and classifies it into the
// Value union. Map entry order and tag numbers are preserved, and both
// definite and indefinite length containers are accepted.
func DecodeCBOR(data []byte) (Value, error) {
	v, rest, err := decodeCBORItem(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.New("extraneous data after CBOR item")
	}
	return v, nil
}

func decodeCBORItem(data []byte) (Value, []byte, error) {
	major, val, n, indef, err := readCBORHead(data)
	if err != nil {
		return nil, nil, err
	}
	switch major {
	case 4:
		return decodeCBORArray(data[n:], val, indef)
	case 5:
		return decodeCBORMap(data[n:], val, indef)
	case 6:
		if indef {
			return nil, nil, errors.New("invalid indefinite length tag")
		}
		content, rest, err := decodeCBORItem(data[n:])
		if err != nil {
			return nil, nil, err
		}
		return Tagged{Num: val, Content: content}, rest, nil
	default:
		var raw any
		rest, err := cbor.UnmarshalFirst(data, &raw)
		if err != nil {
			return nil, nil, err
		}
		v, err := fromDecoded(raw)
		if err != nil {
			return nil, nil, err
		}
		return v, rest, nil
	}
}

func decodeCBORArray(data []byte, count uint64, indef bool) (Value, []byte, error) {
	arr := Array{}
	rest := data
	if indef {
		for {
			if len(rest) == 0 {
				return nil, nil, io.ErrUnexpectedEOF
			}
			if rest[0] == 0xff {
				return arr, rest[1:], nil
			}
			el, r, err := decodeCBORItem(rest)
			if err != nil {
				return nil, nil, err
			}
			arr = append(arr, el)
			rest = r
		}
	}
	for i := uint64(0); i < count; i++ {
		el, r, err := decodeCBORItem(rest)
		if err != nil {
			return nil, nil, err
		}
		arr = append(arr, el)
		rest = r
	}
	return arr, rest, nil
}

func decodeCBORMap(data []byte, count uint64, indef bool) (Value, []byte, error) {
	m := Map{}
	rest := data
	next := func() (Pair, error) {
		key, r, err := decodeCBORItem(rest)
		if err != nil {
			return Pair{}, err
		}
		val, r, err := decodeCBORItem(r)
		if err != nil {
			return Pair{}, err
		}
		rest = r
		return Pair{Key: key, Value: val}, nil
	}
	if indef {
		for {
			if len(rest) == 0 {
				return nil, nil, io.ErrUnexpectedEOF
			}
			if rest[0] == 0xff {
				return m, rest[1:], nil
			}
			pair, err := next()
			if err != nil {
				return nil, nil, err
			}
			m = append(m, pair)
		}
	}
	for i := uint64(0); i < count; i++ {
		pair, err := next()
		if err != nil {
			return nil, nil, err
		}
		m = append(m, pair)
	}
	return m, rest, nil
}

func fromDecoded(raw any) (Value, error) {
	switch x := raw.(type) {
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned integer %d overflows int64", x)
		}
		return Integer(int64(x)), nil
	case int64:
		return Integer(x), nil
	case []byte:
		return Bytes(x), nil
	case string:
		return Text(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case bool:
		return Bool(x), nil
	case big.Int:
		return nil, fmt.Errorf("integer %s overflows int64", x.String())
	case *big.Int:
		return nil, fmt.Errorf("integer %s overflows int64", x.String())
	case nil:
		return nil, ErrNull
	default:
		return nil, fmt.Errorf("unsupported CBOR item of type %T", raw)
	}
}

// DecodeCBORAs decodes one CBOR item that must conform to the given kind.
// This is the strict decode path used for registered extension slots. A
// text string decodes into the bytes kind by way of unpadded base64url,
// mirroring the JSON representation of bytes.
func DecodeCBORAs(data []byte, k Kind) (Value, error) {
	if len(data) > 0 && (data[0] == 0xf6 || data[0] == 0xf7) {
		return nil, ErrNull
	}
	switch k {
	case KindBool:
		var b bool
		if err := cbor.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case KindText:
		var s string
		if err := cbor.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case KindBytes:
		major, _, _, _, err := readCBORHead(data)
		if err != nil {
			return nil, err
		}
		if major == 3 {
			var s string
			if err := cbor.Unmarshal(data, &s); err != nil {
				return nil, err
			}
			raw, err := base64.RawURLEncoding.DecodeString(s)
			if err != nil {
				return nil, err
			}
			return Bytes(raw), nil
		}
		var b []byte
		if err := cbor.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bytes(b), nil
	case KindInteger:
		var i int64
		if err := cbor.Unmarshal(data, &i); err != nil {
			return nil, err
		}
		return Integer(i), nil
	case KindFloat:
		var f float64
		if err := cbor.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return Float(f), nil
	case KindArray, KindMap, KindTagged:
		v, err := DecodeCBOR(data)
		if err != nil {
			return nil, err
		}
		if v.Kind() != k {
			return nil, fmt.Errorf("value is %s, want %s", v.Kind(), k)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("cannot decode value as %s", k)
	}
}

func readCBORHead(data []byte) (major byte, val uint64, n int, indef bool, err error) {
	if len(data) == 0 {
		return 0, 0, 0, false, io.ErrUnexpectedEOF
	}
	major = data[0] >> 5
	ai := data[0] & 0x1f
	switch {
	case ai < 24:
		return major, uint64(ai), 1, false, nil
	case ai <= 27:
		size := 1 << (ai - 24)
		if len(data) < 1+size {
			return 0, 0, 0, false, io.ErrUnexpectedEOF
		}
		for _, b := range data[1 : 1+size] {
			val = val<<8 | uint64(b)
		}
		return major, val, 1 + size, false, nil
	case ai == 31:
		return major, 0, 1, true, nil
	default:
		return 0, 0, 0, false, fmt.Errorf("invalid additional information %d", ai)
	}
}

func appendCBORHead(buf []byte, major byte, n uint64) []byte {
	mt := major << 5
	switch {
	case n < 24:
		return append(buf, mt|byte(n))
	case n <= math.MaxUint8:
		return append(buf, mt|24, byte(n))
	case n <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(buf, mt|25), uint16(n))
	case n <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(buf, mt|26), uint32(n))
	default:
		return binary.BigEndian.AppendUint64(append(buf, mt|27), n)
	}
}

// MapWriter accumulates key/value entries and renders them as a definite
// length CBOR map in insertion order. The codec layers use it to keep key
// order deterministic regardless of how fields are stored in memory.
type MapWriter struct {
	body  []byte
	count int
}

// Put appends one entry, encoding both key and value.
func (w *MapWriter) Put(key, val any) error {
	rawKey, err := cbor.Marshal(key)
	if err != nil {
		return err
	}
	rawVal, err := cbor.Marshal(val)
	if err != nil {
		return err
	}
	w.body = append(w.body, rawKey...)
	w.body = append(w.body, rawVal...)
	w.count++
	return nil
}

// PutRaw appends one entry whose value is already encoded.
func (w *MapWriter) PutRaw(key any, raw []byte) error {
	rawKey, err := cbor.Marshal(key)
	if err != nil {
		return err
	}
	w.body = append(w.body, rawKey...)
	w.body = append(w.body, raw...)
	w.count++
	return nil
}

// Len returns the number of entries appended so far.
func (w *MapWriter) Len() int {
	return w.count
}

// Bytes renders the accumulated map.
func (w *MapWriter) Bytes() []byte {
	return append(appendCBORHead(nil, 5, uint64(w.count)), w.body...)
}
