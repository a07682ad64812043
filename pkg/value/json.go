package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MarshalJSON implements json.Marshaler.
func (v Integer) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(v), 10), nil
}

// MarshalJSON implements json.Marshaler.
func (v Float) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(v))
}

// MarshalJSON implements json.Marshaler.
func (v Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

// MarshalJSON implements json.Marshaler. Bytes are written as an unpadded
// base64url text string.
func (v Bytes) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, base64.RawURLEncoding.EncodedLen(len(v))+2)
	out = append(out, '"')
	out = base64.RawURLEncoding.AppendEncode(out, v)
	return append(out, '"'), nil
}

// MarshalJSON implements json.Marshaler.
func (v Bool) MarshalJSON() ([]byte, error) {
	return strconv.AppendBool(nil, bool(v)), nil
}

// MarshalJSON implements json.Marshaler.
func (v Array) MarshalJSON() ([]byte, error) {
	out := []byte{'['}
	for i, el := range v {
		if i > 0 {
			out = append(out, ',')
		}
		raw, err := json.Marshal(el)
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	return append(out, ']'), nil
}

// MarshalJSON implements json.Marshaler. Only text keys can be represented
// in a JSON object.
func (v Map) MarshalJSON() ([]byte, error) {
	out := []byte{'{'}
	for i, pair := range v {
		if i > 0 {
			out = append(out, ',')
		}
		key, ok := pair.Key.(Text)
		if !ok {
			return nil, errors.New("map key must be a text string")
		}
		rawKey, err := json.Marshal(string(key))
		if err != nil {
			return nil, err
		}
		out = append(out, rawKey...)
		out = append(out, ':')
		rawVal, err := json.Marshal(pair.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, rawVal...)
	}
	return append(out, '}'), nil
}

// MarshalJSON implements json.Marshaler. The tag number cannot be expressed
// in JSON, so only the content is written.
func (v Tagged) MarshalJSON() ([]byte, error) {
	if v.Content == nil {
		return nil, errors.New("tagged value has no content")
	}
	return json.Marshal(v.Content)
}

// DecodeJSON consumes exactly one JSON value and classifies it into the
// Value union. Object entry order is preserved.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				el, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, el)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		case '{':
			m := Map{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				m = append(m, Pair{Key: Text(key), Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t.String())
		}
	case string:
		return Text(t), nil
	case json.Number:
		return decodeJSONNumber(t)
	case bool:
		return Bool(t), nil
	case nil:
		return nil, ErrNull
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeJSONNumber(n json.Number) (Value, error) {
	if !strings.ContainsAny(string(n), ".eE") {
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer %s overflows int64", string(n))
		}
		return Integer(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	return Float(f), nil
}

// DecodeJSONAs decodes one JSON value that must conform to the given kind.
// This is the strict decode path used for registered extension slots.
func DecodeJSONAs(data []byte, k Kind) (Value, error) {
	if isJSONNull(data) {
		return nil, ErrNull
	}
	switch k {
	case KindBool:
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case KindText:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case KindBytes:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		raw, err := base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return Bytes(raw), nil
	case KindInteger:
		var i int64
		if err := json.Unmarshal(data, &i); err != nil {
			return nil, err
		}
		return Integer(i), nil
	case KindFloat:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return Float(f), nil
	case KindArray, KindMap, KindTagged:
		v, err := DecodeJSON(data)
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

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
