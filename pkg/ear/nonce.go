package ear

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DIMO-Network/ear/pkg/value"
	"github.com/fxamacker/cbor/v2"
)

// Nonce holds the freshness value(s) echoed back by the verifier. A nonce
// carries one or more items, each either a text string of 8 to 88 characters
// or a byte string of 8 to 64 bytes.
//
// Byte items can only be written to CBOR and text items only to JSON;
// attempting the opposite is a format error rather than a silent coercion.
type Nonce struct {
	items []value.Value
}

// NewTextNonce creates a Nonce from one or more text items.
func NewTextNonce(items ...string) (*Nonce, error) {
	n := &Nonce{}
	for i, item := range items {
		if err := checkTextNonce(item); err != nil {
			return nil, nonceItemError(i, len(items), err)
		}
		n.items = append(n.items, value.Text(item))
	}
	return n, nil
}

// NewBytesNonce creates a Nonce from one or more byte items.
func NewBytesNonce(items ...[]byte) (*Nonce, error) {
	n := &Nonce{}
	for i, item := range items {
		if err := checkBytesNonce(item); err != nil {
			return nil, nonceItemError(i, len(items), err)
		}
		n.items = append(n.items, value.Bytes(bytes.Clone(item)))
	}
	return n, nil
}

func nonceItemError(i, total int, err error) error {
	if total > 1 {
		return fmt.Errorf("%w: item %d: %v", ErrParse, i, err)
	}
	return fmt.Errorf("%w: %v", ErrParse, err)
}

func checkTextNonce(s string) error {
	if len(s) < 8 || len(s) > 88 {
		return errors.New("nonce must be between 8 and 88 characters")
	}
	return nil
}

func checkBytesNonce(b []byte) error {
	if len(b) < 8 || len(b) > 64 {
		return errors.New("nonce must be between 8 and 64 bytes")
	}
	return nil
}

// Len returns the number of items in the nonce.
func (n *Nonce) Len() int {
	if n == nil {
		return 0
	}
	return len(n.items)
}

// IsEmpty reports whether the nonce holds no items.
func (n *Nonce) IsEmpty() bool {
	return n.Len() == 0
}

// String renders the nonce for display: text items verbatim, byte items as
// hex, and multiple items as a bracketed comma-separated list.
func (n *Nonce) String() string {
	switch n.Len() {
	case 0:
		return ""
	case 1:
		return nonceItemString(n.items[0])
	default:
		parts := make([]string, len(n.items))
		for i, item := range n.items {
			parts[i] = nonceItemString(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

func nonceItemString(v value.Value) string {
	switch item := v.(type) {
	case value.Text:
		return string(item)
	case value.Bytes:
		return hex.EncodeToString(item)
	default:
		return ""
	}
}

// Equal reports whether two nonces hold the same items in the same order.
func (n *Nonce) Equal(other *Nonce) bool {
	if n.Len() != other.Len() {
		return false
	}
	for i := 0; i < n.Len(); i++ {
		if !value.Equal(n.items[i], other.items[i]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the nonce for the JSON wire form. An empty nonce
// encodes as null; a single item encodes bare and multiple items as an array.
func (n *Nonce) MarshalJSON() ([]byte, error) {
	if n.Len() == 0 {
		return []byte("null"), nil
	}

	encoded := make([]json.RawMessage, 0, len(n.items))
	for _, item := range n.items {
		if item.Kind() != value.KindText {
			return nil, fmt.Errorf("%w: cannot write byte nonce to JSON", ErrFormat)
		}
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, data)
	}

	if len(encoded) == 1 {
		return encoded[0], nil
	}
	return json.Marshal(encoded)
}

// UnmarshalJSON decodes a nonce from a single text string or an array of
// text strings, validating item lengths.
func (n *Nonce) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("nonce must be a text string or an array of text strings")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if err := checkTextNonce(s); err != nil {
			return err
		}
		n.items = []value.Value{value.Text(s)}
		return nil
	case '[':
		var raw []string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		items := make([]value.Value, 0, len(raw))
		for _, s := range raw {
			if err := checkTextNonce(s); err != nil {
				return err
			}
			items = append(items, value.Text(s))
		}
		n.items = items
		return nil
	default:
		return errors.New("nonce must be a text string or an array of text strings")
	}
}

// MarshalCBOR encodes the nonce for the CBOR wire form. An empty nonce
// encodes as null; a single item encodes bare and multiple items as an array.
func (n *Nonce) MarshalCBOR() ([]byte, error) {
	if n.Len() == 0 {
		return []byte{0xf6}, nil
	}

	for _, item := range n.items {
		if item.Kind() != value.KindBytes {
			return nil, fmt.Errorf("%w: cannot write string nonce to CBOR", ErrFormat)
		}
	}

	if len(n.items) == 1 {
		return cbor.Marshal(n.items[0])
	}
	return value.Array(n.items).MarshalCBOR()
}

// UnmarshalCBOR decodes a nonce from a single byte or text string, or an
// array of them, validating item lengths.
func (n *Nonce) UnmarshalCBOR(data []byte) error {
	var raw any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch item := raw.(type) {
	case []byte:
		if err := checkBytesNonce(item); err != nil {
			return err
		}
		n.items = []value.Value{value.Bytes(item)}
	case string:
		if err := checkTextNonce(item); err != nil {
			return err
		}
		n.items = []value.Value{value.Text(item)}
	case []any:
		items := make([]value.Value, 0, len(item))
		for _, el := range item {
			switch e := el.(type) {
			case []byte:
				if err := checkBytesNonce(e); err != nil {
					return err
				}
				items = append(items, value.Bytes(e))
			case string:
				if err := checkTextNonce(e); err != nil {
					return err
				}
				items = append(items, value.Text(e))
			default:
				return errors.New("nonce item must be a text string or a byte string")
			}
		}
		n.items = items
	default:
		return errors.New("nonce must be a text string, a byte string, or an array")
	}
	return nil
}
