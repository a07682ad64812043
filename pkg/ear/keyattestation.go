package ear

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/DIMO-Network/ear/pkg/value"
)

// KeyAttestation records the public key that the attester demonstrated
// possession of, as verified from the evidence.
type KeyAttestation struct {
	// PubKey is a SubjectPublicKeyInfo structure holding the attested key.
	PubKey value.Bytes
}

// Equal reports whether two key attestations hold the same key.
func (k *KeyAttestation) Equal(other *KeyAttestation) bool {
	if k == nil || other == nil {
		return k == other
	}
	return bytes.Equal(k.PubKey, other.PubKey)
}

// MarshalJSON implements json.Marshaler.
func (k KeyAttestation) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]value.Bytes{"akpub": k.PubKey})
}

// UnmarshalJSON implements json.Unmarshaler. Members other than akpub are
// rejected.
func (k *KeyAttestation) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*k = KeyAttestation{}
	for _, name := range sortedNames(obj) {
		if name != "akpub" {
			return fmt.Errorf("%w: %s", ErrInvalidName, name)
		}
		v, err := value.DecodeJSONAs(obj[name], value.KindBytes)
		if err != nil {
			return err
		}
		k.PubKey = v.(value.Bytes)
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (k KeyAttestation) MarshalCBOR() ([]byte, error) {
	w := &value.MapWriter{}
	if err := w.Put(int64(0), k.PubKey); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalCBOR implements cbor.Unmarshaler. Keys other than 0 are rejected.
func (k *KeyAttestation) UnmarshalCBOR(data []byte) error {
	var obj map[int64]cbor.RawMessage
	if err := cbor.Unmarshal(data, &obj); err != nil {
		return err
	}
	*k = KeyAttestation{}
	for _, key := range sortedKeys(obj) {
		if key != 0 {
			return fmt.Errorf("%w: %d", ErrInvalidKey, key)
		}
		v, err := value.DecodeCBORAs(obj[key], value.KindBytes)
		if err != nil {
			return err
		}
		k.PubKey = v.(value.Bytes)
	}
	return nil
}
