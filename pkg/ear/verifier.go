package ear

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/DIMO-Network/ear/pkg/value"
)

// VerifierID identifies the verifier that appraised the evidence and
// produced the token, so relying parties can judge how much weight to give
// its results.
type VerifierID struct {
	// Build names the specific software build of the verifier.
	Build string
	// Developer identifies the organization that develops the verifier,
	// typically as a URI.
	Developer string
}

func (v VerifierID) check() error {
	if v.Build == "" {
		return errors.New("empty build")
	}
	if v.Developer == "" {
		return errors.New("empty developer")
	}
	return nil
}

// Validate checks that both identity fields are populated.
func (v VerifierID) Validate() error {
	if err := v.check(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v VerifierID) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"build":     v.Build,
		"developer": v.Developer,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Members other than build and
// developer are rejected.
func (v *VerifierID) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*v = VerifierID{}
	for _, name := range sortedNames(obj) {
		var field *string
		switch name {
		case "build":
			field = &v.Build
		case "developer":
			field = &v.Developer
		default:
			return fmt.Errorf("%w: %s", ErrInvalidName, name)
		}
		if err := json.Unmarshal(obj[name], field); err != nil {
			return err
		}
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (v VerifierID) MarshalCBOR() ([]byte, error) {
	w := &value.MapWriter{}
	if err := w.Put(int64(0), v.Developer); err != nil {
		return nil, err
	}
	if err := w.Put(int64(1), v.Build); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalCBOR implements cbor.Unmarshaler. Keys other than 0 and 1 are
// rejected.
func (v *VerifierID) UnmarshalCBOR(data []byte) error {
	var obj map[int64]cbor.RawMessage
	if err := cbor.Unmarshal(data, &obj); err != nil {
		return err
	}
	*v = VerifierID{}
	for _, key := range sortedKeys(obj) {
		var field *string
		switch key {
		case 0:
			field = &v.Developer
		case 1:
			field = &v.Build
		default:
			return fmt.Errorf("%w: %d", ErrInvalidKey, key)
		}
		if err := cbor.Unmarshal(obj[key], field); err != nil {
			return err
		}
	}
	return nil
}
