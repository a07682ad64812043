package trust

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/DIMO-Network/ear/pkg/value"
)

// Vector is the fixed set of eight trustworthiness claims an appraisal can
// make about an attested environment. The field order matches the canonical
// key assignment and must not change.
type Vector struct {
	InstanceIdentity Claim
	Configuration    Claim
	Executables      Claim
	FileSystem       Claim
	Hardware         Claim
	RuntimeOpaque    Claim
	StorageOpaque    Claim
	SourcedData      Claim
}

// NewVector returns a vector with every claim bound to its descriptor and
// unset.
func NewVector() *Vector {
	return &Vector{
		InstanceIdentity: Claim{desc: instanceIdentityDesc},
		Configuration:    Claim{desc: configurationDesc},
		Executables:      Claim{desc: executablesDesc},
		FileSystem:       Claim{desc: fileSystemDesc},
		Hardware:         Claim{desc: hardwareDesc},
		RuntimeOpaque:    Claim{desc: runtimeOpaqueDesc},
		StorageOpaque:    Claim{desc: storageOpaqueDesc},
		SourcedData:      Claim{desc: sourcedDataDesc},
	}
}

// Claims enumerates the claims in their canonical order, keys 0 through 7.
func (v *Vector) Claims() []*Claim {
	return []*Claim{
		&v.InstanceIdentity,
		&v.Configuration,
		&v.Executables,
		&v.FileSystem,
		&v.Hardware,
		&v.RuntimeOpaque,
		&v.StorageOpaque,
		&v.SourcedData,
	}
}

// ByName returns the claim with the given name.
func (v *Vector) ByName(name string) (*Claim, error) {
	for _, c := range v.Claims() {
		if c.Tag() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidName, name)
}

// ByKey returns the claim with the given integer key.
func (v *Vector) ByKey(key int64) (*Claim, error) {
	claims := v.Claims()
	if key < 0 || key >= int64(len(claims)) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKey, key)
	}
	return claims[key], nil
}

// AnySet reports whether at least one claim has been set.
func (v *Vector) AnySet() bool {
	for _, c := range v.Claims() {
		if c.IsSet() {
			return true
		}
	}
	return false
}

// SetAll assigns the same value to every claim.
func (v *Vector) SetAll(val int8) {
	for _, c := range v.Claims() {
		c.Set(val)
	}
}

// Equal reports whether two vectors carry the same claim values.
func (v *Vector) Equal(other *Vector) bool {
	a, b := v.Claims(), other.Claims()
	for i := range a {
		if !a[i].Equal(*b[i]) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler. Only claims that have been set are
// written.
func (v *Vector) MarshalJSON() ([]byte, error) {
	obj := make(map[string]int8)
	for _, c := range v.Claims() {
		if c.IsSet() {
			obj[c.Tag()] = c.Value()
		}
	}
	return json.Marshal(obj)
}

// UnmarshalJSON implements json.Unmarshaler. Unknown claim names are an
// error.
func (v *Vector) UnmarshalJSON(data []byte) error {
	*v = *NewVector()
	var obj map[string]int64
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for name, val := range obj {
		c, err := v.ByName(name)
		if err != nil {
			return err
		}
		if val < -128 || val > 127 {
			return fmt.Errorf("trust claim value %d out of range", val)
		}
		c.Set(int8(val))
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler. Set claims are written in the
// canonical key order.
func (v *Vector) MarshalCBOR() ([]byte, error) {
	w := &value.MapWriter{}
	for _, c := range v.Claims() {
		if !c.IsSet() {
			continue
		}
		if err := w.Put(c.Key(), c.Value()); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// UnmarshalCBOR implements cbor.Unmarshaler. Unknown claim keys are an
// error.
func (v *Vector) UnmarshalCBOR(data []byte) error {
	*v = *NewVector()
	var obj map[int64]int64
	if err := cbor.Unmarshal(data, &obj); err != nil {
		return err
	}
	for key, val := range obj {
		c, err := v.ByKey(key)
		if err != nil {
			return err
		}
		if val < -128 || val > 127 {
			return fmt.Errorf("trust claim value %d out of range", val)
		}
		c.Set(int8(val))
	}
	return nil
}
