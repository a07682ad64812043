package ear

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/DIMO-Network/ear/pkg/extensions"
	"github.com/DIMO-Network/ear/pkg/trust"
	"github.com/DIMO-Network/ear/pkg/value"
)

// Ear is an EAT attestation result: the token a verifier produces after
// appraising attestation evidence, for consumption by relying parties.
type Ear struct {
	// Profile is the identifier of the profile the token conforms to.
	Profile string
	// IssuedAt is the UNIX timestamp at which the token was produced.
	IssuedAt int64
	// VerifierID identifies the verifier that produced the token.
	VerifierID VerifierID
	// Submods holds one appraisal per attested environment, keyed by the
	// environment's name.
	Submods map[string]*Appraisal
	// Nonce echoes the relying party's freshness challenge, if one was
	// supplied with the evidence.
	Nonce *Nonce
	// RawEvidence is the evidence the verifier appraised, in its original
	// wire form.
	RawEvidence value.Bytes
	// Extensions holds the profile defined token fields.
	Extensions *extensions.Registry
}

// New creates an empty token. Profile, IssuedAt, VerifierID and at least
// one submod must be populated before the token can be encoded.
func New() *Ear {
	return &Ear{
		Submods:    map[string]*Appraisal{},
		Extensions: extensions.NewRegistry(),
	}
}

// NewWithProfile creates an empty token conforming to a registered profile,
// carrying the extension fields the profile declares.
func NewWithProfile(id string) (*Ear, error) {
	profile, ok := GetProfile(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s not registered", ErrProfile, id)
	}
	e := New()
	e.Profile = id
	if err := profile.PopulateEar(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the token's structural invariants. It runs before every
// encode and after every decode, so an invalid token never reaches or
// leaves the wire.
func (e *Ear) Validate() error {
	if e.Profile == "" {
		return fmt.Errorf("%w: empty profile", ErrValidation)
	}
	if len(e.Submods) == 0 {
		return fmt.Errorf("%w: empty submods", ErrValidation)
	}
	if e.IssuedAt == 0 {
		return fmt.Errorf("%w: iat unset", ErrValidation)
	}
	if err := e.VerifierID.check(); err != nil {
		return fmt.Errorf("%w: verifier-id: %v", ErrValidation, err)
	}
	return nil
}

// UpdateStatusFromTrustVector recomputes the status of every submod whose
// status has not been set yet from its trust vector. Statuses already set
// by the verifier are left alone.
func (e *Ear) UpdateStatusFromTrustVector() {
	for _, appraisal := range e.Submods {
		if appraisal.Status == trust.TierNone {
			appraisal.UpdateStatusFromTrustVector()
		}
	}
}

// Equal reports whether two tokens carry the same claims.
func (e *Ear) Equal(other *Ear) bool {
	if e.Profile != other.Profile ||
		e.IssuedAt != other.IssuedAt ||
		e.VerifierID != other.VerifierID {
		return false
	}
	if len(e.Submods) != len(other.Submods) {
		return false
	}
	for name, appraisal := range e.Submods {
		otherAppraisal, ok := other.Submods[name]
		if !ok || !appraisal.Equal(otherAppraisal) {
			return false
		}
	}
	if (e.Nonce == nil) != (other.Nonce == nil) {
		return false
	}
	if e.Nonce != nil && !e.Nonce.Equal(other.Nonce) {
		return false
	}
	return value.Equal(e.RawEvidence, other.RawEvidence) &&
		e.Extensions.Equal(other.Extensions)
}

// MarshalJSON implements json.Marshaler. The token is validated first, so
// an incomplete token is never encoded.
func (e *Ear) MarshalJSON() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	obj := map[string]json.RawMessage{}

	raw, err := json.Marshal(e.Profile)
	if err != nil {
		return nil, err
	}
	obj["eat_profile"] = raw

	if raw, err = json.Marshal(e.IssuedAt); err != nil {
		return nil, err
	}
	obj["iat"] = raw

	if raw, err = json.Marshal(e.VerifierID); err != nil {
		return nil, err
	}
	obj["ear.verifier-id"] = raw

	if raw, err = json.Marshal(e.Submods); err != nil {
		return nil, err
	}
	obj["submods"] = raw

	if e.Nonce != nil && !e.Nonce.IsEmpty() {
		if raw, err = json.Marshal(e.Nonce); err != nil {
			return nil, err
		}
		obj["eat_nonce"] = raw
	}

	if len(e.RawEvidence) > 0 {
		if raw, err = json.Marshal(e.RawEvidence); err != nil {
			return nil, err
		}
		obj["ear.raw-evidence"] = raw
	}

	if err = e.Extensions.EncodeEntriesJSON(obj); err != nil {
		return nil, err
	}

	return json.Marshal(obj)
}

// UnmarshalJSON implements json.Unmarshaler. Unrecognized members are
// routed to Extensions, the profile's extensions are bound if the profile
// is registered, and the result is validated.
func (e *Ear) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	*e = *New()
	for _, name := range sortedNames(obj) {
		raw := obj[name]
		var err error
		switch name {
		case "eat_profile":
			err = json.Unmarshal(raw, &e.Profile)
		case "iat":
			err = json.Unmarshal(raw, &e.IssuedAt)
		case "ear.verifier-id":
			err = json.Unmarshal(raw, &e.VerifierID)
		case "submods":
			e.Submods, err = unmarshalSubmodsJSON(raw)
		case "eat_nonce":
			nonce := &Nonce{}
			if err = json.Unmarshal(raw, nonce); err == nil {
				e.Nonce = nonce
			}
		case "ear.raw-evidence":
			var v value.Value
			if v, err = value.DecodeJSONAs(raw, value.KindBytes); err == nil {
				e.RawEvidence = v.(value.Bytes)
			}
		default:
			err = e.Extensions.DecodeEntryJSON(name, raw)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrParse, name, err)
		}
	}
	return e.bindProfile()
}

// MarshalCBOR implements cbor.Marshaler. The token is validated first and
// fields are written in claim key order with definite lengths.
func (e *Ear) MarshalCBOR() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	w := &value.MapWriter{}

	if err := w.Put(int64(265), e.Profile); err != nil {
		return nil, err
	}
	if err := w.Put(int64(6), e.IssuedAt); err != nil {
		return nil, err
	}
	if err := w.Put(int64(1004), e.VerifierID); err != nil {
		return nil, err
	}

	raw, err := marshalSubmodsCBOR(e.Submods)
	if err != nil {
		return nil, err
	}
	if err = w.PutRaw(int64(266), raw); err != nil {
		return nil, err
	}

	if e.Nonce != nil && !e.Nonce.IsEmpty() {
		if err = w.Put(int64(10), e.Nonce); err != nil {
			return nil, err
		}
	}

	if len(e.RawEvidence) > 0 {
		if err = w.Put(int64(1002), e.RawEvidence); err != nil {
			return nil, err
		}
	}

	if err = e.Extensions.EncodeEntriesCBOR(w); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// UnmarshalCBOR implements cbor.Unmarshaler. Unrecognized keys are routed
// to Extensions, the profile's extensions are bound if the profile is
// registered, and the result is validated.
func (e *Ear) UnmarshalCBOR(data []byte) error {
	var obj map[int64]cbor.RawMessage
	if err := cbor.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	*e = *New()
	for _, key := range sortedKeys(obj) {
		raw := obj[key]
		var err error
		switch key {
		case 265:
			err = cbor.Unmarshal(raw, &e.Profile)
		case 6:
			err = cbor.Unmarshal(raw, &e.IssuedAt)
		case 1004:
			err = cbor.Unmarshal(raw, &e.VerifierID)
		case 266:
			e.Submods, err = unmarshalSubmodsCBOR(raw)
		case 10:
			nonce := &Nonce{}
			if err = cbor.Unmarshal(raw, nonce); err == nil {
				e.Nonce = nonce
			}
		case 1002:
			var v value.Value
			if v, err = value.DecodeCBORAs(raw, value.KindBytes); err == nil {
				e.RawEvidence = v.(value.Bytes)
			}
		default:
			err = e.Extensions.DecodeEntryCBOR(key, raw)
		}
		if err != nil {
			return fmt.Errorf("%w: %d: %v", ErrParse, key, err)
		}
	}
	return e.bindProfile()
}

// bindProfile finishes a decode: if the token names a registered profile,
// its declarations are bound so the extension values collected during the
// field sweep become reachable by name and key. The token is then
// validated.
func (e *Ear) bindProfile() error {
	if profile, ok := GetProfile(e.Profile); ok {
		if err := profile.PopulateEar(e); err != nil {
			return err
		}
	}
	return e.Validate()
}

func unmarshalSubmodsJSON(data []byte) (map[string]*Appraisal, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	submods := make(map[string]*Appraisal, len(obj))
	for _, name := range sortedNames(obj) {
		appraisal := &Appraisal{}
		if err := json.Unmarshal(obj[name], appraisal); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		submods[name] = appraisal
	}
	return submods, nil
}

func marshalSubmodsCBOR(submods map[string]*Appraisal) ([]byte, error) {
	names := make([]string, 0, len(submods))
	for name := range submods {
		names = append(names, name)
	}
	slices.Sort(names)

	w := &value.MapWriter{}
	for _, name := range names {
		if err := w.Put(name, submods[name]); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return w.Bytes(), nil
}

func unmarshalSubmodsCBOR(data []byte) (map[string]*Appraisal, error) {
	var obj map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	slices.Sort(names)

	submods := make(map[string]*Appraisal, len(obj))
	for _, name := range names {
		appraisal := &Appraisal{}
		if err := cbor.Unmarshal(obj[name], appraisal); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		submods[name] = appraisal
	}
	return submods, nil
}
