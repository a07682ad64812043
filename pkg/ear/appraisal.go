package ear

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/DIMO-Network/ear/pkg/extensions"
	"github.com/DIMO-Network/ear/pkg/trust"
	"github.com/DIMO-Network/ear/pkg/value"
)

// Appraisal is the verifier's assessment of a single attested environment,
// one entry in a token's submods map.
type Appraisal struct {
	// Status is the overall trustworthiness tier of the environment. It
	// is no better than the worst tier in TrustVector, but a verifier may
	// set it worse.
	Status trust.Tier
	// TrustVector grades the individual aspects of the environment.
	TrustVector *trust.Vector
	// PolicyID identifies the appraisal policy the verifier applied, empty
	// if none.
	PolicyID string
	// AnnotatedEvidence is the evidence the verifier based the appraisal
	// on, broken out by label.
	AnnotatedEvidence map[string]value.Value
	// PolicyClaims holds additional claims produced by policy evaluation.
	PolicyClaims map[string]value.Value
	// KeyAttestation holds the attester's proof-of-possession key, if the
	// evidence carried one.
	KeyAttestation *KeyAttestation
	// Extensions holds the profile defined appraisal fields.
	Extensions *extensions.Registry
}

// NewAppraisal creates an empty appraisal with status none.
func NewAppraisal() *Appraisal {
	return &Appraisal{
		Status:            trust.TierNone,
		TrustVector:       trust.NewVector(),
		AnnotatedEvidence: map[string]value.Value{},
		PolicyClaims:      map[string]value.Value{},
		Extensions:        extensions.NewRegistry(),
	}
}

// NewAppraisalWithProfile creates an empty appraisal carrying the extension
// fields declared by a registered profile.
func NewAppraisalWithProfile(id string) (*Appraisal, error) {
	profile, ok := GetProfile(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s not registered", ErrProfile, id)
	}
	a := NewAppraisal()
	if err := profile.PopulateAppraisal(a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateStatusFromTrustVector raises Status to the worst tier among the
// claims in the trust vector. It never lowers an already worse status.
func (a *Appraisal) UpdateStatusFromTrustVector() {
	for _, claim := range a.TrustVector.Claims() {
		if tier := claim.Tier(); a.Status < tier {
			a.Status = tier
		}
	}
}

// Equal reports whether two appraisals carry the same claims.
func (a *Appraisal) Equal(other *Appraisal) bool {
	return a.Status == other.Status &&
		a.TrustVector.Equal(other.TrustVector) &&
		a.PolicyID == other.PolicyID &&
		valueMapsEqual(a.AnnotatedEvidence, other.AnnotatedEvidence) &&
		valueMapsEqual(a.PolicyClaims, other.PolicyClaims) &&
		a.KeyAttestation.Equal(other.KeyAttestation) &&
		a.Extensions.Equal(other.Extensions)
}

// MarshalJSON implements json.Marshaler. Optional fields that are unset are
// left out of the output.
func (a *Appraisal) MarshalJSON() ([]byte, error) {
	obj := map[string]json.RawMessage{}

	raw, err := json.Marshal(a.Status)
	if err != nil {
		return nil, err
	}
	obj["ear.status"] = raw

	if a.TrustVector != nil && a.TrustVector.AnySet() {
		if raw, err = json.Marshal(a.TrustVector); err != nil {
			return nil, err
		}
		obj["ear.trustworthiness-vector"] = raw
	}

	if a.PolicyID != "" {
		if raw, err = json.Marshal(a.PolicyID); err != nil {
			return nil, err
		}
		obj["ear.appraisal-policy-id"] = raw
	}

	if len(a.AnnotatedEvidence) > 0 {
		if raw, err = json.Marshal(a.AnnotatedEvidence); err != nil {
			return nil, err
		}
		obj["ear.veraison.annotated-evidence"] = raw
	}

	if len(a.PolicyClaims) > 0 {
		if raw, err = json.Marshal(a.PolicyClaims); err != nil {
			return nil, err
		}
		obj["ear.veraison.policy-claims"] = raw
	}

	if a.KeyAttestation != nil {
		if raw, err = json.Marshal(a.KeyAttestation); err != nil {
			return nil, err
		}
		obj["ear.veraison.key-attestation"] = raw
	}

	if err = a.Extensions.EncodeEntriesJSON(obj); err != nil {
		return nil, err
	}

	return json.Marshal(obj)
}

// UnmarshalJSON implements json.Unmarshaler. Unrecognized members are
// routed to Extensions.
func (a *Appraisal) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = *NewAppraisal()
	for _, name := range sortedNames(obj) {
		raw := obj[name]
		var err error
		switch name {
		case "ear.status":
			err = json.Unmarshal(raw, &a.Status)
		case "ear.trustworthiness-vector":
			err = json.Unmarshal(raw, a.TrustVector)
		case "ear.appraisal-policy-id":
			err = json.Unmarshal(raw, &a.PolicyID)
		case "ear.veraison.annotated-evidence":
			a.AnnotatedEvidence, err = unmarshalValueMapJSON(raw)
		case "ear.veraison.policy-claims":
			a.PolicyClaims, err = unmarshalValueMapJSON(raw)
		case "ear.veraison.key-attestation":
			ka := &KeyAttestation{}
			if err = json.Unmarshal(raw, ka); err == nil {
				a.KeyAttestation = ka
			}
		default:
			err = a.Extensions.DecodeEntryJSON(name, raw)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler. Fields are written in claim key
// order with definite lengths.
func (a *Appraisal) MarshalCBOR() ([]byte, error) {
	w := &value.MapWriter{}

	if err := w.Put(int64(1000), a.Status); err != nil {
		return nil, err
	}

	if a.TrustVector != nil && a.TrustVector.AnySet() {
		if err := w.Put(int64(1001), a.TrustVector); err != nil {
			return nil, err
		}
	}

	if a.PolicyID != "" {
		if err := w.Put(int64(1003), a.PolicyID); err != nil {
			return nil, err
		}
	}

	if len(a.AnnotatedEvidence) > 0 {
		raw, err := marshalValueMapCBOR(a.AnnotatedEvidence)
		if err != nil {
			return nil, err
		}
		if err = w.PutRaw(int64(-70000), raw); err != nil {
			return nil, err
		}
	}

	if len(a.PolicyClaims) > 0 {
		raw, err := marshalValueMapCBOR(a.PolicyClaims)
		if err != nil {
			return nil, err
		}
		if err = w.PutRaw(int64(-70001), raw); err != nil {
			return nil, err
		}
	}

	if a.KeyAttestation != nil {
		if err := w.Put(int64(-70002), a.KeyAttestation); err != nil {
			return nil, err
		}
	}

	if err := a.Extensions.EncodeEntriesCBOR(w); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// UnmarshalCBOR implements cbor.Unmarshaler. Unrecognized keys are routed
// to Extensions.
func (a *Appraisal) UnmarshalCBOR(data []byte) error {
	var obj map[int64]cbor.RawMessage
	if err := cbor.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = *NewAppraisal()
	for _, key := range sortedKeys(obj) {
		raw := obj[key]
		var err error
		switch key {
		case 1000:
			err = cbor.Unmarshal(raw, &a.Status)
		case 1001:
			err = cbor.Unmarshal(raw, a.TrustVector)
		case 1003:
			err = cbor.Unmarshal(raw, &a.PolicyID)
		case -70000:
			a.AnnotatedEvidence, err = unmarshalValueMapCBOR(raw)
		case -70001:
			a.PolicyClaims, err = unmarshalValueMapCBOR(raw)
		case -70002:
			ka := &KeyAttestation{}
			if err = cbor.Unmarshal(raw, ka); err == nil {
				a.KeyAttestation = ka
			}
		default:
			err = a.Extensions.DecodeEntryCBOR(key, raw)
		}
		if err != nil {
			return fmt.Errorf("%d: %w", key, err)
		}
	}
	return nil
}
