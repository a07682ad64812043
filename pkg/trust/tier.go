// Package trust implements the trustworthiness tiers and claims defined by
// draft-ietf-rats-ar4si, which appraisals use to grade individual aspects
// of the attested environment.
package trust

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Tier is the coarse trustworthiness classification derived from claim
// values. Tiers are ordered: a higher value indicates a worse appraisal.
type Tier int8

const (
	// TierNone means no claim is being made, either because appraisal has
	// not happened yet or because the evidence was insufficient.
	TierNone Tier = 0
	// TierAffirming means the appraised aspect is acceptable.
	TierAffirming Tier = 2
	// TierWarning means the appraised aspect is questionable and the
	// relying party should proceed with caution.
	TierWarning Tier = 32
	// TierContraindicated means the appraised aspect is unacceptable.
	TierContraindicated Tier = 96
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierAffirming:
		return "affirming"
	case TierWarning:
		return "warning"
	case TierContraindicated:
		return "contraindicated"
	}
	return fmt.Sprintf("TrustTier(%d)", int8(t))
}

// ParseTier maps a tier name to its value. Names are matched
// case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(s) {
	case "none":
		return TierNone, nil
	case "affirming":
		return TierAffirming, nil
	case "warning":
		return TierWarning, nil
	case "contraindicated":
		return TierContraindicated, nil
	}
	return TierNone, fmt.Errorf("%w: %s", ErrInvalidName, s)
}

// TierFromInt maps an integer to a tier. Only the four defined tier values
// are accepted.
func TierFromInt(v int64) (Tier, error) {
	switch v {
	case int64(TierNone):
		return TierNone, nil
	case int64(TierAffirming):
		return TierAffirming, nil
	case int64(TierWarning):
		return TierWarning, nil
	case int64(TierContraindicated):
		return TierContraindicated, nil
	}
	return TierNone, fmt.Errorf("%w: %d", ErrInvalidValue, v)
}

// MarshalJSON implements json.Marshaler. Tiers are written as their names
// in the human readable form.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler. Both the name and the integer
// forms are accepted.
func (t *Tier) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("unexpected trust tier value %q", string(data))
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		parsed, err := ParseTier(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	var i int64
	if err := json.Unmarshal(trimmed, &i); err != nil {
		return fmt.Errorf("unexpected trust tier value %s", string(trimmed))
	}
	parsed, err := TierFromInt(i)
	if err != nil {
		return fmt.Errorf("unexpected trust tier value %d", i)
	}
	*t = parsed
	return nil
}

// MarshalCBOR implements cbor.Marshaler. Tiers are written as their integer
// values in the binary form.
func (t Tier) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(int8(t))
}

// UnmarshalCBOR implements cbor.Unmarshaler. Both the integer and the name
// forms are accepted.
func (t *Tier) UnmarshalCBOR(data []byte) error {
	var i int64
	if err := cbor.Unmarshal(data, &i); err == nil {
		parsed, err := TierFromInt(i)
		if err != nil {
			return fmt.Errorf("unexpected trust tier value %d", i)
		}
		*t = parsed
		return nil
	}
	var s string
	if err := cbor.Unmarshal(data, &s); err == nil {
		parsed, err := ParseTier(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	return errors.New("unexpected trust tier encoding")
}
