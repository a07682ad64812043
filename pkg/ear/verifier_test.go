package ear_test

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/DIMO-Network/ear/pkg/ear"
)

func TestVerifierIDValidate(t *testing.T) {
	t.Parallel()

	vid := ear.VerifierID{Build: "vsts 0.0.1", Developer: "https://veraison-project.org"}
	require.NoError(t, vid.Validate())

	err := ear.VerifierID{Developer: "https://veraison-project.org"}.Validate()
	require.ErrorIs(t, err, ear.ErrValidation)
	require.EqualError(t, err, "validation error: empty build")

	err = ear.VerifierID{Build: "vsts 0.0.1"}.Validate()
	require.ErrorIs(t, err, ear.ErrValidation)
	require.EqualError(t, err, "validation error: empty developer")
}

func TestVerifierIDJSON(t *testing.T) {
	t.Parallel()

	vid := ear.VerifierID{Build: "vsts 0.0.1", Developer: "https://veraison-project.org"}

	out, err := json.Marshal(vid)
	require.NoError(t, err)
	require.Equal(t, `{"build":"vsts 0.0.1","developer":"https://veraison-project.org"}`, string(out))

	var got ear.VerifierID
	require.NoError(t, json.Unmarshal(out, &got))
	require.Equal(t, vid, got)

	t.Run("unknown member", func(t *testing.T) {
		t.Parallel()

		var got ear.VerifierID
		err := json.Unmarshal([]byte(`{"build":"b","developer":"d","version":"1"}`), &got)
		require.ErrorIs(t, err, ear.ErrInvalidName)
		require.EqualError(t, err, "invalid name: version")
	})
}

func TestVerifierIDCBOR(t *testing.T) {
	t.Parallel()

	vid := ear.VerifierID{Build: "build", Developer: "devel"}

	out, err := vid.MarshalCBOR()
	require.NoError(t, err)
	// {0: "devel", 1: "build"}
	require.Equal(t, "a20065646576656c01656275696c64", hex.EncodeToString(out))

	var got ear.VerifierID
	require.NoError(t, cbor.Unmarshal(out, &got))
	require.Equal(t, vid, got)

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		var got ear.VerifierID
		err := cbor.Unmarshal([]byte{0xa1, 0x02, 0x60}, &got)
		require.ErrorIs(t, err, ear.ErrInvalidKey)
		require.EqualError(t, err, "invalid key: 2")
	})
}

func TestKeyAttestationJSON(t *testing.T) {
	t.Parallel()

	ka := ear.KeyAttestation{PubKey: []byte{0x01, 0x02, 0x03, 0x04}}

	out, err := json.Marshal(ka)
	require.NoError(t, err)
	require.Equal(t, `{"akpub":"AQIDBA"}`, string(out))

	var got ear.KeyAttestation
	require.NoError(t, json.Unmarshal(out, &got))
	require.True(t, ka.Equal(&got))

	t.Run("unknown member", func(t *testing.T) {
		t.Parallel()

		var got ear.KeyAttestation
		err := json.Unmarshal([]byte(`{"akpub":"AQID","kid":"x"}`), &got)
		require.ErrorIs(t, err, ear.ErrInvalidName)
	})
}

func TestKeyAttestationCBOR(t *testing.T) {
	t.Parallel()

	ka := ear.KeyAttestation{PubKey: []byte{0x01, 0x02, 0x03, 0x04}}

	out, err := ka.MarshalCBOR()
	require.NoError(t, err)
	// {0: h'01020304'}
	require.Equal(t, "a1004401020304", hex.EncodeToString(out))

	var got ear.KeyAttestation
	require.NoError(t, cbor.Unmarshal(out, &got))
	require.True(t, ka.Equal(&got))

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		var got ear.KeyAttestation
		err := cbor.Unmarshal([]byte{0xa1, 0x01, 0x41, 0x00}, &got)
		require.ErrorIs(t, err, ear.ErrInvalidKey)
		require.EqualError(t, err, "invalid key: 1")
	})
}
