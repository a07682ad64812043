package ear_test

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/DIMO-Network/ear/pkg/ear"
	"github.com/DIMO-Network/ear/pkg/trust"
	"github.com/DIMO-Network/ear/pkg/value"
)

// testEar builds the minimal valid token used across the signing and codec
// tests.
func testEar() *ear.Ear {
	e := ear.New()
	e.Profile = "test"
	e.IssuedAt = 1
	e.VerifierID = ear.VerifierID{
		Build:     "vsts 0.0.1",
		Developer: "https://veraison-project.org",
	}
	e.Submods["test"] = ear.NewAppraisal()
	return e
}

func TestEarValidate(t *testing.T) {
	t.Parallel()

	e := ear.New()

	err := e.Validate()
	require.ErrorIs(t, err, ear.ErrValidation)
	require.EqualError(t, err, "validation error: empty profile")

	e.Profile = "test"
	require.EqualError(t, e.Validate(), "validation error: empty submods")

	e.Submods["test"] = ear.NewAppraisal()
	require.EqualError(t, e.Validate(), "validation error: iat unset")

	e.IssuedAt = 1
	require.EqualError(t, e.Validate(), "validation error: verifier-id: empty build")

	e.VerifierID.Build = "vsts 0.0.1"
	require.EqualError(t, e.Validate(), "validation error: verifier-id: empty developer")

	e.VerifierID.Developer = "https://veraison-project.org"
	require.NoError(t, e.Validate())
}

func TestEarJSON(t *testing.T) {
	t.Parallel()

	t.Run("encode", func(t *testing.T) {
		t.Parallel()

		e := ear.New()
		e.Profile = "tag:github.com,2023:veraison/ear"
		e.IssuedAt = 1666529184
		e.VerifierID = ear.VerifierID{
			Build:     "vsts 0.0.1",
			Developer: "https://veraison-project.org",
		}
		e.Submods["test"] = ear.NewAppraisal()
		e.RawEvidence = value.Bytes("74726973656374\n")

		out, err := json.Marshal(e)
		require.NoError(t, err)
		require.Equal(t,
			`{"ear.raw-evidence":"NzQ3MjY5NzM2NTYzNzQK",`+
				`"ear.verifier-id":{"build":"vsts 0.0.1","developer":"https://veraison-project.org"},`+
				`"eat_profile":"tag:github.com,2023:veraison/ear",`+
				`"iat":1666529184,`+
				`"submods":{"test":{"ear.status":"none"}}}`,
			string(out))
	})

	t.Run("decode", func(t *testing.T) {
		t.Parallel()

		input := `{
			"eat_profile": "tag:github.com,2023:veraison/ear",
			"iat": 1666529184,
			"ear.verifier-id": {
				"build": "vsts 0.0.1",
				"developer": "https://veraison-project.org"
			},
			"submods": {
				"test": {"ear.status": "none"}
			},
			"ear.raw-evidence": "NzQ3MjY5NzM2NTYzNzQK"
		}`

		var e ear.Ear
		require.NoError(t, json.Unmarshal([]byte(input), &e))

		require.Equal(t, "tag:github.com,2023:veraison/ear", e.Profile)
		require.Equal(t, int64(1666529184), e.IssuedAt)
		require.Equal(t, "vsts 0.0.1", e.VerifierID.Build)
		require.Equal(t, "https://veraison-project.org", e.VerifierID.Developer)
		require.Equal(t, value.Bytes("74726973656374\n"), e.RawEvidence)
		require.Len(t, e.Submods, 1)
		require.Equal(t, trust.TierNone, e.Submods["test"].Status)
	})

	t.Run("encode validates", func(t *testing.T) {
		t.Parallel()

		_, err := json.Marshal(ear.New())
		require.ErrorIs(t, err, ear.ErrValidation)
	})

	t.Run("decode validates", func(t *testing.T) {
		t.Parallel()

		input := `{
			"eat_profile": "test",
			"iat": 1,
			"ear.verifier-id": {"build": "b", "developer": "d"},
			"submods": {}
		}`

		var e ear.Ear
		err := json.Unmarshal([]byte(input), &e)
		require.ErrorIs(t, err, ear.ErrValidation)
		require.EqualError(t, err, "validation error: empty submods")
	})

	t.Run("bad field", func(t *testing.T) {
		t.Parallel()

		var e ear.Ear
		err := json.Unmarshal([]byte(`{"iat": "not-a-number"}`), &e)
		require.ErrorIs(t, err, ear.ErrParse)
		require.ErrorContains(t, err, "iat")
	})

	t.Run("round trip with nonce", func(t *testing.T) {
		t.Parallel()

		e := testEar()
		nonce, err := ear.NewTextNonce("0123456789abcdef")
		require.NoError(t, err)
		e.Nonce = nonce

		out, err := json.Marshal(e)
		require.NoError(t, err)
		require.Contains(t, string(out), `"eat_nonce":"0123456789abcdef"`)

		var got ear.Ear
		require.NoError(t, json.Unmarshal(out, &got))
		require.True(t, e.Equal(&got))
	})

	t.Run("unknown members are collected", func(t *testing.T) {
		t.Parallel()

		input := `{
			"eat_profile": "test",
			"iat": 1,
			"ear.verifier-id": {"build": "b", "developer": "d"},
			"submods": {"test": {"ear.status": "none"}},
			"ext.company-name": "Acme Inc."
		}`

		var e ear.Ear
		require.NoError(t, json.Unmarshal([]byte(input), &e))

		require.NoError(t, e.Extensions.Register("ext.company-name", -65537, value.KindText))
		got, ok := e.Extensions.GetByName("ext.company-name")
		require.True(t, ok)
		require.Equal(t, value.Text("Acme Inc."), got)
	})
}

func TestEarCBOR(t *testing.T) {
	t.Parallel()

	goldenEar := func() *ear.Ear {
		e := ear.New()
		e.Profile = "tag:github.com,2023:veraison/ear"
		e.IssuedAt = 1666529184
		e.VerifierID = ear.VerifierID{
			Build:     "vsts 0.0.1",
			Developer: "https://veraison-project.org",
		}
		e.Submods["test"] = ear.NewAppraisal()
		e.RawEvidence = value.Bytes("74726973656374\n")
		return e
	}

	t.Run("encode", func(t *testing.T) {
		t.Parallel()

		out, err := goldenEar().MarshalCBOR()
		require.NoError(t, err)

		expected := []byte{
			0xa5,             // map(5)
			0x19, 0x01, 0x09, // 265
			0x78, 0x20, // text(32)
			't', 'a', 'g', ':', 'g', 'i', 't', 'h', 'u', 'b', '.', 'c', 'o', 'm', ',', '2',
			'0', '2', '3', ':', 'v', 'e', 'r', 'a', 'i', 's', 'o', 'n', '/', 'e', 'a', 'r',
			0x06,                         // 6
			0x1a, 0x63, 0x55, 0x37, 0xa0, // 1666529184
			0x19, 0x03, 0xec, // 1004
			0xa2,       // map(2)
			0x00,       // 0
			0x78, 0x1c, // text(28)
			'h', 't', 't', 'p', 's', ':', '/', '/', 'v', 'e', 'r', 'a', 'i', 's', 'o', 'n',
			'-', 'p', 'r', 'o', 'j', 'e', 'c', 't', '.', 'o', 'r', 'g',
			0x01, // 1
			0x6a, // text(10)
			'v', 's', 't', 's', ' ', '0', '.', '0', '.', '1',
			0x19, 0x01, 0x0a, // 266
			0xa1,                         // map(1)
			0x64, 't', 'e', 's', 't', // "test"
			0xa1, 0x19, 0x03, 0xe8, 0x00, // {1000: 0}
			0x19, 0x03, 0xea, // 1002
			0x4f, // bytes(15)
			0x37, 0x34, 0x37, 0x32, 0x36, 0x39, 0x37, 0x33, 0x36, 0x35, 0x36, 0x33, 0x37,
			0x34, 0x0a,
		}
		require.Equal(t, expected, out)
	})

	t.Run("decode indefinite maps", func(t *testing.T) {
		t.Parallel()

		input := []byte{
			0xbf,             // map (indefinite length)
			0x19, 0x01, 0x09, // 265
			0x78, 0x20, // text(32)
			't', 'a', 'g', ':', 'g', 'i', 't', 'h', 'u', 'b', '.', 'c', 'o', 'm', ',', '2',
			'0', '2', '3', ':', 'v', 'e', 'r', 'a', 'i', 's', 'o', 'n', '/', 'e', 'a', 'r',
			0x06,                         // 6
			0x1a, 0x63, 0x55, 0x37, 0xa0, // 1666529184
			0x19, 0x03, 0xec, // 1004
			0xa2,       // map(2)
			0x00,       // 0
			0x78, 0x1c, // text(28)
			'h', 't', 't', 'p', 's', ':', '/', '/', 'v', 'e', 'r', 'a', 'i', 's', 'o', 'n',
			'-', 'p', 'r', 'o', 'j', 'e', 'c', 't', '.', 'o', 'r', 'g',
			0x01, // 1
			0x6a, // text(10)
			'v', 's', 't', 's', ' ', '0', '.', '0', '.', '1',
			0x19, 0x01, 0x0a, // 266
			0xa1,                         // map(1)
			0x64, 't', 'e', 's', 't', // "test"
			0xbf, 0x19, 0x03, 0xe8, 0x00, 0xff, // {1000: 0} (indefinite)
			0x19, 0x03, 0xea, // 1002
			0x4f, // bytes(15)
			0x37, 0x34, 0x37, 0x32, 0x36, 0x39, 0x37, 0x33, 0x36, 0x35, 0x36, 0x33, 0x37,
			0x34, 0x0a,
			0xff, // break
		}

		var e ear.Ear
		require.NoError(t, cbor.Unmarshal(input, &e))
		require.True(t, goldenEar().Equal(&e))
	})

	t.Run("decode validates", func(t *testing.T) {
		t.Parallel()

		// {265: "test", 6: 1, 1004: {0: "devel", 1: "build"}, 266: {}}
		input := []byte{
			0xa4,
			0x19, 0x01, 0x09, 0x64, 't', 'e', 's', 't',
			0x06, 0x01,
			0x19, 0x03, 0xec, 0xa2,
			0x00, 0x65, 'd', 'e', 'v', 'e', 'l',
			0x01, 0x65, 'b', 'u', 'i', 'l', 'd',
			0x19, 0x01, 0x0a, 0xa0,
		}

		var e ear.Ear
		err := cbor.Unmarshal(input, &e)
		require.ErrorIs(t, err, ear.ErrValidation)
		require.EqualError(t, err, "validation error: empty submods")
	})

	t.Run("round trip with nonce and extensions", func(t *testing.T) {
		t.Parallel()

		e := testEar()
		nonce, err := ear.NewBytesNonce([]byte{0xde, 0xad, 0xbe, 0xef, 0xde, 0xad, 0xbe, 0xef})
		require.NoError(t, err)
		e.Nonce = nonce

		require.NoError(t, e.Extensions.Register("ext.serial", -65537, value.KindInteger))
		require.NoError(t, e.Extensions.SetByName("ext.serial", value.Integer(42)))

		out, err := e.MarshalCBOR()
		require.NoError(t, err)

		var got ear.Ear
		require.NoError(t, cbor.Unmarshal(out, &got))

		require.True(t, e.Nonce.Equal(got.Nonce))
		collected, ok := got.Extensions.GetByKey(-65537)
		require.False(t, ok)
		require.Nil(t, collected)

		require.NoError(t, got.Extensions.Register("ext.serial", -65537, value.KindInteger))
		v, ok := got.Extensions.GetByKey(-65537)
		require.True(t, ok)
		require.Equal(t, value.Integer(42), v)
	})
}

func TestEarUpdateStatusFromTrustVector(t *testing.T) {
	t.Parallel()

	e := testEar()

	fresh := ear.NewAppraisal()
	fresh.TrustVector.Executables.Set(trust.UnsafeRuntime)
	e.Submods["fresh"] = fresh

	preset := ear.NewAppraisal()
	preset.Status = trust.TierAffirming
	preset.TrustVector.Executables.Set(trust.ContraindicatedRuntime)
	e.Submods["preset"] = preset

	e.UpdateStatusFromTrustVector()

	require.Equal(t, trust.TierWarning, e.Submods["fresh"].Status)
	// Submods whose status was already set are not touched.
	require.Equal(t, trust.TierAffirming, e.Submods["preset"].Status)
}
