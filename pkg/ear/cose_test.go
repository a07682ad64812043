package ear_test

import (
	"encoding/json"
	"encoding/pem"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"

	"github.com/DIMO-Network/ear/pkg/ear"
)

func TestSignCOSERoundTrip(t *testing.T) {
	t.Parallel()

	e := testEar()

	signed, err := e.SignCOSE(ear.AlgorithmES256, []byte(testSigningKeyPEM))
	require.NoError(t, err)

	got, err := ear.VerifyCOSE(signed, ear.AlgorithmES256, []byte(testVerifKeyJWK))
	require.NoError(t, err)
	require.True(t, e.Equal(got))
}

func TestSignCOSEAlgorithms(t *testing.T) {
	t.Parallel()

	algs := []ear.Algorithm{
		ear.AlgorithmES256,
		ear.AlgorithmES384,
		ear.AlgorithmES512,
		ear.AlgorithmEdDSA,
	}

	for _, alg := range algs {
		t.Run(alg.String(), func(t *testing.T) {
			t.Parallel()

			pemKey, jwkKey := testKeyPair(t, alg)
			e := testEar()

			signed, err := e.SignCOSE(alg, pemKey)
			require.NoError(t, err)

			got, err := ear.VerifyCOSE(signed, alg, jwkKey)
			require.NoError(t, err)
			require.True(t, e.Equal(got))
		})
	}
}

func TestSignCOSEDER(t *testing.T) {
	t.Parallel()

	block, _ := pem.Decode([]byte(testSigningKeyPEM))
	require.NotNil(t, block)

	signed, err := testEar().SignCOSEDER(ear.AlgorithmES256, block.Bytes)
	require.NoError(t, err)

	_, err = ear.VerifyCOSE(signed, ear.AlgorithmES256, []byte(testVerifKeyJWK))
	require.NoError(t, err)
}

func TestSignCOSERSANotSupported(t *testing.T) {
	t.Parallel()

	_, err := testEar().SignCOSE(ear.AlgorithmPS256, []byte(testSigningKeyPEM))
	require.ErrorIs(t, err, ear.ErrSign)
	require.EqualError(t, err, "sign error: algorithm PS256 not supported")
}

func TestSignCOSEAlgorithmKeyMismatch(t *testing.T) {
	t.Parallel()

	// P-256 key signed with ES384.
	_, err := testEar().SignCOSE(ear.AlgorithmES384, []byte(testSigningKeyPEM))
	require.ErrorIs(t, err, ear.ErrSign)
	require.EqualError(t, err, "sign error: specified algorithm doesn't match key")
}

func TestSignCOSEValidates(t *testing.T) {
	t.Parallel()

	_, err := ear.New().SignCOSE(ear.AlgorithmES256, []byte(testSigningKeyPEM))
	require.ErrorIs(t, err, ear.ErrValidation)
}

func TestVerifyCOSEDeclaredAlgorithm(t *testing.T) {
	t.Parallel()

	signed, err := testEar().SignCOSE(ear.AlgorithmES256, []byte(testSigningKeyPEM))
	require.NoError(t, err)

	key, err := jwk.ParseKey([]byte(testVerifKeyJWK))
	require.NoError(t, err)

	t.Run("declared overrides requested", func(t *testing.T) {
		t.Parallel()

		declared, err := key.Clone()
		require.NoError(t, err)
		require.NoError(t, declared.Set(jwk.AlgorithmKey, jwa.ES256))

		jwkKey, err := json.Marshal(declared)
		require.NoError(t, err)

		got, err := ear.VerifyCOSE(signed, ear.AlgorithmES384, jwkKey)
		require.NoError(t, err)
		require.Equal(t, "test", got.Profile)
	})

	t.Run("unsupported declared algorithm", func(t *testing.T) {
		t.Parallel()

		declared, err := key.Clone()
		require.NoError(t, err)
		require.NoError(t, declared.Set(jwk.AlgorithmKey, jwa.PS256))

		jwkKey, err := json.Marshal(declared)
		require.NoError(t, err)

		_, err = ear.VerifyCOSE(signed, ear.AlgorithmES256, jwkKey)
		require.ErrorIs(t, err, ear.ErrKey)
		require.EqualError(t, err, "key error: unsupported algorithm PS256")
	})
}

func TestVerifyCOSETampered(t *testing.T) {
	t.Parallel()

	signed, err := testEar().SignCOSE(ear.AlgorithmES256, []byte(testSigningKeyPEM))
	require.NoError(t, err)

	tampered := make([]byte, len(signed))
	copy(tampered, signed)
	tampered[len(tampered)-1] ^= 0x01

	_, err = ear.VerifyCOSE(tampered, ear.AlgorithmES256, []byte(testVerifKeyJWK))
	require.ErrorIs(t, err, ear.ErrVerify)
}

func TestVerifyCOSEBadKey(t *testing.T) {
	t.Parallel()

	signed, err := testEar().SignCOSE(ear.AlgorithmES256, []byte(testSigningKeyPEM))
	require.NoError(t, err)

	_, err = ear.VerifyCOSE(signed, ear.AlgorithmES256, []byte(`{"kty":"oct","k":"c2VjcmV0"}`))
	require.ErrorIs(t, err, ear.ErrKey)
}
