package ear

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// parsePrivateKeyPEM parses a PEM encoded private key of the family the
// algorithm requires.
func parsePrivateKeyPEM(alg Algorithm, data []byte) (crypto.PrivateKey, error) {
	var (
		key crypto.PrivateKey
		err error
	)
	switch alg {
	case AlgorithmES256, AlgorithmES384, AlgorithmES512:
		key, err = jwt.ParseECPrivateKeyFromPEM(data)
	case AlgorithmEdDSA:
		key, err = jwt.ParseEdPrivateKeyFromPEM(data)
	case AlgorithmPS256, AlgorithmPS384, AlgorithmPS512:
		key, err = jwt.ParseRSAPrivateKeyFromPEM(data)
	default:
		return nil, fmt.Errorf("%w: algorithm %s not supported", ErrSign, alg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}
	return key, nil
}

// parsePrivateKeyDER parses a DER encoded private key, accepting PKCS#8 as
// well as the family specific SEC 1 and PKCS#1 forms.
func parsePrivateKeyDER(alg Algorithm, data []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(data); err == nil {
		return checkKeyFamily(alg, key)
	}

	var (
		key crypto.PrivateKey
		err error
	)
	switch alg {
	case AlgorithmES256, AlgorithmES384, AlgorithmES512:
		key, err = x509.ParseECPrivateKey(data)
	case AlgorithmEdDSA:
		err = errors.New("ed25519 private keys must be PKCS#8 encoded")
	case AlgorithmPS256, AlgorithmPS384, AlgorithmPS512:
		key, err = x509.ParsePKCS1PrivateKey(data)
	default:
		return nil, fmt.Errorf("%w: algorithm %s not supported", ErrSign, alg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}
	return checkKeyFamily(alg, key)
}

// checkKeyFamily verifies that a parsed key belongs to the family the
// algorithm requires.
func checkKeyFamily(alg Algorithm, key crypto.PrivateKey) (crypto.PrivateKey, error) {
	var ok bool
	switch alg {
	case AlgorithmES256, AlgorithmES384, AlgorithmES512:
		_, ok = key.(*ecdsa.PrivateKey)
	case AlgorithmEdDSA:
		_, ok = key.(ed25519.PrivateKey)
	case AlgorithmPS256, AlgorithmPS384, AlgorithmPS512:
		_, ok = key.(*rsa.PrivateKey)
	default:
		return nil, fmt.Errorf("%w: algorithm %s not supported", ErrSign, alg)
	}
	if !ok {
		return nil, fmt.Errorf("%w: key type %T does not match algorithm %s", ErrKey, key, alg)
	}
	return key, nil
}

// publicKeyFromJWK extracts the public half of a JWK encoded verification
// key. Private JWKs are accepted and reduced to their public part.
func publicKeyFromJWK(data []byte) (crypto.PublicKey, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}
	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}
	switch k := raw.(type) {
	case *ecdsa.PrivateKey:
		return &k.PublicKey, nil
	case ed25519.PrivateKey:
		return k.Public(), nil
	case *rsa.PrivateKey:
		return &k.PublicKey, nil
	case *ecdsa.PublicKey, ed25519.PublicKey, *rsa.PublicKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrKey, raw)
	}
}
