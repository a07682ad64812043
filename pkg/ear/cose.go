package ear

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	cose "github.com/veraison/go-cose"
)

// SignCOSE encodes the token as a COSE_Sign1 message, using a PEM encoded
// private key.
func (e *Ear) SignCOSE(alg Algorithm, pemKey []byte) ([]byte, error) {
	coseAlg, err := coseAlgorithm(alg)
	if err != nil {
		return nil, err
	}
	key, err := parsePrivateKeyPEM(alg, pemKey)
	if err != nil {
		return nil, err
	}
	return e.signCOSE(coseAlg, key)
}

// SignCOSEDER is SignCOSE for a DER encoded private key.
func (e *Ear) SignCOSEDER(alg Algorithm, derKey []byte) ([]byte, error) {
	coseAlg, err := coseAlgorithm(alg)
	if err != nil {
		return nil, err
	}
	key, err := parsePrivateKeyDER(alg, derKey)
	if err != nil {
		return nil, err
	}
	return e.signCOSE(coseAlg, key)
}

func (e *Ear) signCOSE(alg cose.Algorithm, key crypto.PrivateKey) ([]byte, error) {
	coseKey, err := coseKeyFromPrivate(alg, key)
	if err != nil {
		return nil, err
	}
	signer, err := coseKey.Signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSign, err)
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	payload, err := e.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSign, err)
	}

	msg := cose.NewSign1Message()
	msg.Payload = payload
	msg.Headers.Protected.SetAlgorithm(alg)
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSign, err)
	}

	signed, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSign, err)
	}
	return signed, nil
}

// VerifyCOSE checks a COSE_Sign1 encoded token against a JWK encoded
// verification key and decodes the payload. If the key declares its own
// algorithm, the declared algorithm takes precedence over the given one.
func VerifyCOSE(token []byte, alg Algorithm, jwkKey []byte) (*Ear, error) {
	coseAlg, err := coseAlgorithm(alg)
	if err != nil {
		return nil, err
	}

	key, err := jwk.ParseKey(jwkKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}
	if declared, err := declaredCOSEAlgorithm(key); err != nil {
		return nil, err
	} else if declared != 0 {
		coseAlg = declared
	}

	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}
	coseKey, err := coseKeyFromPublic(coseAlg, raw)
	if err != nil {
		return nil, err
	}
	verifier, err := coseKey.Verifier()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerify, err)
	}

	decoded := &Ear{}
	if err := decoded.UnmarshalCBOR(msg.Payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerify, err)
	}
	return decoded, nil
}

// coseAlgorithm maps an algorithm to its COSE identifier. The RSA-PSS
// algorithms are not part of the COSE surface.
func coseAlgorithm(alg Algorithm) (cose.Algorithm, error) {
	switch alg {
	case AlgorithmES256:
		return cose.AlgorithmES256, nil
	case AlgorithmES384:
		return cose.AlgorithmES384, nil
	case AlgorithmES512:
		return cose.AlgorithmES512, nil
	case AlgorithmEdDSA:
		return cose.AlgorithmEdDSA, nil
	default:
		return 0, fmt.Errorf("%w: algorithm %s not supported", ErrSign, alg)
	}
}

// declaredCOSEAlgorithm returns the COSE identifier for the algorithm a JWK
// declares in its alg member, or zero if the member is absent.
func declaredCOSEAlgorithm(key jwk.Key) (cose.Algorithm, error) {
	alg := key.Algorithm()
	if alg == nil || alg.String() == "" {
		return 0, nil
	}
	switch alg.String() {
	case "ES256":
		return cose.AlgorithmES256, nil
	case "ES384":
		return cose.AlgorithmES384, nil
	case "EdDSA":
		return cose.AlgorithmEdDSA, nil
	default:
		return 0, fmt.Errorf("%w: unsupported algorithm %s", ErrKey, alg)
	}
}

func coseKeyFromPrivate(alg cose.Algorithm, key crypto.PrivateKey) (*cose.Key, error) {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		if curveAlgorithm(k.Curve) != alg {
			return nil, fmt.Errorf("%w: specified algorithm doesn't match key", ErrSign)
		}
		size := (k.Curve.Params().BitSize + 7) / 8
		x := make([]byte, size)
		y := make([]byte, size)
		d := make([]byte, size)
		k.X.FillBytes(x)
		k.Y.FillBytes(y)
		k.D.FillBytes(d)
		coseKey, err := cose.NewKeyEC2(alg, x, y, d)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKey, err)
		}
		return coseKey, nil
	case ed25519.PrivateKey:
		if alg != cose.AlgorithmEdDSA {
			return nil, fmt.Errorf("%w: specified algorithm doesn't match key", ErrSign)
		}
		coseKey, err := cose.NewKeyOKP(alg, k.Public().(ed25519.PublicKey), k.Seed())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKey, err)
		}
		return coseKey, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrKey, key)
	}
}

func coseKeyFromPublic(alg cose.Algorithm, key any) (*cose.Key, error) {
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256(), elliptic.P384(), elliptic.P521():
		default:
			return nil, fmt.Errorf("%w: invalid EC2 curve %s", ErrKey, k.Curve.Params().Name)
		}
		size := (k.Curve.Params().BitSize + 7) / 8
		x := make([]byte, size)
		y := make([]byte, size)
		k.X.FillBytes(x)
		k.Y.FillBytes(y)
		coseKey, err := cose.NewKeyEC2(alg, x, y, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKey, err)
		}
		return coseKey, nil
	case ed25519.PublicKey:
		coseKey, err := cose.NewKeyOKP(alg, k, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKey, err)
		}
		return coseKey, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrKey, key)
	}
}

// curveAlgorithm returns the COSE algorithm an EC curve pairs with, or zero
// for curves outside the COSE surface.
func curveAlgorithm(c elliptic.Curve) cose.Algorithm {
	switch c {
	case elliptic.P256():
		return cose.AlgorithmES256
	case elliptic.P384():
		return cose.AlgorithmES384
	case elliptic.P521():
		return cose.AlgorithmES512
	default:
		return 0
	}
}
