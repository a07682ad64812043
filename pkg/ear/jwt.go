package ear

import (
	"crypto"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SignJWT encodes the token as a signed JWT, using a PEM encoded private
// key.
func (e *Ear) SignJWT(alg Algorithm, pemKey []byte) (string, error) {
	return e.SignJWTWithHeader(alg, pemKey, nil)
}

// SignJWTDER is SignJWT for a DER encoded private key.
func (e *Ear) SignJWTDER(alg Algorithm, derKey []byte) (string, error) {
	method, err := jwtSigningMethod(alg)
	if err != nil {
		return "", err
	}
	key, err := parsePrivateKeyDER(alg, derKey)
	if err != nil {
		return "", err
	}
	return e.signJWT(method, key, nil)
}

// SignJWTWithHeader is SignJWT with extra header parameters merged into the
// JOSE header.
func (e *Ear) SignJWTWithHeader(alg Algorithm, pemKey []byte, header map[string]any) (string, error) {
	method, err := jwtSigningMethod(alg)
	if err != nil {
		return "", err
	}
	key, err := parsePrivateKeyPEM(alg, pemKey)
	if err != nil {
		return "", err
	}
	return e.signJWT(method, key, header)
}

func (e *Ear) signJWT(method jwt.SigningMethod, key crypto.PrivateKey, header map[string]any) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(method, jwtClaims{ear: e})
	for name, val := range header {
		token.Header[name] = val
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSign, err)
	}
	return signed, nil
}

// VerifyJWT checks a JWT encoded token against a JWK encoded verification
// key and decodes the payload. Tokens signed with any algorithm other than
// the given one are rejected.
func VerifyJWT(token string, alg Algorithm, jwkKey []byte) (*Ear, error) {
	key, err := publicKeyFromJWK(jwkKey)
	if err != nil {
		return nil, err
	}
	method, err := jwtSigningMethod(alg)
	if err != nil {
		return nil, err
	}
	claims := &jwtClaims{ear: &Ear{}}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{method.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerify, err)
	}
	return claims.ear, nil
}

// jwtSigningMethod maps an algorithm to its JOSE signing method. ES512 is
// not part of the JWT surface.
func jwtSigningMethod(alg Algorithm) (jwt.SigningMethod, error) {
	switch alg {
	case AlgorithmPS256:
		return jwt.SigningMethodPS256, nil
	case AlgorithmPS384:
		return jwt.SigningMethodPS384, nil
	case AlgorithmPS512:
		return jwt.SigningMethodPS512, nil
	case AlgorithmES256:
		return jwt.SigningMethodES256, nil
	case AlgorithmES384:
		return jwt.SigningMethodES384, nil
	case AlgorithmEdDSA:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("%w: algorithm %s not supported", ErrSign, alg)
	}
}

// jwtClaims adapts an Ear to the jwt.Claims interface. EAR tokens carry
// none of the registered JWT claims this library validates, so every getter
// reports absence.
type jwtClaims struct {
	ear *Ear
}

func (c jwtClaims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (c jwtClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (c jwtClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c jwtClaims) GetIssuer() (string, error)                   { return "", nil }
func (c jwtClaims) GetSubject() (string, error)                  { return "", nil }
func (c jwtClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

func (c jwtClaims) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ear)
}

func (c *jwtClaims) UnmarshalJSON(data []byte) error {
	if c.ear == nil {
		c.ear = &Ear{}
	}
	return json.Unmarshal(data, c.ear)
}
