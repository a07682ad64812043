package ear

// Error is a typed error for token construction, codec and signing failures.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrParse is returned when wire input cannot be decoded.
	ErrParse = Error("parse error")
	// ErrFormat is returned when a value cannot be represented in the
	// requested wire form.
	ErrFormat = Error("format error")
	// ErrSign is returned when signing fails or the algorithm is not
	// supported by the chosen envelope.
	ErrSign = Error("sign error")
	// ErrVerify is returned when signature verification fails or the signed
	// payload cannot be decoded.
	ErrVerify = Error("verify error")
	// ErrKey is returned when key material cannot be parsed or used.
	ErrKey = Error("key error")
	// ErrValidation is returned when a token violates a structural invariant.
	ErrValidation = Error("validation error")
	// ErrProfile is returned for profile registration and lookup failures.
	ErrProfile = Error("profile error")
	// ErrInvalidName is returned for an unknown field name during decode.
	ErrInvalidName = Error("invalid name")
	// ErrInvalidKey is returned for an unknown field key during decode.
	ErrInvalidKey = Error("invalid key")
)
