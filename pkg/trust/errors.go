package trust

// Error is a typed error for trust tier and claim lookups.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrInvalidValue is returned when an integer does not map to a known
	// tier or claim.
	ErrInvalidValue = Error("invalid value")
	// ErrInvalidName is returned when a string does not name a known tier
	// or claim.
	ErrInvalidName = Error("invalid name")
	// ErrInvalidKey is returned when an integer key does not identify a
	// claim in the vector.
	ErrInvalidKey = Error("invalid key")
)
