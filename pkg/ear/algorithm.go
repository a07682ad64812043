package ear

import (
	"fmt"
	"strings"
)

// Algorithm identifies a signature algorithm for the signed token envelopes.
//
// Not every algorithm is usable with every envelope: the JWT form does not
// support ES512, and the COSE form does not support the RSA-PSS family.
type Algorithm int

// Supported signature algorithms.
const (
	AlgorithmPS256 Algorithm = iota
	AlgorithmPS384
	AlgorithmPS512
	AlgorithmES256
	AlgorithmES384
	AlgorithmES512
	AlgorithmEdDSA
)

var algorithmNames = []string{"PS256", "PS384", "PS512", "ES256", "ES384", "ES512", "EdDSA"}

func (a Algorithm) String() string {
	if a < 0 || int(a) >= len(algorithmNames) {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return algorithmNames[a]
}

// ParseAlgorithm returns the Algorithm with the given name. Names are matched
// case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	for i, known := range algorithmNames {
		if strings.EqualFold(name, known) {
			return Algorithm(i), nil
		}
	}
	return 0, fmt.Errorf("unknown algorithm %q", name)
}
