package ear

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/DIMO-Network/ear/pkg/value"
)

// sortedNames returns the member names of a decoded JSON object in
// lexicographic order, so decode side effects and error reporting are
// deterministic.
func sortedNames(obj map[string]json.RawMessage) []string {
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// sortedKeys is the CBOR counterpart of sortedNames.
func sortedKeys(obj map[int64]cbor.RawMessage) []int64 {
	keys := make([]int64, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func marshalValueMapCBOR(m map[string]value.Value) ([]byte, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	w := &value.MapWriter{}
	for _, name := range names {
		if err := w.Put(name, m[name]); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return w.Bytes(), nil
}

func unmarshalValueMapJSON(data []byte) (map[string]value.Value, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	m := make(map[string]value.Value, len(obj))
	for _, name := range sortedNames(obj) {
		v, err := value.DecodeJSON(obj[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		m[name] = v
	}
	return m, nil
}

func unmarshalValueMapCBOR(data []byte) (map[string]value.Value, error) {
	var obj map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	slices.Sort(names)

	m := make(map[string]value.Value, len(obj))
	for _, name := range names {
		v, err := value.DecodeCBOR(obj[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		m[name] = v
	}
	return m, nil
}

func valueMapsEqual(a, b map[string]value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for name, av := range a {
		bv, ok := b[name]
		if !ok || !value.Equal(av, bv) {
			return false
		}
	}
	return true
}
