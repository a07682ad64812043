// Package extensions implements the extension registry through which
// profile defined claims are attached to tokens and appraisals, in both
// wire forms.
package extensions

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/DIMO-Network/ear/pkg/value"
)

// Error is a typed error for extension registration and assignment.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrAlreadyRegistered is returned when a name or key is declared
	// twice.
	ErrAlreadyRegistered = Error("already registered")
	// ErrNotRegistered is returned when setting a value for an unknown
	// name or key.
	ErrNotRegistered = Error("not registered")
	// ErrKindMismatch is returned when a value does not conform to the
	// declared kind of its slot.
	ErrKindMismatch = Error("kind mismatch")
)

// slot is the shared cell behind one registered extension. The name and key
// mappings reference the same slot, so a value stored through one
// identifier is visible through the other.
type slot struct {
	mu   sync.RWMutex
	kind value.Kind
	val  value.Value
}

func (s *slot) get() (value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.val == nil {
		return nil, false
	}
	return s.val, true
}

func (s *slot) set(v value.Value) error {
	if k := kindOf(v); k != s.kind {
		return fmt.Errorf("%w: value is %s, but want %s", ErrKindMismatch, k, s.kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = v
	return nil
}

func kindOf(v value.Value) value.Kind {
	if v == nil {
		return value.KindUnset
	}
	return v.Kind()
}

// collectedKey identifies one collected entry. A decode pass uses either
// names or keys exclusively, so the two forms never alias.
type collectedKey struct {
	name  string
	key   int64
	byKey bool
}

// Registry tracks the extension slots declared for a token or an appraisal,
// plus any unrecognized map entries collected during decode so that a
// profile registered after the fact can adopt them.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*slot
	byKey     map[int64]*slot
	collected map[collectedKey]value.Value
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]*slot),
		byKey:     make(map[int64]*slot),
		collected: make(map[collectedKey]value.Value),
	}
}

// Register declares a new extension under both identifiers. If a value for
// either identifier was collected during an earlier decode, it is adopted
// into the new slot, converting between the text and bytes kinds when the
// collected form does not match the declaration.
func (r *Registry) Register(name string, key int64, kind value.Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("name %s %w", name, ErrAlreadyRegistered)
	}
	if _, ok := r.byKey[key]; ok {
		return fmt.Errorf("key %d %w", key, ErrAlreadyRegistered)
	}

	s := &slot{kind: kind}
	if v, ok := r.lookupCollected(name, key); ok {
		if kindOf(v) != kind {
			if !value.CanConvert(kindOf(v), kind) {
				return fmt.Errorf("%w: value is %s, but want %s", ErrKindMismatch, kindOf(v), kind)
			}
			converted, err := value.Convert(v, kind)
			if err != nil {
				return err
			}
			v = converted
		}
		s.val = v
	}

	r.byName[name] = s
	r.byKey[key] = s
	return nil
}

func (r *Registry) lookupCollected(name string, key int64) (value.Value, bool) {
	if v, ok := r.collected[collectedKey{name: name}]; ok {
		return v, true
	}
	if v, ok := r.collected[collectedKey{key: key, byKey: true}]; ok {
		return v, true
	}
	return nil, false
}

// HaveName reports whether the name is registered.
func (r *Registry) HaveName(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// HaveKey reports whether the key is registered.
func (r *Registry) HaveKey(key int64) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKey[key]
	return ok
}

// KindByName returns the declared kind of the named extension, or
// value.KindUnset if the name is not registered.
func (r *Registry) KindByName(name string) value.Kind {
	if r == nil {
		return value.KindUnset
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byName[name]; ok {
		return s.kind
	}
	return value.KindUnset
}

// KindByKey returns the declared kind of the keyed extension, or
// value.KindUnset if the key is not registered.
func (r *Registry) KindByKey(key int64) value.Kind {
	if r == nil {
		return value.KindUnset
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byKey[key]; ok {
		return s.kind
	}
	return value.KindUnset
}

// GetByName returns the value of the named extension, if one has been set.
func (r *Registry) GetByName(name string) (value.Value, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	s, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.get()
}

// GetByKey returns the value of the keyed extension, if one has been set.
func (r *Registry) GetByKey(key int64) (value.Value, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	s, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.get()
}

// SetByName assigns a value to the named extension.
func (r *Registry) SetByName(name string, v value.Value) error {
	r.mu.RLock()
	s, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s %w", name, ErrNotRegistered)
	}
	return s.set(v)
}

// SetByKey assigns a value to the keyed extension.
func (r *Registry) SetByKey(key int64, v value.Value) error {
	r.mu.RLock()
	s, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%d %w", key, ErrNotRegistered)
	}
	return s.set(v)
}

// DecodeEntryJSON handles one unrecognized object member encountered while
// decoding the human readable form. Entries with no matching slot are
// collected for later adoption; entries with a slot must decode as the
// declared kind.
func (r *Registry) DecodeEntryJSON(name string, raw json.RawMessage) error {
	r.mu.RLock()
	s, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		v, err := value.DecodeJSON(raw)
		if err != nil && !errors.Is(err, value.ErrNull) {
			return err
		}
		r.mu.Lock()
		r.collected[collectedKey{name: name}] = v
		r.mu.Unlock()
		return nil
	}

	if s.kind == value.KindUnset {
		return errors.New("invalid extension")
	}
	v, err := value.DecodeJSONAs(raw, s.kind)
	if err != nil {
		return err
	}
	return s.set(v)
}

// DecodeEntryCBOR handles one unrecognized map entry encountered while
// decoding the binary form.
func (r *Registry) DecodeEntryCBOR(key int64, raw cbor.RawMessage) error {
	r.mu.RLock()
	s, ok := r.byKey[key]
	r.mu.RUnlock()

	if !ok {
		v, err := value.DecodeCBOR(raw)
		if err != nil && !errors.Is(err, value.ErrNull) {
			return err
		}
		r.mu.Lock()
		r.collected[collectedKey{key: key, byKey: true}] = v
		r.mu.Unlock()
		return nil
	}

	if s.kind == value.KindUnset {
		return errors.New("invalid extension")
	}
	v, err := value.DecodeCBORAs(raw, s.kind)
	if err != nil {
		return err
	}
	return s.set(v)
}

// EncodeEntriesJSON adds one object member per slot with a set value.
// Unset slots never appear in output.
func (r *Registry) EncodeEntriesJSON(obj map[string]json.RawMessage) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, s := range r.byName {
		v, ok := s.get()
		if !ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		obj[name] = raw
	}
	return nil
}

// EncodeEntriesCBOR appends one map entry per slot with a set value, in
// ascending key order. Unset slots never appear in output.
func (r *Registry) EncodeEntriesCBOR(w *value.MapWriter) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]int64, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v, ok := r.byKey[k].get()
		if !ok {
			continue
		}
		if err := w.Put(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether both registries hold equal set values under the
// same identifiers. Declared but unset slots and collected entries do not
// take part in the comparison.
func (r *Registry) Equal(other *Registry) bool {
	names, keys := r.setValues()
	otherNames, otherKeys := other.setValues()
	if len(names) != len(otherNames) || len(keys) != len(otherKeys) {
		return false
	}
	for name, v := range names {
		if !value.Equal(v, otherNames[name]) {
			return false
		}
	}
	for key, v := range keys {
		if !value.Equal(v, otherKeys[key]) {
			return false
		}
	}
	return true
}

func (r *Registry) setValues() (map[string]value.Value, map[int64]value.Value) {
	names := make(map[string]value.Value)
	keys := make(map[int64]value.Value)
	if r == nil {
		return names, keys
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, s := range r.byName {
		if v, ok := s.get(); ok {
			names[name] = v
		}
	}
	for key, s := range r.byKey {
		if v, ok := s.get(); ok {
			keys[key] = v
		}
	}
	return names, keys
}
