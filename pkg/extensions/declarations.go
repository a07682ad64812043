package extensions

import (
	"fmt"

	"github.com/DIMO-Network/ear/pkg/value"
)

// Declaration describes one extension a profile attaches: the identifiers
// used by the two wire forms and the expected kind.
type Declaration struct {
	Name string     `json:"name"`
	Key  int64      `json:"key"`
	Kind value.Kind `json:"kind"`
}

// Declarations is an ordered list of extension declarations with unique
// names and keys. Lists are assembled while defining a profile and applied
// to registries when tokens are created or decoded.
type Declarations struct {
	entries []Declaration
	names   map[string]struct{}
	keys    map[int64]struct{}
}

// NewDeclarations returns an empty declaration list.
func NewDeclarations() *Declarations {
	return &Declarations{
		names: make(map[string]struct{}),
		keys:  make(map[int64]struct{}),
	}
}

// Add appends one declaration, enforcing name and key uniqueness.
func (d *Declarations) Add(name string, key int64, kind value.Kind) error {
	if _, ok := d.names[name]; ok {
		return fmt.Errorf("name %s %w", name, ErrAlreadyRegistered)
	}
	if _, ok := d.keys[key]; ok {
		return fmt.Errorf("key %d %w", key, ErrAlreadyRegistered)
	}
	d.entries = append(d.entries, Declaration{Name: name, Key: key, Kind: kind})
	d.names[name] = struct{}{}
	d.keys[key] = struct{}{}
	return nil
}

// Len returns the number of declarations in the list.
func (d *Declarations) Len() int {
	return len(d.entries)
}

// Entries returns a copy of the declarations in insertion order.
func (d *Declarations) Entries() []Declaration {
	out := make([]Declaration, len(d.entries))
	copy(out, d.entries)
	return out
}

// Apply registers every declaration with the given registry.
func (d *Declarations) Apply(r *Registry) error {
	for _, decl := range d.entries {
		if err := r.Register(decl.Name, decl.Key, decl.Kind); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an independent copy of the list.
func (d *Declarations) Clone() *Declarations {
	out := NewDeclarations()
	for _, decl := range d.entries {
		out.entries = append(out.entries, decl)
		out.names[decl.Name] = struct{}{}
		out.keys[decl.Key] = struct{}{}
	}
	return out
}
