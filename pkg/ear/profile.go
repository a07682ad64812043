package ear

import (
	"fmt"
	"sync"

	"github.com/DIMO-Network/ear/pkg/extensions"
	"github.com/DIMO-Network/ear/pkg/value"
)

// Profile is a named bundle of extension declarations that a verifier and
// its relying parties agree on out of band. A token names its profile in
// the eat_profile claim, and both sides use the profile to interpret the
// extension fields.
type Profile struct {
	id             string
	earDecls       *extensions.Declarations
	appraisalDecls *extensions.Declarations
}

// NewProfile creates an empty profile with the given identifier.
func NewProfile(id string) *Profile {
	return &Profile{
		id:             id,
		earDecls:       extensions.NewDeclarations(),
		appraisalDecls: extensions.NewDeclarations(),
	}
}

// ID returns the profile's identifier.
func (p *Profile) ID() string {
	return p.id
}

// RegisterEarExtension declares a token level extension field.
func (p *Profile) RegisterEarExtension(name string, key int64, kind value.Kind) error {
	return p.earDecls.Add(name, key, kind)
}

// RegisterAppraisalExtension declares an appraisal level extension field.
func (p *Profile) RegisterAppraisalExtension(name string, key int64, kind value.Kind) error {
	return p.appraisalDecls.Add(name, key, kind)
}

// PopulateEar binds the profile's declarations to a token and to all of its
// existing submods. The token must carry this profile's identifier.
func (p *Profile) PopulateEar(e *Ear) error {
	if e.Profile != p.id {
		return fmt.Errorf("%w: ID mismatch: wanted %s, but got %s", ErrProfile, p.id, e.Profile)
	}
	if err := p.earDecls.Apply(e.Extensions); err != nil {
		return err
	}
	for _, appraisal := range e.Submods {
		if err := p.appraisalDecls.Apply(appraisal.Extensions); err != nil {
			return err
		}
	}
	return nil
}

// PopulateAppraisal binds the profile's appraisal level declarations to a
// standalone appraisal.
func (p *Profile) PopulateAppraisal(a *Appraisal) error {
	return p.appraisalDecls.Apply(a.Extensions)
}

func (p *Profile) clone() *Profile {
	return &Profile{
		id:             p.id,
		earDecls:       p.earDecls.Clone(),
		appraisalDecls: p.appraisalDecls.Clone(),
	}
}

// ProfileRegistry is an insert-only collection of profiles keyed by
// identifier. Profiles are copied on the way in and out, so a registered
// profile can never be mutated through a handle the caller still holds.
type ProfileRegistry struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewProfileRegistry creates an empty profile registry.
func NewProfileRegistry() *ProfileRegistry {
	return &ProfileRegistry{
		profiles: map[string]*Profile{},
	}
}

// Register stores a copy of the profile. Each identifier can be registered
// only once.
func (r *ProfileRegistry) Register(p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.id]; ok {
		return fmt.Errorf("%w: %s already registered", ErrProfile, p.id)
	}
	r.profiles[p.id] = p.clone()
	return nil
}

// Get returns a copy of the profile with the given identifier.
func (r *ProfileRegistry) Get(id string) (*Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// defaultProfiles backs RegisterProfile and GetProfile, and through them
// the profile aware constructors and the decoders.
var defaultProfiles = NewProfileRegistry()

// RegisterProfile adds a profile to the process wide registry.
func RegisterProfile(p *Profile) error {
	return defaultProfiles.Register(p)
}

// GetProfile looks up a profile in the process wide registry.
func GetProfile(id string) (*Profile, bool) {
	return defaultProfiles.Get(id)
}
