// Package registry holds the static capability configuration.
// A Registry is built once at startup and is immutable afterwards, so it is
// safe for unsynchronized concurrent reads from the classifier and builder.
package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskmind/taskmind/pkg/models"
)

// Keyword is a weighted trigger phrase for a capability.
// Single-token keywords match whole tokens; multi-word phrases match as
// exact substrings of the normalized text.
type Keyword struct {
	Phrase string  `yaml:"phrase"`
	Weight float64 `yaml:"weight"`
}

// CapabilityProfile describes one registered capability.
type CapabilityProfile struct {
	// ID is the unique capability identifier.
	ID string `yaml:"id"`
	// DisplayName is the human-readable capability name.
	DisplayName string `yaml:"display_name"`
	// Keywords are the weighted trigger phrases used by the classifier.
	Keywords []Keyword `yaml:"keywords"`
	// Accepts lists the artifact kinds this capability can take as input.
	// Empty means the capability works from the request text alone.
	Accepts []models.ArtifactKind `yaml:"accepts"`
	// Produces is the artifact kind this capability outputs.
	Produces models.ArtifactKind `yaml:"produces"`
	// CollaboratorID names the external collaborator that does the work.
	CollaboratorID string `yaml:"collaborator"`
	// StepTimeout bounds a single step invocation. Zero means the executor default.
	StepTimeout time.Duration `yaml:"step_timeout"`
	// ProgressWeight is the relative weight of this capability in overall
	// pipeline progress. Zero means uniform weighting.
	ProgressWeight float64 `yaml:"progress_weight"`
}

// UnmarshalYAML decodes a profile, accepting step timeouts in
// time.ParseDuration form ("90s", "10m").
func (p *CapabilityProfile) UnmarshalYAML(value *yaml.Node) error {
	type rawProfile struct {
		ID             string                `yaml:"id"`
		DisplayName    string                `yaml:"display_name"`
		Keywords       []Keyword             `yaml:"keywords"`
		Accepts        []models.ArtifactKind `yaml:"accepts"`
		Produces       models.ArtifactKind   `yaml:"produces"`
		CollaboratorID string                `yaml:"collaborator"`
		StepTimeout    string                `yaml:"step_timeout"`
		ProgressWeight float64               `yaml:"progress_weight"`
	}

	var raw rawProfile
	if err := value.Decode(&raw); err != nil {
		return err
	}

	*p = CapabilityProfile{
		ID:             raw.ID,
		DisplayName:    raw.DisplayName,
		Keywords:       raw.Keywords,
		Accepts:        raw.Accepts,
		Produces:       raw.Produces,
		CollaboratorID: raw.CollaboratorID,
		ProgressWeight: raw.ProgressWeight,
	}
	if raw.StepTimeout != "" {
		d, err := time.ParseDuration(raw.StepTimeout)
		if err != nil {
			return fmt.Errorf("step_timeout: %w", err)
		}
		p.StepTimeout = d
	}
	return nil
}

// Accepts reports whether the profile can take the given artifact kind as input.
func (p *CapabilityProfile) AcceptsKind(kind models.ArtifactKind) bool {
	for _, k := range p.Accepts {
		if k == kind {
			return true
		}
	}
	return false
}

// Registry is the immutable set of capability profiles, in declaration order.
// Declaration order is the classifier's tie-break order.
type Registry struct {
	profiles []CapabilityProfile
	byID     map[string]*CapabilityProfile
}

// New builds a Registry from the given profiles, validating each one.
func New(profiles []CapabilityProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("registry: no capability profiles")
	}

	r := &Registry{
		profiles: make([]CapabilityProfile, len(profiles)),
		byID:     make(map[string]*CapabilityProfile, len(profiles)),
	}
	copy(r.profiles, profiles)

	for i := range r.profiles {
		p := &r.profiles[i]
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("registry: profile %q: %w", p.ID, err)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate capability id %q", p.ID)
		}
		r.byID[p.ID] = p
	}

	return r, nil
}

// validateProfile checks a single profile for internal consistency.
func validateProfile(p *CapabilityProfile) error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	if p.DisplayName == "" {
		return fmt.Errorf("missing display name")
	}
	if len(p.Keywords) == 0 {
		return fmt.Errorf("no keywords")
	}
	for _, kw := range p.Keywords {
		if kw.Phrase == "" {
			return fmt.Errorf("empty keyword phrase")
		}
		if kw.Weight <= 0 {
			return fmt.Errorf("keyword %q has non-positive weight %g", kw.Phrase, kw.Weight)
		}
	}
	if !p.Produces.Valid() {
		return fmt.Errorf("unknown produced kind %q", p.Produces)
	}
	for _, k := range p.Accepts {
		if !k.Valid() {
			return fmt.Errorf("unknown accepted kind %q", k)
		}
	}
	if p.CollaboratorID == "" {
		return fmt.Errorf("missing collaborator id")
	}
	if p.ProgressWeight < 0 {
		return fmt.Errorf("negative progress weight %g", p.ProgressWeight)
	}
	return nil
}

// Get returns the profile with the given id, or nil if not registered.
func (r *Registry) Get(id string) *CapabilityProfile {
	return r.byID[id]
}

// Profiles returns the profiles in declaration order.
// Callers must not mutate the returned slice.
func (r *Registry) Profiles() []CapabilityProfile {
	return r.profiles
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.profiles)
}

// registryFile is the on-disk YAML shape.
type registryFile struct {
	Capabilities []CapabilityProfile `yaml:"capabilities"`
}

// LoadFile reads capability profiles from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}

	return New(file.Capabilities)
}

// Load returns the registry from path if it exists, or the built-in defaults.
func Load(path string) (*Registry, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return New(DefaultProfiles())
}
