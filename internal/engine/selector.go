package engine

import (
	"slices"
	"sync"
)

// Parameters constrain track selection. Values are immutable; use BuildUpon
// to derive a modified copy.
type Parameters struct {
	overrides              []TrackSelectionOverride
	preferredAudioLanguage string
	preferredTextLanguage  string
}

// Overrides returns a copy of the configured overrides.
func (p Parameters) Overrides() []TrackSelectionOverride {
	return slices.Clone(p.overrides)
}

// OverrideFor returns the override for the given group, if any.
func (p Parameters) OverrideFor(groupID string) (TrackSelectionOverride, bool) {
	for _, o := range p.overrides {
		if o.Group.ID == groupID {
			return o, true
		}
	}
	return TrackSelectionOverride{}, false
}

// HasOverrideOfType reports whether any override targets a group of type t.
func (p Parameters) HasOverrideOfType(t TrackType) bool {
	return slices.ContainsFunc(p.overrides, func(o TrackSelectionOverride) bool {
		return o.Group.Type == t
	})
}

// PreferredAudioLanguage returns the preferred audio language, or "".
func (p Parameters) PreferredAudioLanguage() string { return p.preferredAudioLanguage }

// PreferredTextLanguage returns the preferred text language, or "".
func (p Parameters) PreferredTextLanguage() string { return p.preferredTextLanguage }

// BuildUpon returns a builder initialised from p.
func (p Parameters) BuildUpon() *ParametersBuilder {
	return &ParametersBuilder{p: Parameters{
		overrides:              slices.Clone(p.overrides),
		preferredAudioLanguage: p.preferredAudioLanguage,
		preferredTextLanguage:  p.preferredTextLanguage,
	}}
}

// ParametersBuilder accumulates changes to Parameters.
type ParametersBuilder struct {
	p Parameters
}

// ClearOverridesOfType removes every override whose group has type t.
func (b *ParametersBuilder) ClearOverridesOfType(t TrackType) *ParametersBuilder {
	b.p.overrides = slices.DeleteFunc(b.p.overrides, func(o TrackSelectionOverride) bool {
		return o.Group.Type == t
	})
	return b
}

// AddOverride sets o, replacing any override for the same group.
func (b *ParametersBuilder) AddOverride(o TrackSelectionOverride) *ParametersBuilder {
	b.p.overrides = slices.DeleteFunc(b.p.overrides, func(existing TrackSelectionOverride) bool {
		return existing.Group.ID == o.Group.ID
	})
	b.p.overrides = append(b.p.overrides, o)
	return b
}

// SetPreferredAudioLanguage sets the audio language hint; "" clears it.
func (b *ParametersBuilder) SetPreferredAudioLanguage(lang string) *ParametersBuilder {
	b.p.preferredAudioLanguage = lang
	return b
}

// SetPreferredTextLanguage sets the text language hint; "" clears it.
func (b *ParametersBuilder) SetPreferredTextLanguage(lang string) *ParametersBuilder {
	b.p.preferredTextLanguage = lang
	return b
}

// Build returns the resulting Parameters.
func (b *ParametersBuilder) Build() Parameters {
	return b.p
}

// TrackSelector exposes the engine's track mapping and selection parameters.
type TrackSelector interface {
	CurrentMappedTrackInfo() *MappedTrackInfo
	Parameters() Parameters
	SetParameters(p Parameters)
}

// DefaultTrackSelector is a TrackSelector safe for concurrent use. Engines
// publish mappings with SetMappedTrackInfo and observe parameter changes via
// the invalidation callback.
type DefaultTrackSelector struct {
	mu         sync.Mutex
	mapped     *MappedTrackInfo
	params     Parameters
	invalidate func()
}

// NewDefaultTrackSelector creates a selector with empty parameters.
func NewDefaultTrackSelector() *DefaultTrackSelector {
	return &DefaultTrackSelector{}
}

// SetInvalidationListener registers fn to be called after parameters change.
func (s *DefaultTrackSelector) SetInvalidationListener(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidate = fn
}

// SetMappedTrackInfo replaces the current mapping; nil clears it.
func (s *DefaultTrackSelector) SetMappedTrackInfo(m *MappedTrackInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapped = m
}

// CurrentMappedTrackInfo returns the mapping, or nil before tracks are known.
func (s *DefaultTrackSelector) CurrentMappedTrackInfo() *MappedTrackInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapped
}

// Parameters returns the current parameters.
func (s *DefaultTrackSelector) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParameters replaces the parameters and notifies the invalidation listener.
func (s *DefaultTrackSelector) SetParameters(p Parameters) {
	s.mu.Lock()
	s.params = p
	fn := s.invalidate
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}
