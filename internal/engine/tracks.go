package engine

// TrackType is the kind of elementary stream a track carries.
type TrackType int

const (
	TrackTypeUnknown TrackType = iota
	TrackTypeVideo
	TrackTypeAudio
	TrackTypeText
)

// String returns the lower-case type name.
func (t TrackType) String() string {
	switch t {
	case TrackTypeVideo:
		return "video"
	case TrackTypeAudio:
		return "audio"
	case TrackTypeText:
		return "text"
	default:
		return "unknown"
	}
}

// FormatSupport is how well a renderer can play a format.
type FormatSupport int

const (
	FormatHandled FormatSupport = iota
	FormatExceedsCapabilities
	FormatUnsupportedSubtype
	FormatUnsupportedType
)

// Format describes one track within a group.
type Format struct {
	ID       string
	Label    string
	Language string
	Width    int
	Height   int
	Bitrate  int
	Codecs   []string
}

// TrackGroup is a set of formats carrying the same content, of which at most
// one is played at a time.
type TrackGroup struct {
	ID      string
	Type    TrackType
	Formats []Format
}

// RendererTracks lists the groups one renderer could play and per-track support.
type RendererTracks struct {
	Type    TrackType
	Groups  []TrackGroup
	Support [][]FormatSupport
}

// MappedTrackInfo enumerates every discovered track by renderer and group,
// including tracks the renderer cannot play.
type MappedTrackInfo struct {
	Renderers []RendererTracks
}

// TrackSupport returns the support level of a track, or FormatUnsupportedType
// when the indices are out of range.
func (m *MappedTrackInfo) TrackSupport(renderer, group, track int) FormatSupport {
	if renderer < 0 || renderer >= len(m.Renderers) {
		return FormatUnsupportedType
	}
	r := m.Renderers[renderer]
	if group < 0 || group >= len(r.Support) || track < 0 || track >= len(r.Support[group]) {
		return FormatUnsupportedType
	}
	return r.Support[group][track]
}

// TracksGroup is a group in the active selection together with selection flags.
type TracksGroup struct {
	Group     TrackGroup
	Supported []FormatSupport
	Selected  []bool
}

// Type returns the group's track type.
func (g TracksGroup) Type() TrackType {
	return g.Group.Type
}

// IsTrackSelected reports whether track i is currently being played.
func (g TracksGroup) IsTrackSelected(i int) bool {
	return i >= 0 && i < len(g.Selected) && g.Selected[i]
}

// Tracks is the engine's current track set.
type Tracks struct {
	Groups []TracksGroup
}

// TrackSelectionOverride forces specific tracks of a group to be selected.
type TrackSelectionOverride struct {
	Group        TrackGroup
	TrackIndices []int
}
