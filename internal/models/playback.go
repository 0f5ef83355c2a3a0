package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// UndeterminedLanguage is the id given to audio and subtitle tracks that
// carry neither a language nor a label.
const UndeterminedLanguage = "und"

// VideoResolution is one selectable video rendition. Identity is the ID.
type VideoResolution struct {
	ID      string `json:"id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bitrate int    `json:"bitrate"`
}

// NewVideoResolution builds a resolution whose id is "{width}x{height}".
func NewVideoResolution(width, height, bitrate int) VideoResolution {
	return VideoResolution{
		ID:      ResolutionID(width, height),
		Width:   width,
		Height:  height,
		Bitrate: bitrate,
	}
}

// ResolutionID formats the identifier shared by all renditions of a given size.
func ResolutionID(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// AudioTrack is one selectable audio rendition.
type AudioTrack struct {
	ID       string            `json:"id"`
	Language mo.Option[string] `json:"language"`
	Label    mo.Option[string] `json:"label"`
}

// SubtitleTrack is one selectable text rendition.
type SubtitleTrack struct {
	ID       string            `json:"id"`
	Language mo.Option[string] `json:"language"`
	Label    mo.Option[string] `json:"label"`
}

// TrackID derives a stable id from optional language and label metadata:
// language first, then label, then UndeterminedLanguage.
func TrackID(language, label string) string {
	switch {
	case language != "":
		return language
	case label != "":
		return label
	default:
		return UndeterminedLanguage
	}
}

// TrackLabel returns the label, falling back to the language.
func TrackLabel(language, label string) mo.Option[string] {
	switch {
	case label != "":
		return mo.Some(label)
	case language != "":
		return mo.Some(language)
	default:
		return mo.None[string]()
	}
}

// OptionalString maps the empty string to an absent value.
func OptionalString(s string) mo.Option[string] {
	if s == "" {
		return mo.None[string]()
	}
	return mo.Some(s)
}

// Cue is a timed subtitle text unit.
type Cue struct {
	Text string `json:"text"`
}

// Cues is the latest set of subtitle cues on screen.
type Cues []Cue

// Text joins the cue lines with newlines.
func (c Cues) Text() string {
	return strings.Join(lo.Map(c, func(cue Cue, _ int) string { return cue.Text }), "\n")
}

// SelectionResult reports whether a track selection found and applied an override.
type SelectionResult struct {
	Applied bool `json:"applied"`
}

// PlaybackState is an immutable snapshot of the player as seen by observers.
// Snapshots are replaced wholesale; callers must treat the slices as read-only.
type PlaybackState struct {
	SurfaceID mo.Option[int64] `json:"surface_id"`

	IsPlaying        bool          `json:"is_playing"`
	Position         time.Duration `json:"position"`
	Duration         time.Duration `json:"duration"`
	BufferedPosition time.Duration `json:"buffered_position"`
	IsLoading        bool          `json:"is_loading"`

	VideoAspectRatio mo.Option[float64] `json:"video_aspect_ratio"`

	AvailableVideoResolutions []VideoResolution `json:"available_video_resolutions"`
	SelectedResolutionID      mo.Option[string] `json:"selected_resolution_id"`

	AvailableAudioTracks []AudioTrack      `json:"available_audio_tracks"`
	SelectedAudioTrackID mo.Option[string] `json:"selected_audio_track_id"`

	AvailableSubtitleTracks []SubtitleTrack   `json:"available_subtitle_tracks"`
	SelectedSubtitleTrackID mo.Option[string] `json:"selected_subtitle_track_id"`

	CurrentCues Cues `json:"current_cues"`
}

// Clone returns a copy that shares no slice storage with s.
func (s PlaybackState) Clone() PlaybackState {
	out := s
	out.AvailableVideoResolutions = slices.Clone(s.AvailableVideoResolutions)
	out.AvailableAudioTracks = slices.Clone(s.AvailableAudioTracks)
	out.AvailableSubtitleTracks = slices.Clone(s.AvailableSubtitleTracks)
	out.CurrentCues = slices.Clone(s.CurrentCues)
	return out
}

// Reconciled drops every selected id that is not present in its available list.
func (s PlaybackState) Reconciled() PlaybackState {
	if id, ok := s.SelectedResolutionID.Get(); ok &&
		!lo.ContainsBy(s.AvailableVideoResolutions, func(r VideoResolution) bool { return r.ID == id }) {
		s.SelectedResolutionID = mo.None[string]()
	}
	if id, ok := s.SelectedAudioTrackID.Get(); ok &&
		!lo.ContainsBy(s.AvailableAudioTracks, func(t AudioTrack) bool { return t.ID == id }) {
		s.SelectedAudioTrackID = mo.None[string]()
	}
	if id, ok := s.SelectedSubtitleTrackID.Get(); ok &&
		!lo.ContainsBy(s.AvailableSubtitleTracks, func(t SubtitleTrack) bool { return t.ID == id }) {
		s.SelectedSubtitleTrackID = mo.None[string]()
	}
	return s
}

// ResetMedia clears everything that belongs to the loaded media item and
// keeps the surface binding.
func (s PlaybackState) ResetMedia() PlaybackState {
	return PlaybackState{SurfaceID: s.SurfaceID}
}
