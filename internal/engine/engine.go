// Package engine defines the boundary between the player core and a media
// playback engine: the command surface, listener callbacks and track model.
//
// Engines are not safe for concurrent command calls. Callers confine every
// call to one goroutine; listener callbacks may arrive on engine goroutines.
package engine

import (
	"math"
	"time"
)

// TimeUnset is returned for positions and durations that are not yet known.
const TimeUnset = time.Duration(math.MinInt64 + 1)

// State is the playback state of an engine.
type State int

const (
	StateIdle State = iota + 1
	StateBuffering
	StateReady
	StateEnded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBuffering:
		return "BUFFERING"
	case StateReady:
		return "READY"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// VideoSize describes decoded video dimensions.
type VideoSize struct {
	Width                 int
	Height                int
	PixelWidthHeightRatio float64
}

// AspectRatio returns the display aspect ratio, or 0 when the size is unknown.
func (v VideoSize) AspectRatio() float64 {
	if v.Width <= 0 || v.Height <= 0 {
		return 0
	}
	par := v.PixelWidthHeightRatio
	if par <= 0 {
		par = 1
	}
	return float64(v.Width) * par / float64(v.Height)
}

// Surface is a render target an engine can draw video frames into.
type Surface interface {
	// Valid reports whether the surface can still receive frames.
	Valid() bool
}

// Listener receives engine callbacks.
type Listener interface {
	OnIsPlayingChanged(isPlaying bool)
	OnPlaybackStateChanged(state State)
	OnPlayerError(err *PlaybackError)
	OnCues(cues []string)
	OnTracksChanged(tracks Tracks)
	OnVideoSizeChanged(size VideoSize)
	OnRenderedFirstFrame()
}

// Engine is a single media playback engine instance.
type Engine interface {
	AddListener(l Listener)
	RemoveListener(l Listener)

	SetMediaItem(uri string) error
	ClearMediaItems()
	Prepare()
	Stop()

	SetPlayWhenReady(playWhenReady bool)
	Play()
	Pause()
	SeekTo(position time.Duration)
	SetVideoSurface(s Surface)

	IsPlaying() bool
	PlaybackState() State
	CurrentPosition() time.Duration
	Duration() time.Duration
	BufferedPosition() time.Duration
	CurrentTracks() Tracks
	TrackSelector() TrackSelector

	Release()
}

// Factory constructs an engine.
type Factory func() (Engine, error)
