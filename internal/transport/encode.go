package transport

import (
	"encoding/json"
	"time"

	"github.com/samber/mo"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
)

// Snapshot keys.
const (
	KeySurfaceID               = "surfaceId"
	KeyIsPlaying               = "isPlaying"
	KeyPosition                = "position"
	KeyDuration                = "duration"
	KeyBufferedPosition        = "bufferedPosition"
	KeyIsLoading               = "isLoading"
	KeyVideoAspectRatio        = "videoAspectRatio"
	KeyAvailableResolutions    = "availableVideoResolutions"
	KeySelectedResolutionID    = "selectedResolutionId"
	KeyAvailableAudioTracks    = "availableAudioTracks"
	KeySelectedAudioTrackID    = "selectedAudioTrackId"
	KeyAvailableSubtitleTracks = "availableSubtitleTracks"
	KeySelectedSubtitleTrackID = "selectedSubtitleTrackId"
	KeyCurrentCues             = "currentCues"
)

// EncodeSnapshot renders a state snapshot as the event transport map. Times
// are milliseconds, nested lists are JSON strings and absent optionals are
// nil.
func EncodeSnapshot(s models.PlaybackState) map[string]any {
	return map[string]any{
		KeySurfaceID:               optional(s.SurfaceID),
		KeyIsPlaying:               s.IsPlaying,
		KeyPosition:                millis(s.Position),
		KeyDuration:                millis(s.Duration),
		KeyBufferedPosition:        millis(s.BufferedPosition),
		KeyIsLoading:               s.IsLoading,
		KeyVideoAspectRatio:        optional(s.VideoAspectRatio),
		KeyAvailableResolutions:    encodeList(s.AvailableVideoResolutions),
		KeySelectedResolutionID:    optional(s.SelectedResolutionID),
		KeyAvailableAudioTracks:    encodeList(s.AvailableAudioTracks),
		KeySelectedAudioTrackID:    optional(s.SelectedAudioTrackID),
		KeyAvailableSubtitleTracks: encodeList(s.AvailableSubtitleTracks),
		KeySelectedSubtitleTrackID: optional(s.SelectedSubtitleTrackID),
		KeyCurrentCues:             s.CurrentCues.Text(),
	}
}

// millis converts d to milliseconds; unknown times are 0.
func millis(d time.Duration) int64 {
	if d == engine.TimeUnset || d < 0 {
		return 0
	}
	return d.Milliseconds()
}

func optional[T any](o mo.Option[T]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

// encodeList JSON-encodes a nested list. A nil list encodes as "[]".
func encodeList[T any](items []T) string {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
