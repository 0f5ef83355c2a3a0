package player

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
)

// TrackSource gives access to the engine's live track state.
type TrackSource interface {
	// TrackSelector returns nil while no engine exists.
	TrackSelector() engine.TrackSelector
	CurrentTracks() engine.Tracks
}

// TrackManager lists and selects tracks. It keeps no state of its own; every
// call reads the source again.
type TrackManager struct {
	source TrackSource
	logger *slog.Logger
}

// NewTrackManager creates a TrackManager reading from source.
func NewTrackManager(source TrackSource) *TrackManager {
	return &TrackManager{source: source, logger: slog.Default()}
}

// WithLogger sets the logger.
func (m *TrackManager) WithLogger(logger *slog.Logger) *TrackManager {
	m.logger = observability.WithComponent(logger, "tracks")
	return m
}

// handledTrack is a playable track located in the mapping.
type handledTrack struct {
	group  engine.TrackGroup
	index  int
	format engine.Format
}

// handledTracks walks renderer -> group -> track and returns every track of
// type t the renderer can play, in iteration order.
func handledTracks(mapped *engine.MappedTrackInfo, t engine.TrackType) []handledTrack {
	var out []handledTrack
	for ri, r := range mapped.Renderers {
		if r.Type != t {
			continue
		}
		for gi, g := range r.Groups {
			for ti, f := range g.Formats {
				if mapped.TrackSupport(ri, gi, ti) == engine.FormatHandled {
					out = append(out, handledTrack{group: g, index: ti, format: f})
				}
			}
		}
	}
	return out
}

func (m *TrackManager) mapped() (engine.TrackSelector, *engine.MappedTrackInfo) {
	sel := m.source.TrackSelector()
	if sel == nil {
		return nil, nil
	}
	return sel, sel.CurrentMappedTrackInfo()
}

// ListAvailableResolutions returns the playable video resolutions, one per
// "{width}x{height}" (first seen wins), widest and then tallest first.
func (m *TrackManager) ListAvailableResolutions() []models.VideoResolution {
	_, mapped := m.mapped()
	if mapped == nil {
		return nil
	}

	out := lo.Map(handledTracks(mapped, engine.TrackTypeVideo), func(t handledTrack, _ int) models.VideoResolution {
		return models.NewVideoResolution(t.format.Width, t.format.Height, t.format.Bitrate)
	})
	out = lo.UniqBy(out, func(r models.VideoResolution) string { return r.ID })
	slices.SortStableFunc(out, func(a, b models.VideoResolution) int {
		if c := cmp.Compare(b.Width, a.Width); c != 0 {
			return c
		}
		return cmp.Compare(b.Height, a.Height)
	})
	return out
}

// ListAudioTracks returns the audio tracks of the active selection. For each
// track the engine is currently playing, onSelected is called with its id.
func (m *TrackManager) ListAudioTracks(onSelected func(id string)) []models.AudioTrack {
	var out []models.AudioTrack
	for _, g := range m.source.CurrentTracks().Groups {
		if g.Type() != engine.TrackTypeAudio {
			continue
		}
		for i, f := range g.Group.Formats {
			id := models.TrackID(f.Language, f.Label)
			if g.IsTrackSelected(i) && onSelected != nil {
				onSelected(id)
			}
			out = append(out, models.AudioTrack{
				ID:       id,
				Language: models.OptionalString(f.Language),
				Label:    models.TrackLabel(f.Language, f.Label),
			})
		}
	}
	return lo.UniqBy(out, func(t models.AudioTrack) string { return t.ID })
}

// ListSubtitleTracks returns the text tracks of the active selection.
func (m *TrackManager) ListSubtitleTracks() []models.SubtitleTrack {
	var out []models.SubtitleTrack
	for _, g := range m.source.CurrentTracks().Groups {
		if g.Type() != engine.TrackTypeText {
			continue
		}
		for _, f := range g.Group.Formats {
			out = append(out, models.SubtitleTrack{
				ID:       models.TrackID(f.Language, f.Label),
				Language: models.OptionalString(f.Language),
				Label:    models.TrackLabel(f.Language, f.Label),
			})
		}
	}
	return lo.UniqBy(out, func(t models.SubtitleTrack) string { return t.ID })
}

// SelectResolution forces the video track whose "{width}x{height}" equals id.
// None clears video overrides and returns to adaptive selection. There is no
// fallback when id matches nothing.
func (m *TrackManager) SelectResolution(id mo.Option[string]) models.SelectionResult {
	return m.selectTrack(engine.TrackTypeVideo, id,
		func(f engine.Format) string { return models.ResolutionID(f.Width, f.Height) },
		nil)
}

// SelectAudioTrack forces the first audio track in the given language and
// makes it the preferred audio language. None clears both.
func (m *TrackManager) SelectAudioTrack(language mo.Option[string]) models.SelectionResult {
	return m.selectTrack(engine.TrackTypeAudio, language,
		func(f engine.Format) string { return f.Language },
		(*engine.ParametersBuilder).SetPreferredAudioLanguage)
}

// SelectSubtitleTrack forces the first text track whose id equals id and
// makes it the preferred text language. None clears both.
func (m *TrackManager) SelectSubtitleTrack(id mo.Option[string]) models.SelectionResult {
	return m.selectTrack(engine.TrackTypeText, id,
		func(f engine.Format) string { return models.TrackID(f.Language, f.Label) },
		(*engine.ParametersBuilder).SetPreferredTextLanguage)
}

func (m *TrackManager) selectTrack(
	t engine.TrackType,
	want mo.Option[string],
	key func(engine.Format) string,
	prefer func(*engine.ParametersBuilder, string) *engine.ParametersBuilder,
) models.SelectionResult {
	sel, mapped := m.mapped()
	if mapped == nil {
		m.logger.Warn("no mapped track info", slog.String("track_type", t.String()))
		return models.SelectionResult{Applied: false}
	}

	target, ok := want.Get()
	if !ok {
		b := sel.Parameters().BuildUpon().ClearOverridesOfType(t)
		if prefer != nil {
			b = prefer(b, "")
		}
		sel.SetParameters(b.Build())
		return models.SelectionResult{Applied: true}
	}

	match, found := lo.Find(handledTracks(mapped, t), func(h handledTrack) bool {
		return key(h.format) == target
	})
	if !found {
		m.logger.Warn("track not found",
			slog.String("track_type", t.String()),
			slog.String("id", target))
		return models.SelectionResult{Applied: false}
	}

	b := sel.Parameters().BuildUpon().
		ClearOverridesOfType(t).
		AddOverride(engine.TrackSelectionOverride{Group: match.group, TrackIndices: []int{match.index}})
	if prefer != nil {
		b = prefer(b, target)
	}
	sel.SetParameters(b.Build())
	return models.SelectionResult{Applied: true}
}
