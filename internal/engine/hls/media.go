package hls

import (
	"net/url"
	"strconv"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/jmylchreest/skyplayer/internal/engine"
)

const videoGroupID = "video"

type variant struct {
	uri       string
	width     int
	height    int
	bandwidth int
	codecs    []string
	support   engine.FormatSupport
}

type rendition struct {
	group     engine.TrackGroup
	isDefault bool
}

// loadedMedia is a parsed source: the variant ladder, alternative
// renditions and the mapping handed to the track selector.
type loadedMedia struct {
	variants  []variant
	audio     []rendition
	subtitles []rendition
	duration  time.Duration
	mapped    *engine.MappedTrackInfo
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// mediaFromPlaylist wraps a single media playlist as a one-variant source.
func mediaFromPlaylist(base *url.URL, p *playlist.Media) *loadedMedia {
	uri := ""
	if base != nil {
		uri = base.String()
	}
	m := &loadedMedia{
		variants: []variant{{uri: uri, support: engine.FormatHandled}},
		duration: mediaDuration(p),
	}
	m.buildMapping()
	return m
}

func mediaFromMultivariant(base *url.URL, p *playlist.Multivariant) *loadedMedia {
	m := &loadedMedia{duration: engine.TimeUnset}

	for _, v := range p.Variants {
		w, h := parseResolution(v.Resolution)
		m.variants = append(m.variants, variant{
			uri:       resolve(base, v.URI),
			width:     w,
			height:    h,
			bandwidth: v.Bandwidth,
			codecs:    v.Codecs,
			support:   supportFor(v.Codecs),
		})
	}

	for i, r := range p.Renditions {
		var t engine.TrackType
		switch r.Type {
		case playlist.MultivariantRenditionTypeAudio:
			t = engine.TrackTypeAudio
		case playlist.MultivariantRenditionTypeSubtitles:
			t = engine.TrackTypeText
		default:
			continue
		}
		rd := rendition{
			group: engine.TrackGroup{
				ID:   t.String() + ":" + r.GroupID + ":" + strconv.Itoa(i),
				Type: t,
				Formats: []engine.Format{{
					ID:       r.GroupID + ":" + r.Name,
					Label:    r.Name,
					Language: r.Language,
				}},
			},
			isDefault: r.Default,
		}
		if t == engine.TrackTypeAudio {
			m.audio = append(m.audio, rd)
		} else {
			m.subtitles = append(m.subtitles, rd)
		}
	}

	m.buildMapping()
	return m
}

// mediaDuration sums segment durations of a finished playlist. Live
// playlists have no duration.
func mediaDuration(p *playlist.Media) time.Duration {
	if !p.Endlist {
		return engine.TimeUnset
	}
	var d time.Duration
	for _, s := range p.Segments {
		d += s.Duration
	}
	return d
}

func (m *loadedMedia) videoGroup() engine.TrackGroup {
	g := engine.TrackGroup{ID: videoGroupID, Type: engine.TrackTypeVideo}
	for i, v := range m.variants {
		g.Formats = append(g.Formats, engine.Format{
			ID:      strconv.Itoa(i),
			Width:   v.width,
			Height:  v.height,
			Bitrate: v.bandwidth,
			Codecs:  v.codecs,
		})
	}
	return g
}

func (m *loadedMedia) buildMapping() {
	video := engine.RendererTracks{
		Type:    engine.TrackTypeVideo,
		Groups:  []engine.TrackGroup{m.videoGroup()},
		Support: [][]engine.FormatSupport{make([]engine.FormatSupport, len(m.variants))},
	}
	for i, v := range m.variants {
		video.Support[0][i] = v.support
	}

	m.mapped = &engine.MappedTrackInfo{Renderers: []engine.RendererTracks{
		video,
		renditionRenderer(engine.TrackTypeAudio, m.audio),
		renditionRenderer(engine.TrackTypeText, m.subtitles),
	}}
}

func renditionRenderer(t engine.TrackType, rs []rendition) engine.RendererTracks {
	r := engine.RendererTracks{Type: t}
	for _, rd := range rs {
		r.Groups = append(r.Groups, rd.group)
		r.Support = append(r.Support, []engine.FormatSupport{engine.FormatHandled})
	}
	return r
}

// bestVariant is the highest-bandwidth handled variant, falling back to the
// first variant when none is handled.
func (m *loadedMedia) bestVariant() int {
	best := -1
	for i, v := range m.variants {
		if v.support != engine.FormatHandled {
			continue
		}
		if best < 0 || v.bandwidth > m.variants[best].bandwidth {
			best = i
		}
	}
	return max(best, 0)
}

// selectVideo returns the overridden variant if the override names a
// handled track, otherwise the best variant.
func (m *loadedMedia) selectVideo(p engine.Parameters) int {
	if len(m.variants) == 0 {
		return -1
	}
	if o, ok := p.OverrideFor(videoGroupID); ok && len(o.TrackIndices) > 0 {
		i := o.TrackIndices[0]
		if i >= 0 && i < len(m.variants) && m.variants[i].support == engine.FormatHandled {
			return i
		}
	}
	return m.bestVariant()
}

// selectRendition picks at most one rendition: an override, then the
// preferred language, then the DEFAULT rendition, then the first when
// fallbackFirst is set.
func selectRendition(rs []rendition, p engine.Parameters, preferred string, fallbackFirst bool) int {
	for i, rd := range rs {
		if _, ok := p.OverrideFor(rd.group.ID); ok {
			return i
		}
	}
	if preferred != "" {
		for i, rd := range rs {
			if rd.group.Formats[0].Language == preferred {
				return i
			}
		}
	}
	for i, rd := range rs {
		if rd.isDefault {
			return i
		}
	}
	if fallbackFirst && len(rs) > 0 {
		return 0
	}
	return -1
}

// tracks is the active track set under parameters p.
func (m *loadedMedia) tracks(p engine.Parameters) engine.Tracks {
	var out engine.Tracks

	if len(m.variants) > 0 {
		sel := m.selectVideo(p)
		g := engine.TracksGroup{
			Group:     m.videoGroup(),
			Supported: make([]engine.FormatSupport, len(m.variants)),
			Selected:  make([]bool, len(m.variants)),
		}
		for i, v := range m.variants {
			g.Supported[i] = v.support
			g.Selected[i] = i == sel
		}
		out.Groups = append(out.Groups, g)
	}

	add := func(rs []rendition, sel int) {
		for i, rd := range rs {
			out.Groups = append(out.Groups, engine.TracksGroup{
				Group:     rd.group,
				Supported: []engine.FormatSupport{engine.FormatHandled},
				Selected:  []bool{i == sel},
			})
		}
	}
	add(m.audio, selectRendition(m.audio, p, p.PreferredAudioLanguage(), true))
	add(m.subtitles, selectRendition(m.subtitles, p, p.PreferredTextLanguage(), false))

	return out
}
