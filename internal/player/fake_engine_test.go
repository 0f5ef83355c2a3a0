package player

import (
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/skyplayer/internal/engine"
)

// fakeEngine records commands and lets tests drive listener callbacks.
type fakeEngine struct {
	mu        sync.Mutex
	listeners []engine.Listener
	calls     []string

	playing  bool
	state    engine.State
	position time.Duration
	duration time.Duration
	buffered time.Duration
	tracks   engine.Tracks
	surface  engine.Surface
	released int

	setMediaErr error
	selector    *engine.DefaultTrackSelector
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		state:    engine.StateIdle,
		position: engine.TimeUnset,
		duration: engine.TimeUnset,
		buffered: engine.TimeUnset,
		selector: engine.NewDefaultTrackSelector(),
	}
}

// factory returns a Factory handing out f and counting constructions.
func (f *fakeEngine) factory(count *int) engine.Factory {
	return func() (engine.Engine, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if count != nil {
			*count++
		}
		return f, nil
	}
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeEngine) each(fn func(engine.Listener)) {
	f.mu.Lock()
	ls := slices.Clone(f.listeners)
	f.mu.Unlock()
	for _, l := range ls {
		fn(l)
	}
}

func (f *fakeEngine) AddListener(l engine.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *fakeEngine) RemoveListener(l engine.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = slices.DeleteFunc(f.listeners, func(x engine.Listener) bool { return x == l })
	f.calls = append(f.calls, "RemoveListener")
}

func (f *fakeEngine) SetMediaItem(uri string) error {
	f.record("SetMediaItem " + uri)
	return f.setMediaErr
}

func (f *fakeEngine) ClearMediaItems()       { f.record("ClearMediaItems") }
func (f *fakeEngine) Prepare()               { f.record("Prepare") }
func (f *fakeEngine) Stop()                  { f.record("Stop") }
func (f *fakeEngine) SetPlayWhenReady(bool)  { f.record("SetPlayWhenReady") }
func (f *fakeEngine) Play()                  { f.record("Play") }
func (f *fakeEngine) Pause()                 { f.record("Pause") }
func (f *fakeEngine) SeekTo(p time.Duration) { f.record("SeekTo " + p.String()) }

func (f *fakeEngine) TrackSelector() engine.TrackSelector { return f.selector }

func (f *fakeEngine) SetVideoSurface(s engine.Surface) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.surface = s
	if s == nil {
		f.calls = append(f.calls, "SetVideoSurface nil")
	} else {
		f.calls = append(f.calls, "SetVideoSurface")
	}
}

func (f *fakeEngine) Surface() engine.Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.surface
}

func (f *fakeEngine) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeEngine) PlaybackState() engine.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) CurrentPosition() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeEngine) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeEngine) BufferedPosition() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffered
}

func (f *fakeEngine) CurrentTracks() engine.Tracks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracks
}

func (f *fakeEngine) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	f.calls = append(f.calls, "Release")
}

func (f *fakeEngine) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func (f *fakeEngine) setTimes(position, duration, buffered time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position, f.duration, f.buffered = position, duration, buffered
}

func (f *fakeEngine) setPlaying(playing bool) {
	f.mu.Lock()
	f.playing = playing
	f.mu.Unlock()
	f.each(func(l engine.Listener) { l.OnIsPlayingChanged(playing) })
}

func (f *fakeEngine) setState(s engine.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.each(func(l engine.Listener) { l.OnPlaybackStateChanged(s) })
}

// setTracks installs a mapping and active selection, then fires OnTracksChanged.
func (f *fakeEngine) setTracks(mapped *engine.MappedTrackInfo, tracks engine.Tracks) {
	f.selector.SetMappedTrackInfo(mapped)
	f.mu.Lock()
	f.tracks = tracks
	f.mu.Unlock()
	f.each(func(l engine.Listener) { l.OnTracksChanged(tracks) })
}

func (f *fakeEngine) fail(code engine.ErrorCode) {
	f.each(func(l engine.Listener) {
		l.OnPlayerError(&engine.PlaybackError{Code: code, Message: code.String()})
	})
}

func videoRenderer(formats ...engine.Format) engine.RendererTracks {
	support := make([]engine.FormatSupport, len(formats))
	return engine.RendererTracks{
		Type:    engine.TrackTypeVideo,
		Groups:  []engine.TrackGroup{{ID: "video", Type: engine.TrackTypeVideo, Formats: formats}},
		Support: [][]engine.FormatSupport{support},
	}
}

func groupRenderer(t engine.TrackType, groups ...engine.TrackGroup) engine.RendererTracks {
	r := engine.RendererTracks{Type: t, Groups: groups}
	for _, g := range groups {
		r.Support = append(r.Support, make([]engine.FormatSupport, len(g.Formats)))
	}
	return r
}

func selected(g engine.TrackGroup, sel ...bool) engine.TracksGroup {
	return engine.TracksGroup{
		Group:     g,
		Supported: make([]engine.FormatSupport, len(g.Formats)),
		Selected:  sel,
	}
}
