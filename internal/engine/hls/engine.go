// Package hls is a reference engine.Engine for HLS sources. It loads and
// parses playlists, maps variants and renditions to tracks, applies track
// selection, and drives a clock-based playback position. It does not decode
// media; frames are considered rendered once a surface is attached.
package hls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/jmylchreest/skyplayer/internal/codec"
	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/httpclient"
	"github.com/jmylchreest/skyplayer/internal/observability"
)

// BufferAhead is how far past the position the engine reports as buffered.
const BufferAhead = 30 * time.Second

// Fetcher retrieves playlists.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*httpclient.Response, error)
}

// Options configures an Engine.
type Options struct {
	Fetcher Fetcher
	Policy  engine.LoadErrorHandlingPolicy
	Logger  *slog.Logger
}

// Engine plays HLS sources. Commands may be issued from one goroutine at a
// time; listener callbacks arrive on the caller's goroutine or on the
// engine's loader and end-of-stream goroutines.
type Engine struct {
	fetcher  Fetcher
	policy   engine.LoadErrorHandlingPolicy
	logger   *slog.Logger
	selector *engine.DefaultTrackSelector

	mu        sync.Mutex
	listeners []engine.Listener
	uri       string
	gen       int
	cancel    context.CancelFunc
	loading   sync.WaitGroup
	released  bool

	state         engine.State
	playWhenReady bool
	playing       bool
	surface       engine.Surface

	media *loadedMedia
	video int // selected variant, -1 for none
	size  engine.VideoSize

	position     time.Duration
	playingSince time.Time
	endTimer     *time.Timer
}

// New creates an engine. A nil fetcher uses httpclient defaults and a nil
// policy never retries.
func New(opts Options) *Engine {
	if opts.Fetcher == nil {
		opts.Fetcher = httpclient.NewWithDefaults()
	}
	if opts.Policy == nil {
		opts.Policy = noRetry{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		fetcher:  opts.Fetcher,
		policy:   opts.Policy,
		logger:   observability.WithComponent(opts.Logger, "hls"),
		selector: engine.NewDefaultTrackSelector(),
		state:    engine.StateIdle,
		video:    -1,
	}
	e.selector.SetInvalidationListener(e.onSelectionInvalidated)
	return e
}

// Factory returns an engine.Factory building engines with opts.
func Factory(opts Options) engine.Factory {
	return func() (engine.Engine, error) {
		return New(opts), nil
	}
}

var _ engine.Engine = (*Engine)(nil)

// callbacks queues listener calls made while e.mu is held.
type callbacks []func(engine.Listener)

func (c *callbacks) add(fn func(engine.Listener)) { *c = append(*c, fn) }

func (e *Engine) dispatch(cbs callbacks) {
	if len(cbs) == 0 {
		return
	}
	e.mu.Lock()
	ls := slices.Clone(e.listeners)
	e.mu.Unlock()
	for _, fn := range cbs {
		for _, l := range ls {
			fn(l)
		}
	}
}

func (e *Engine) AddListener(l engine.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) RemoveListener(l engine.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = slices.DeleteFunc(e.listeners, func(x engine.Listener) bool { return x == l })
}

// SetMediaItem sets the source to load on the next Prepare.
func (e *Engine) SetMediaItem(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return engine.NewPlaybackError(engine.ErrorCodeUnspecified, fmt.Errorf("parsing uri: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return engine.NewPlaybackError(engine.ErrorCodeUnspecified, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uri = uri
	return nil
}

func (e *Engine) ClearMediaItems() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uri = ""
}

// Prepare starts loading the media item in the background.
func (e *Engine) Prepare() {
	var cbs callbacks
	e.mu.Lock()
	if e.released || e.uri == "" {
		e.mu.Unlock()
		return
	}
	e.stopLoadingLocked()
	e.setStateLocked(engine.StateBuffering, &cbs)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	gen, uri := e.gen, e.uri
	e.loading.Add(1)
	e.mu.Unlock()

	e.dispatch(cbs)
	go func() {
		defer e.loading.Done()
		e.load(ctx, gen, uri)
	}()
}

// Stop halts playback and loading and forgets the loaded media.
func (e *Engine) Stop() {
	var cbs callbacks
	e.mu.Lock()
	e.stopLoadingLocked()
	e.setPlayingLocked(false, &cbs)
	e.position = 0
	e.media = nil
	e.video = -1
	e.size = engine.VideoSize{}
	e.selector.SetMappedTrackInfo(nil)
	e.setStateLocked(engine.StateIdle, &cbs)
	e.mu.Unlock()

	e.waitLoader()
	e.dispatch(cbs)
}

func (e *Engine) SetPlayWhenReady(playWhenReady bool) {
	var cbs callbacks
	e.mu.Lock()
	e.playWhenReady = playWhenReady
	if e.state == engine.StateReady {
		e.setPlayingLocked(playWhenReady, &cbs)
	}
	e.mu.Unlock()
	e.dispatch(cbs)
}

func (e *Engine) Play()  { e.SetPlayWhenReady(true) }
func (e *Engine) Pause() { e.SetPlayWhenReady(false) }

// SeekTo moves the position, clamped to the media, and rebuffers.
func (e *Engine) SeekTo(position time.Duration) {
	var cbs callbacks
	e.mu.Lock()
	if e.media == nil {
		e.mu.Unlock()
		return
	}
	position = max(position, 0)
	if d := e.media.duration; d != engine.TimeUnset {
		position = min(position, d)
	}
	wasPlaying := e.playing
	e.setPlayingLocked(false, &cbs)
	e.position = position
	e.setStateLocked(engine.StateBuffering, &cbs)
	e.setStateLocked(engine.StateReady, &cbs)
	if wasPlaying || e.playWhenReady {
		e.setPlayingLocked(e.playWhenReady, &cbs)
	}
	e.mu.Unlock()
	e.dispatch(cbs)
}

// SetVideoSurface binds the output. A surface attached while ready renders
// a first frame.
func (e *Engine) SetVideoSurface(s engine.Surface) {
	var cbs callbacks
	e.mu.Lock()
	e.surface = s
	if s != nil && e.state == engine.StateReady {
		cbs.add(func(l engine.Listener) { l.OnRenderedFirstFrame() })
	}
	e.mu.Unlock()
	e.dispatch(cbs)
}

func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *Engine) PlaybackState() engine.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentPosition returns the clock-driven position, or TimeUnset before
// media has loaded.
func (e *Engine) CurrentPosition() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.media == nil {
		return engine.TimeUnset
	}
	return e.positionLocked()
}

func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.media == nil {
		return engine.TimeUnset
	}
	return e.media.duration
}

func (e *Engine) BufferedPosition() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.media == nil {
		return engine.TimeUnset
	}
	buffered := e.positionLocked() + BufferAhead
	if d := e.media.duration; d != engine.TimeUnset {
		buffered = min(buffered, d)
	}
	return buffered
}

func (e *Engine) CurrentTracks() engine.Tracks {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.media == nil {
		return engine.Tracks{}
	}
	return e.selectTracksLocked()
}

func (e *Engine) TrackSelector() engine.TrackSelector {
	return e.selector
}

// Release stops everything and waits for background work to finish.
func (e *Engine) Release() {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	e.released = true
	e.stopLoadingLocked()
	e.stopEndTimerLocked()
	e.playing = false
	e.listeners = nil
	e.mu.Unlock()
	e.waitLoader()
	e.logger.Debug("engine released")
}

func (e *Engine) waitLoader() {
	e.loading.Wait()
}

func (e *Engine) stopLoadingLocked() {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) setStateLocked(s engine.State, cbs *callbacks) {
	if e.state == s {
		return
	}
	e.state = s
	cbs.add(func(l engine.Listener) { l.OnPlaybackStateChanged(s) })
}

func (e *Engine) setPlayingLocked(playing bool, cbs *callbacks) {
	if e.playing == playing {
		return
	}
	if playing {
		e.playingSince = time.Now()
	} else {
		e.position = e.positionLocked()
	}
	e.playing = playing
	cbs.add(func(l engine.Listener) { l.OnIsPlayingChanged(playing) })
	e.scheduleEndLocked()
}

func (e *Engine) positionLocked() time.Duration {
	pos := e.position
	if e.playing {
		pos += time.Since(e.playingSince)
	}
	if e.media != nil && e.media.duration != engine.TimeUnset {
		pos = min(pos, e.media.duration)
	}
	return pos
}

func (e *Engine) stopEndTimerLocked() {
	if e.endTimer != nil {
		e.endTimer.Stop()
		e.endTimer = nil
	}
}

// scheduleEndLocked arms the end-of-stream timer while playing VOD media.
func (e *Engine) scheduleEndLocked() {
	e.stopEndTimerLocked()
	if !e.playing || e.media == nil || e.media.duration == engine.TimeUnset {
		return
	}
	gen := e.gen
	remaining := e.media.duration - e.positionLocked()
	e.endTimer = time.AfterFunc(max(remaining, 0), func() { e.onEnded(gen) })
}

func (e *Engine) onEnded(gen int) {
	var cbs callbacks
	e.mu.Lock()
	if gen != e.gen || !e.playing || e.released {
		e.mu.Unlock()
		return
	}
	e.setPlayingLocked(false, &cbs)
	e.position = e.media.duration
	e.setStateLocked(engine.StateEnded, &cbs)
	e.mu.Unlock()
	e.dispatch(cbs)
}

// load fetches and parses the source, then moves to READY.
func (e *Engine) load(ctx context.Context, gen int, uri string) {
	media, err := e.loadMedia(ctx, gen, uri)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.fail(gen, err)
		return
	}

	var cbs callbacks
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.media = media
	e.position = 0
	e.selector.SetMappedTrackInfo(media.mapped)
	e.applySelectionLocked(&cbs)
	e.setStateLocked(engine.StateReady, &cbs)
	if e.playWhenReady {
		e.setPlayingLocked(true, &cbs)
	}
	if e.surface != nil {
		cbs.add(func(l engine.Listener) { l.OnRenderedFirstFrame() })
	}
	e.mu.Unlock()

	e.logger.Info("media ready",
		slog.String("url", uri),
		slog.Int("variants", len(media.variants)),
		slog.Duration("duration", media.duration))
	e.dispatch(cbs)
}

// fail reports a terminal load error and goes idle.
func (e *Engine) fail(gen int, err *engine.PlaybackError) {
	var cbs callbacks
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	cbs.add(func(l engine.Listener) { l.OnPlayerError(err) })
	e.setStateLocked(engine.StateIdle, &cbs)
	e.mu.Unlock()

	e.logger.Warn("load failed",
		slog.String("code", err.Code.String()),
		slog.String("error", err.Message))
	e.dispatch(cbs)
}

// fetch loads one playlist, retrying as the policy allows. Every failed
// attempt is reported to listeners; the returned error is terminal.
func (e *Engine) fetch(ctx context.Context, gen int, rawURL string) (*httpclient.Response, *engine.PlaybackError) {
	for attempt := 1; ; attempt++ {
		resp, err := e.fetcher.Fetch(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, engine.NewPlaybackError(engine.ErrorCodeUnspecified, ctx.Err())
		}

		perr := classifyFetchError(err)
		info := engine.LoadErrorInfo{DataType: engine.DataTypeManifest, Err: perr, ErrorCount: attempt}
		delay := e.policy.RetryDelayFor(info)
		if !retryable(perr) || delay == engine.TimeUnset || attempt > e.policy.MinimumLoadableRetryCount(info.DataType) {
			return nil, perr
		}

		e.logger.Debug("retrying playlist load",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("code", perr.Code.String()))
		e.reportError(gen, perr)

		select {
		case <-ctx.Done():
			return nil, engine.NewPlaybackError(engine.ErrorCodeUnspecified, ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (e *Engine) reportError(gen int, err *engine.PlaybackError) {
	e.mu.Lock()
	current := gen == e.gen
	e.mu.Unlock()
	if current {
		e.dispatch(callbacks{func(l engine.Listener) { l.OnPlayerError(err) }})
	}
}

func classifyFetchError(err error) *engine.PlaybackError {
	var se *httpclient.StatusError
	switch {
	case errors.As(err, &se) && se.NotFound():
		return engine.NewPlaybackError(engine.ErrorCodeIOFileNotFound, err)
	case errors.As(err, &se):
		return engine.NewPlaybackError(engine.ErrorCodeIOBadHTTPStatus, err)
	case errors.Is(err, httpclient.ErrBodyTooLarge):
		return engine.NewPlaybackError(engine.ErrorCodeParsingManifestUnsupported, err)
	case httpclient.IsTimeout(err):
		return engine.NewPlaybackError(engine.ErrorCodeIONetworkConnectionTimeout, err)
	default:
		return engine.NewPlaybackError(engine.ErrorCodeIONetworkConnectionFailed, err)
	}
}

func retryable(err *engine.PlaybackError) bool {
	return err.Code >= engine.ErrorCodeIONetworkConnectionFailed && err.Code <= engine.ErrorCodeIOFileNotFound
}

// loadMedia fetches the source playlist and, for a multivariant playlist,
// the best variant's media playlist to learn the duration.
func (e *Engine) loadMedia(ctx context.Context, gen int, uri string) (*loadedMedia, *engine.PlaybackError) {
	resp, perr := e.fetch(ctx, gen, uri)
	if perr != nil {
		return nil, perr
	}

	pl, err := playlist.Unmarshal(resp.Body)
	if err != nil {
		return nil, engine.NewPlaybackError(engine.ErrorCodeParsingManifestMalformed, err)
	}

	switch p := pl.(type) {
	case *playlist.Media:
		return mediaFromPlaylist(resp.URL, p), nil

	case *playlist.Multivariant:
		m := mediaFromMultivariant(resp.URL, p)
		if len(m.variants) == 0 {
			return nil, engine.NewPlaybackError(engine.ErrorCodeParsingManifestUnsupported,
				errors.New("multivariant playlist has no variants"))
		}
		m.duration = e.variantDuration(ctx, gen, m)
		return m, nil

	default:
		return nil, engine.NewPlaybackError(engine.ErrorCodeParsingManifestUnsupported,
			fmt.Errorf("unsupported playlist type %T", pl))
	}
}

// variantDuration loads the preferred variant's media playlist. A failure
// here leaves the duration unknown rather than failing the load.
func (e *Engine) variantDuration(ctx context.Context, gen int, m *loadedMedia) time.Duration {
	v := m.variants[m.bestVariant()]
	resp, perr := e.fetch(ctx, gen, v.uri)
	if perr != nil {
		e.logger.Debug("variant playlist unavailable", slog.String("error", perr.Message))
		return engine.TimeUnset
	}
	pl, err := playlist.Unmarshal(resp.Body)
	if err != nil {
		return engine.TimeUnset
	}
	media, ok := pl.(*playlist.Media)
	if !ok {
		return engine.TimeUnset
	}
	return mediaDuration(media)
}

// onSelectionInvalidated re-applies track selection after the selector's
// parameters change. A change of video variant rebuffers.
func (e *Engine) onSelectionInvalidated() {
	var cbs callbacks
	e.mu.Lock()
	if e.media == nil || e.released {
		e.mu.Unlock()
		return
	}
	prevVideo := e.video
	e.applySelectionLocked(&cbs)
	if e.video != prevVideo && e.state == engine.StateReady {
		playing := e.playing
		e.setPlayingLocked(false, &cbs)
		e.setStateLocked(engine.StateBuffering, &cbs)
		e.setStateLocked(engine.StateReady, &cbs)
		e.setPlayingLocked(playing, &cbs)
	}
	e.mu.Unlock()
	e.dispatch(cbs)
}

// applySelectionLocked recomputes the selection and queues the track, cue
// and video size callbacks.
func (e *Engine) applySelectionLocked(cbs *callbacks) {
	tracks := e.selectTracksLocked()
	e.video = e.media.selectVideo(e.selector.Parameters())

	size := engine.VideoSize{}
	if e.video >= 0 {
		v := e.media.variants[e.video]
		size = engine.VideoSize{Width: v.width, Height: v.height, PixelWidthHeightRatio: 1}
	}

	cbs.add(func(l engine.Listener) { l.OnTracksChanged(tracks) })
	cbs.add(func(l engine.Listener) { l.OnCues(nil) })
	if size != e.size && size.Width > 0 && size.Height > 0 {
		cbs.add(func(l engine.Listener) { l.OnVideoSizeChanged(size) })
	}
	e.size = size
}

func (e *Engine) selectTracksLocked() engine.Tracks {
	return e.media.tracks(e.selector.Parameters())
}

// parseResolution parses an HLS RESOLUTION attribute ("1920x1080").
func parseResolution(s string) (int, int) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return width, height
}

// supportFor is the renderer support for a variant's declared codecs.
func supportFor(codecs []string) engine.FormatSupport {
	if codec.AllSupported(codecs) {
		return engine.FormatHandled
	}
	return engine.FormatUnsupportedSubtype
}

type noRetry struct{}

func (noRetry) FallbackSelectionFor(engine.FallbackOptions, engine.LoadErrorInfo) *engine.FallbackSelection {
	return nil
}
func (noRetry) RetryDelayFor(engine.LoadErrorInfo) time.Duration { return engine.TimeUnset }
func (noRetry) MinimumLoadableRetryCount(engine.DataType) int    { return 0 }
