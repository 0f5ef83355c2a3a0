package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/mo"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/surface"
)

var (
	// ErrReleased is returned by commands issued after Release.
	ErrReleased = errors.New("player released")

	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("missing required dependency")
)

// Options configures an Orchestrator.
type Options struct {
	// Factory builds the engine on first use. Required.
	Factory engine.Factory
	// Registry issues render surfaces. Required.
	Registry surface.Registry
	// PositionInterval is the position sampling period; zero means DefaultPositionInterval.
	PositionInterval time.Duration
	// OnError, if set, is called on the loop goroutine for every engine error.
	OnError func(err *engine.PlaybackError, transient bool)
	Logger  *slog.Logger
}

// Orchestrator owns one engine, one render surface and the published
// PlaybackState. Every mutation runs on a single loop goroutine; public
// methods hand work to the loop and wait for it.
type Orchestrator struct {
	logger *slog.Logger

	controller *Controller
	tracks     *TrackManager
	surfaces   *SurfaceManager
	ticker     *PositionTicker
	store      *stateStore
	events     *EventSubscription
	onError    func(*engine.PlaybackError, bool)

	lastErr atomic.Pointer[engine.PlaybackError]

	cmds        chan func()
	stop        chan struct{}
	done        chan struct{}
	releaseOnce sync.Once
}

// New constructs an orchestrator and starts its loop.
func New(opts Options) (*Orchestrator, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("engine factory: %w", ErrMissingDependency)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("surface registry: %w", ErrMissingDependency)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	controller := NewController(opts.Factory).WithLogger(logger)
	sub, err := controller.Events().Subscribe()
	if err != nil {
		return nil, fmt.Errorf("subscribing to engine events: %w", err)
	}

	o := &Orchestrator{
		logger:     observability.WithComponent(logger, "orchestrator"),
		controller: controller,
		tracks:     NewTrackManager(controller).WithLogger(logger),
		surfaces:   NewSurfaceManager(opts.Registry).WithLogger(logger),
		ticker:     NewPositionTicker(opts.PositionInterval),
		store:      newStateStore(),
		events:     sub,
		onError:    opts.OnError,
		cmds:       make(chan func()),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go o.run()
	return o, nil
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case <-o.stop:
			o.teardown()
			return
		case fn := <-o.cmds:
			fn()
		case <-o.events.Ready():
			for _, ev := range o.events.Drain() {
				o.handleEvent(ev)
			}
		case <-o.ticker.C():
			o.samplePosition()
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case o.cmds <- task:
	case <-o.done:
		return ErrReleased
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current snapshot.
func (o *Orchestrator) State() models.PlaybackState {
	return o.store.load()
}

// Subscribe returns a latest-value subscription primed with the current
// snapshot. The caller must Cancel it when done.
func (o *Orchestrator) Subscribe() *StateSubscription {
	return o.store.subscribe()
}

// LastError returns the most recent terminal engine error since the last
// READY, or nil.
func (o *Orchestrator) LastError() *engine.PlaybackError {
	return o.lastErr.Load()
}

// Done is closed once the orchestrator has been released.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// InitWithURL loads url, replacing any current media. The surface binding
// survives; everything describing the previous media is reset.
func (o *Orchestrator) InitWithURL(ctx context.Context, url string) error {
	return o.do(ctx, func() {
		o.ticker.Stop()
		o.lastErr.Store(nil)
		o.store.update(func(s *models.PlaybackState) {
			*s = s.ResetMedia()
			s.IsLoading = true
		})
		o.controller.LoadSource(url)
	})
}

// Play resumes playback.
func (o *Orchestrator) Play(ctx context.Context) error {
	return o.do(ctx, o.controller.Play)
}

// Pause pauses playback.
func (o *Orchestrator) Pause(ctx context.Context) error {
	return o.do(ctx, o.controller.Pause)
}

// SeekTo seeks to position and optimistically publishes it as loading.
func (o *Orchestrator) SeekTo(ctx context.Context, position time.Duration) error {
	return o.do(ctx, func() {
		o.store.update(func(s *models.PlaybackState) {
			s.Position = position
			s.IsLoading = true
		})
		o.controller.SeekTo(position)
	})
}

// SetResolution forces the resolution with the given id; None restores
// adaptive selection.
func (o *Orchestrator) SetResolution(ctx context.Context, id mo.Option[string]) (models.SelectionResult, error) {
	var res models.SelectionResult
	err := o.do(ctx, func() {
		res = o.tracks.SelectResolution(id)
		if !res.Applied {
			return
		}
		o.store.update(func(s *models.PlaybackState) {
			s.SelectedResolutionID = id
			if id.IsPresent() {
				s.IsLoading = true
			}
		})
	})
	if err != nil {
		return models.SelectionResult{}, err
	}
	return res, nil
}

// SetAudioTrack forces the audio track in the given language; None clears
// the override and the language preference.
func (o *Orchestrator) SetAudioTrack(ctx context.Context, language mo.Option[string]) (models.SelectionResult, error) {
	var res models.SelectionResult
	err := o.do(ctx, func() {
		res = o.tracks.SelectAudioTrack(language)
		if res.Applied {
			o.store.update(func(s *models.PlaybackState) { s.SelectedAudioTrackID = language })
		}
	})
	if err != nil {
		return models.SelectionResult{}, err
	}
	return res, nil
}

// SetSubtitleTrack forces the subtitle track with the given id; None clears
// the override and the language preference.
func (o *Orchestrator) SetSubtitleTrack(ctx context.Context, id mo.Option[string]) (models.SelectionResult, error) {
	var res models.SelectionResult
	err := o.do(ctx, func() {
		res = o.tracks.SelectSubtitleTrack(id)
		if res.Applied {
			o.store.update(func(s *models.PlaybackState) { s.SelectedSubtitleTrackID = id })
		}
	})
	if err != nil {
		return models.SelectionResult{}, err
	}
	return res, nil
}

// CreateSurfaceForPlayer allocates the render surface and binds the engine
// to it. Calling it again returns the existing id without side effects.
func (o *Orchestrator) CreateSurfaceForPlayer(ctx context.Context) (int64, bool, error) {
	var (
		id int64
		ok bool
	)
	err := o.do(ctx, func() {
		if id, ok = o.surfaces.ID(); ok {
			return
		}
		if id, ok = o.surfaces.CreateSurface(); !ok {
			return
		}
		if d, bound := o.surfaces.GetSurface(); bound {
			o.controller.AttachSurface(d)
		}
		o.store.update(func(s *models.PlaybackState) { s.SurfaceID = mo.Some(id) })
	})
	if err != nil {
		return 0, false, err
	}
	return id, ok, nil
}

// SetSurfaceSize sets the surface's default buffer size.
func (o *Orchestrator) SetSurfaceSize(ctx context.Context, width, height int) error {
	return o.do(ctx, func() { o.surfaces.SetBufferSize(width, height) })
}

// ReleaseSurface detaches the engine from the surface and frees it. The
// engine keeps running.
func (o *Orchestrator) ReleaseSurface(ctx context.Context) error {
	return o.do(ctx, o.releaseSurface)
}

func (o *Orchestrator) releaseSurface() {
	if _, ok := o.surfaces.ID(); !ok {
		return
	}
	o.controller.AttachSurface(nil)
	o.surfaces.Release()
	o.store.update(func(s *models.PlaybackState) { s.SurfaceID = mo.None[int64]() })
}

// Release stops the loop and frees the surface and then the engine. It
// returns once teardown is complete. Safe to call more than once.
func (o *Orchestrator) Release() {
	o.releaseOnce.Do(func() { close(o.stop) })
	<-o.done
}

func (o *Orchestrator) teardown() {
	o.ticker.Stop()
	o.events.Cancel()
	o.releaseSurface()
	o.controller.Release()
	o.store.close()
	o.logger.Debug("orchestrator released")
}

func (o *Orchestrator) handleEvent(ev PlayerEvent) {
	switch e := ev.(type) {
	case PlayingChanged:
		o.store.update(func(s *models.PlaybackState) { s.IsPlaying = e.IsPlaying })
		if e.IsPlaying {
			o.ticker.Start()
		} else {
			o.ticker.Stop()
		}

	case PlaybackStateChanged:
		o.handlePlaybackState(e.State)

	case ErrorEvent:
		o.handleError(e)

	case CuesEvent:
		o.store.update(func(s *models.PlaybackState) { s.CurrentCues = e.Cues })

	case TracksChanged:
		o.refreshTracks()

	case VideoSizeChanged:
		if e.Size.Width <= 0 || e.Size.Height <= 0 {
			return
		}
		o.store.update(func(s *models.PlaybackState) {
			s.VideoAspectRatio = mo.Some(e.Size.AspectRatio())
		})
		if _, ok := o.surfaces.ID(); ok {
			o.surfaces.SetBufferSize(e.Size.Width, e.Size.Height)
		}

	case RenderedFirstFrame:
		o.store.update(func(s *models.PlaybackState) { s.IsLoading = false })
	}
}

func (o *Orchestrator) handlePlaybackState(state engine.State) {
	o.logger.Debug("playback state changed", slog.String("state", state.String()))

	switch state {
	case engine.StateReady:
		o.lastErr.Store(nil)
		playing := o.controller.IsPlaying()
		position := o.controller.Position()
		duration := o.controller.Duration()
		o.store.update(func(s *models.PlaybackState) {
			s.IsPlaying = playing
			s.Position = keepIfUnset(position, s.Position)
			s.Duration = keepIfUnset(duration, s.Duration)
			s.IsLoading = false
		})
		if playing {
			o.ticker.Start()
		}
	case engine.StateBuffering:
		o.store.update(func(s *models.PlaybackState) {
			s.IsPlaying = false
			s.IsLoading = true
		})
	case engine.StateEnded, engine.StateIdle:
		o.ticker.Stop()
	}
}

func (o *Orchestrator) handleError(e ErrorEvent) {
	perr := &engine.PlaybackError{Code: e.Code, Message: e.Message}
	transient := e.Code.IsTransientNetwork()

	if transient {
		o.logger.Warn("transient load error, retrying",
			slog.String("code", e.Code.String()),
			slog.String("message", e.Message))
		o.store.update(func(s *models.PlaybackState) { s.IsLoading = true })
	} else {
		o.logger.Error("playback error",
			slog.String("code", e.Code.String()),
			slog.String("message", e.Message))
		o.lastErr.Store(perr)
	}

	if o.onError != nil {
		o.onError(perr, transient)
	}
}

func (o *Orchestrator) refreshTracks() {
	resolutions := o.tracks.ListAvailableResolutions()
	observedAudio := mo.None[string]()
	audio := o.tracks.ListAudioTracks(func(id string) { observedAudio = mo.Some(id) })
	subtitles := o.tracks.ListSubtitleTracks()

	o.store.update(func(s *models.PlaybackState) {
		s.AvailableVideoResolutions = resolutions
		s.AvailableAudioTracks = audio
		s.AvailableSubtitleTracks = subtitles
		if observedAudio.IsPresent() {
			s.SelectedAudioTrackID = observedAudio
		}
	})
}

func (o *Orchestrator) samplePosition() {
	position := o.controller.Position()
	if position == engine.TimeUnset {
		o.ticker.Stop()
		return
	}
	duration := o.controller.Duration()
	buffered := o.controller.BufferedPosition()
	o.store.update(func(s *models.PlaybackState) {
		s.Position = position
		s.Duration = keepIfUnset(duration, s.Duration)
		s.BufferedPosition = keepIfUnset(buffered, s.BufferedPosition)
	})
}

func keepIfUnset(v, prior time.Duration) time.Duration {
	if v == engine.TimeUnset {
		return prior
	}
	return v
}
