package player

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
)

// Controller owns a single engine instance, created on first use, and turns
// its callbacks into PlayerEvents. Commands must come from one goroutine.
type Controller struct {
	factory engine.Factory
	logger  *slog.Logger

	eng      engine.Engine
	listener *engineListener
	events   *EventStream
}

// NewController creates a controller that builds its engine with factory.
// It panics if factory is nil.
func NewController(factory engine.Factory) *Controller {
	if factory == nil {
		panic("player: nil engine factory")
	}
	events := NewEventStream()
	return &Controller{
		factory:  factory,
		logger:   slog.Default(),
		events:   events,
		listener: &engineListener{events: events},
	}
}

// WithLogger sets the logger.
func (c *Controller) WithLogger(logger *slog.Logger) *Controller {
	c.logger = observability.WithComponent(logger, "controller")
	return c
}

// Events returns the controller's event stream.
func (c *Controller) Events() *EventStream {
	return c.events
}

// ensureEngine returns the engine, creating it if needed. A construction failure is
// emitted as an ErrorEvent and reported as false.
func (c *Controller) ensureEngine() (engine.Engine, bool) {
	if c.eng != nil {
		return c.eng, true
	}
	eng, err := c.factory()
	if err != nil {
		c.logger.Error("creating engine", slog.String("error", err.Error()))
		c.events.Emit(ErrorEvent{Code: engine.ErrorCodeFailedRuntimeCheck, Message: err.Error()})
		return nil, false
	}
	eng.AddListener(c.listener)
	c.eng = eng
	c.logger.Debug("engine created")
	return eng, true
}

// LoadSource replaces the current media with url and starts playback once
// ready. Failures are emitted as ErrorEvents.
func (c *Controller) LoadSource(url string) {
	eng, ok := c.ensureEngine()
	if !ok {
		return
	}
	eng.Stop()
	eng.ClearMediaItems()
	if err := eng.SetMediaItem(url); err != nil {
		c.logger.Warn("setting media item",
			slog.String("url", url),
			slog.String("error", err.Error()))
		c.events.Emit(errorEventFrom(err))
		return
	}
	eng.Prepare()
	eng.SetPlayWhenReady(true)
	c.logger.Info("source loaded", slog.String("url", url))
}

// Play resumes playback. No-op before the engine exists.
func (c *Controller) Play() {
	if c.eng != nil {
		c.eng.Play()
	}
}

// Pause pauses playback. No-op before the engine exists.
func (c *Controller) Pause() {
	if c.eng != nil {
		c.eng.Pause()
	}
}

// SeekTo seeks to position. No-op before the engine exists.
func (c *Controller) SeekTo(position time.Duration) {
	if c.eng != nil {
		c.eng.SeekTo(position)
	}
}

// AttachSurface binds the engine's video output to s; nil detaches.
func (c *Controller) AttachSurface(s engine.Surface) {
	if s == nil {
		if c.eng != nil {
			c.eng.SetVideoSurface(nil)
		}
		return
	}
	if eng, ok := c.ensureEngine(); ok {
		eng.SetVideoSurface(s)
	}
}

// IsPlaying reports the engine's live playing flag.
func (c *Controller) IsPlaying() bool {
	return c.eng != nil && c.eng.IsPlaying()
}

// Position returns the playback position, or engine.TimeUnset.
func (c *Controller) Position() time.Duration {
	if c.eng == nil {
		return engine.TimeUnset
	}
	return c.eng.CurrentPosition()
}

// Duration returns the media duration, or engine.TimeUnset.
func (c *Controller) Duration() time.Duration {
	if c.eng == nil {
		return engine.TimeUnset
	}
	return c.eng.Duration()
}

// BufferedPosition returns how far media is buffered, or engine.TimeUnset.
func (c *Controller) BufferedPosition() time.Duration {
	if c.eng == nil {
		return engine.TimeUnset
	}
	return c.eng.BufferedPosition()
}

// CurrentTracks returns the engine's active track set.
func (c *Controller) CurrentTracks() engine.Tracks {
	if c.eng == nil {
		return engine.Tracks{}
	}
	return c.eng.CurrentTracks()
}

// TrackSelector returns the engine's selector, or nil before the engine exists.
func (c *Controller) TrackSelector() engine.TrackSelector {
	if c.eng == nil {
		return nil
	}
	return c.eng.TrackSelector()
}

// Release detaches from and releases the engine and forgets buffered events.
// A second call is a no-op.
func (c *Controller) Release() {
	c.events.Reset()
	if c.eng == nil {
		return
	}
	c.eng.RemoveListener(c.listener)
	c.eng.Release()
	c.eng = nil
	c.logger.Debug("engine released")
}

func errorEventFrom(err error) ErrorEvent {
	var perr *engine.PlaybackError
	if errors.As(err, &perr) {
		return ErrorEvent{Code: perr.Code, Message: perr.Message}
	}
	return ErrorEvent{Code: engine.ErrorCodeUnspecified, Message: err.Error()}
}

// engineListener forwards engine callbacks into the event stream.
type engineListener struct {
	events *EventStream
}

func (l *engineListener) OnIsPlayingChanged(isPlaying bool) {
	l.events.Emit(PlayingChanged{IsPlaying: isPlaying})
}

func (l *engineListener) OnPlaybackStateChanged(state engine.State) {
	l.events.Emit(PlaybackStateChanged{State: state})
}

func (l *engineListener) OnPlayerError(err *engine.PlaybackError) {
	l.events.Emit(ErrorEvent{Code: err.Code, Message: err.Message})
}

func (l *engineListener) OnCues(cues []string) {
	out := make(models.Cues, 0, len(cues))
	for _, text := range cues {
		out = append(out, models.Cue{Text: text})
	}
	l.events.Emit(CuesEvent{Cues: out})
}

func (l *engineListener) OnTracksChanged(engine.Tracks) {
	l.events.Emit(TracksChanged{})
}

func (l *engineListener) OnVideoSizeChanged(size engine.VideoSize) {
	l.events.Emit(VideoSizeChanged{Size: size})
}

func (l *engineListener) OnRenderedFirstFrame() {
	l.events.Emit(RenderedFirstFrame{})
}
