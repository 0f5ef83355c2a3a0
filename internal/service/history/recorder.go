// Package history records playback sessions and prunes old ones.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/repository"
	"github.com/jmylchreest/skyplayer/internal/transport"
)

const (
	// DefaultFlushInterval bounds how often position is written while the
	// play/pause state is unchanged.
	DefaultFlushInterval = 10 * time.Second

	writeTimeout = 5 * time.Second
)

var _ transport.SessionObserver = (*Recorder)(nil)

// Options configures a Recorder.
type Options struct {
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Recorder follows the host's player lifecycle and writes one
// PlaybackSession per loaded source.
type Recorder struct {
	repo       repository.PlaybackSessionRepository
	flushEvery time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	active *activeSession
}

type activeSession struct {
	record *models.PlaybackSession
	states <-chan models.PlaybackState
	cancel func()
	wake   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	lastErr string
}

// NewRecorder creates a recorder writing through repo.
func NewRecorder(repo repository.PlaybackSessionRepository, opts Options) *Recorder {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Recorder{
		repo:       repo,
		flushEvery: opts.FlushInterval,
		logger:     observability.WithComponent(opts.Logger, "history"),
		now:        time.Now,
	}
}

// SessionStarted opens a session for url and starts following s.
func (r *Recorder) SessionStarted(url string, s transport.Session) {
	sub := s.Subscribe()
	r.start(url, sub.C(), sub.Cancel)
}

func (r *Recorder) start(url string, states <-chan models.PlaybackState, cancel func()) {
	r.mu.Lock()
	prev := r.active
	r.active = nil
	r.mu.Unlock()
	if prev != nil {
		r.finish(prev, nil)
	}

	record := &models.PlaybackSession{URL: url, StartedAt: r.now()}
	ctx, done := context.WithTimeout(context.Background(), writeTimeout)
	defer done()
	if err := r.repo.Create(ctx, record); err != nil {
		cancel()
		r.logger.Warn("failed to open playback session",
			slog.String("url", url),
			slog.String("error", err.Error()))
		return
	}

	a := &activeSession{
		record: record,
		states: states,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	r.mu.Lock()
	r.active = a
	r.mu.Unlock()

	go r.watch(a)

	r.logger.Debug("playback session opened", slog.String("session_id", record.ID.String()))
}

// SessionError keeps err as the session's last error. It runs on the player
// loop, so the write happens on the watcher.
func (r *Recorder) SessionError(err *engine.PlaybackError) {
	r.mu.Lock()
	a := r.active
	r.mu.Unlock()
	if a == nil || err == nil {
		return
	}

	a.mu.Lock()
	a.lastErr = err.Error()
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// SessionEnded closes the active session with the final state of s.
func (r *Recorder) SessionEnded(s transport.Session) {
	r.mu.Lock()
	a := r.active
	r.active = nil
	r.mu.Unlock()
	if a == nil {
		return
	}
	r.finish(a, s)
}

// Close ends any active session without a final snapshot.
func (r *Recorder) Close() {
	r.mu.Lock()
	a := r.active
	r.active = nil
	r.mu.Unlock()
	if a != nil {
		r.finish(a, nil)
	}
}

func (r *Recorder) finish(a *activeSession, s transport.Session) {
	a.cancel()
	<-a.done

	if s != nil {
		applyState(a.record, s.State())
		if pe := s.LastError(); pe != nil {
			a.mu.Lock()
			a.lastErr = pe.Error()
			a.mu.Unlock()
		}
	}
	ended := r.now()
	a.record.EndedAt = &ended
	r.flush(a)

	r.logger.Debug("playback session closed",
		slog.String("session_id", a.record.ID.String()),
		slog.Int64("last_position_ms", a.record.LastPositionMs))
}

// watch flushes on every play/pause transition and otherwise at most once
// per flush interval. It exits when the state stream closes.
func (r *Recorder) watch(a *activeSession) {
	defer close(a.done)

	var (
		playing   bool
		seen      bool
		lastFlush time.Time
	)
	for {
		select {
		case st, ok := <-a.states:
			if !ok {
				return
			}
			transition := seen && st.IsPlaying != playing
			playing, seen = st.IsPlaying, true
			applyState(a.record, st)
			if transition || r.now().Sub(lastFlush) >= r.flushEvery {
				r.flush(a)
				lastFlush = r.now()
			}
		case <-a.wake:
			r.flush(a)
			lastFlush = r.now()
		}
	}
}

func (r *Recorder) flush(a *activeSession) {
	a.mu.Lock()
	a.record.LastError = a.lastErr
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Update(ctx, a.record); err != nil {
		r.logger.Warn("failed to write playback session",
			slog.String("session_id", a.record.ID.String()),
			slog.String("error", err.Error()))
	}
}

func applyState(rec *models.PlaybackSession, st models.PlaybackState) {
	if ms, ok := millis(st.Position); ok {
		rec.LastPositionMs = ms
	}
	if ms, ok := millis(st.Duration); ok {
		rec.DurationMs = ms
	}
}

func millis(d time.Duration) (int64, bool) {
	if d == engine.TimeUnset || d < 0 {
		return 0, false
	}
	return d.Milliseconds(), true
}
