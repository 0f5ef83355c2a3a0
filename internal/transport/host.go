package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/player"
	"github.com/jmylchreest/skyplayer/internal/surface"
)

// ErrNoPlayer is returned by Host.With when no player has been initialised.
var ErrNoPlayer = errors.New("no player initialised")

// Session is the view of a player given to session observers.
type Session interface {
	Subscribe() *player.StateSubscription
	State() models.PlaybackState
	LastError() *engine.PlaybackError
}

// SessionObserver follows the player lifecycle. Observers must not call
// back into the host.
type SessionObserver interface {
	SessionStarted(url string, s Session)
	SessionError(err *engine.PlaybackError)
	SessionEnded(s Session)
}

// HostOptions configures a Host.
type HostOptions struct {
	Factory          engine.Factory
	Registry         surface.Registry
	PositionInterval time.Duration
	Hub              *Hub
	Logger           *slog.Logger
}

// Host owns the current player. Initialising a new source fully releases
// the previous player before the next one is built.
type Host struct {
	opts   HostOptions
	hub    *Hub
	logger *slog.Logger

	mu      sync.Mutex
	current *player.Orchestrator
	url     string

	obsMu     sync.RWMutex
	observers []SessionObserver
}

// NewHost creates a host. A nil Hub gets a private one.
func NewHost(opts HostOptions) *Host {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	return &Host{
		opts:   opts,
		hub:    opts.Hub,
		logger: observability.WithComponent(opts.Logger, "host"),
	}
}

// Hub returns the hub the host binds players to.
func (h *Host) Hub() *Hub {
	return h.hub
}

// AddObserver registers a session observer.
func (h *Host) AddObserver(o SessionObserver) {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	h.observers = append(h.observers, o)
}

// Init releases any current player, builds a new one bound to the hub and
// loads url into it.
func (h *Host) Init(ctx context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseLocked()

	p, err := player.New(player.Options{
		Factory:          h.opts.Factory,
		Registry:         h.opts.Registry,
		PositionInterval: h.opts.PositionInterval,
		OnError:          h.onError,
		Logger:           h.opts.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}

	h.current, h.url = p, url
	h.hub.Bind(p.Subscribe())
	for _, o := range h.snapshotObservers() {
		o.SessionStarted(url, p)
	}

	h.logger.Info("player initialised", slog.String("url", url))
	return p.InitWithURL(ctx, url)
}

// onError runs on the player loop and must not take h.mu: Init holds it
// while waiting on the loop.
func (h *Host) onError(err *engine.PlaybackError, transient bool) {
	if transient {
		return
	}
	for _, o := range h.snapshotObservers() {
		o.SessionError(err)
	}
}

func (h *Host) snapshotObservers() []SessionObserver {
	h.obsMu.RLock()
	defer h.obsMu.RUnlock()
	return append([]SessionObserver(nil), h.observers...)
}

// Release releases the current player, if any.
func (h *Host) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked()
}

func (h *Host) releaseLocked() {
	if h.current == nil {
		return
	}
	p := h.current
	h.current, h.url = nil, ""

	p.Release()
	h.hub.Unbind()
	for _, o := range h.snapshotObservers() {
		o.SessionEnded(p)
	}
	h.logger.Info("player released")
}

// With runs fn against the current player while holding the host, so the
// player cannot be replaced underneath it.
func (h *Host) With(fn func(p *player.Orchestrator) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return ErrNoPlayer
	}
	return fn(h.current)
}

// Current returns the current player and its source URL.
func (h *Host) Current() (*player.Orchestrator, string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.url, h.current != nil
}
