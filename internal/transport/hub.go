package transport

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/player"
)

// Subscriber receives state snapshots. Events holds at most one pending
// snapshot; a newer one replaces it.
type Subscriber struct {
	ID     string
	Events chan models.PlaybackState
}

// offer replaces any pending snapshot with state.
func (s *Subscriber) offer(state models.PlaybackState) {
	select {
	case <-s.Events:
	default:
	}
	select {
	case s.Events <- state:
	default:
	}
}

// Hub forwards the bound player's snapshots to any number of subscribers.
// Rebinding moves every subscriber to the new player.
type Hub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string]*Subscriber
	latest      *models.PlaybackState
	source      *player.StateSubscription
	forwarding  sync.WaitGroup
}

// NewHub creates an unbound hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:      observability.WithComponent(logger, "hub"),
		subscribers: make(map[string]*Subscriber),
	}
}

// Bind starts forwarding sub. The previous source, if any, is cancelled and
// its forwarder has exited before Bind returns.
func (h *Hub) Bind(sub *player.StateSubscription) {
	h.Unbind()

	h.mu.Lock()
	h.source = sub
	h.mu.Unlock()

	h.forwarding.Add(1)
	go func() {
		defer h.forwarding.Done()
		for state := range sub.C() {
			h.publish(state)
		}
	}()
}

// Unbind stops forwarding. The last snapshot stays available to new
// subscribers.
func (h *Hub) Unbind() {
	h.mu.Lock()
	src := h.source
	h.source = nil
	h.mu.Unlock()

	if src != nil {
		src.Cancel()
	}
	h.forwarding.Wait()
}

func (h *Hub) publish(state models.PlaybackState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = &state
	for _, sub := range h.subscribers {
		sub.offer(state)
	}
}

// Latest returns the most recent snapshot, if any has been seen.
func (h *Hub) Latest() (models.PlaybackState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return models.PlaybackState{}, false
	}
	return *h.latest, true
}

// Subscribe registers a subscriber primed with the latest snapshot.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     uuid.NewString(),
		Events: make(chan models.PlaybackState, 1),
	}
	if h.latest != nil {
		sub.Events <- *h.latest
	}
	h.subscribers[sub.ID] = sub

	h.logger.Debug("subscriber added", slog.String("subscriber_id", sub.ID))
	return sub
}

// Unsubscribe removes a subscriber. Its channel is not closed.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		h.logger.Debug("subscriber removed", slog.String("subscriber_id", id))
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
