package player

import (
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/skyplayer/internal/models"
)

// stateStore holds the published PlaybackState. Only the orchestrator loop
// calls update; any goroutine may read or subscribe.
type stateStore struct {
	current atomic.Pointer[models.PlaybackState]

	mu     sync.Mutex
	subs   map[*StateSubscription]struct{}
	closed bool
}

func newStateStore() *stateStore {
	s := &stateStore{subs: make(map[*StateSubscription]struct{})}
	s.current.Store(&models.PlaybackState{})
	return s
}

// load returns the current snapshot.
func (s *stateStore) load() models.PlaybackState {
	return *s.current.Load()
}

// update is the single mutation entry point. fn edits a private copy; the
// result is reconciled so that no selected id dangles, then published.
func (s *stateStore) update(fn func(*models.PlaybackState)) models.PlaybackState {
	next := s.current.Load().Clone()
	fn(&next)
	next = next.Reconciled()
	s.current.Store(&next)
	s.publish(next)
	return next
}

func (s *stateStore) publish(state models.PlaybackState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.offer(state)
	}
}

// subscribe registers a latest-value subscriber primed with the current
// snapshot. After close the returned subscription's channel is already closed.
func (s *stateStore) subscribe() *StateSubscription {
	sub := &StateSubscription{ch: make(chan models.PlaybackState, 1), store: s}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(sub.ch)
		sub.done = true
		return sub
	}
	sub.ch <- s.load()
	s.subs[sub] = struct{}{}
	return sub
}

// close ends every subscription.
func (s *stateStore) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		sub.closeLocked()
	}
	clear(s.subs)
}

// StateSubscription receives PlaybackState snapshots. A slow reader only
// ever sees the most recent one.
type StateSubscription struct {
	ch    chan models.PlaybackState
	store *stateStore
	done  bool // guarded by store.mu
}

// C yields snapshots. It is closed when the subscription is cancelled or
// the player is released.
func (sub *StateSubscription) C() <-chan models.PlaybackState {
	return sub.ch
}

// Cancel stops delivery and closes C. Safe to call more than once.
func (sub *StateSubscription) Cancel() {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	delete(sub.store.subs, sub)
	sub.closeLocked()
}

func (sub *StateSubscription) closeLocked() {
	if sub.done {
		return
	}
	sub.done = true
	close(sub.ch)
}

// offer replaces any undelivered snapshot with state. Called with store.mu held,
// so this is the only sender and the second send cannot block.
func (sub *StateSubscription) offer(state models.PlaybackState) {
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- state
}
