package player

import (
	"errors"
	"sync"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
)

// ErrAlreadySubscribed is returned when a second consumer subscribes to an EventStream.
var ErrAlreadySubscribed = errors.New("event stream already has a subscriber")

// PlayerEvent is a normalized engine callback.
type PlayerEvent interface {
	playerEvent()
}

// PlayingChanged reports that the engine started or stopped advancing playback.
type PlayingChanged struct {
	IsPlaying bool
}

// PlaybackStateChanged reports an engine state transition.
type PlaybackStateChanged struct {
	State engine.State
}

// ErrorEvent reports an engine failure.
type ErrorEvent struct {
	Code    engine.ErrorCode
	Message string
}

// CuesEvent carries the subtitle cues now on screen.
type CuesEvent struct {
	Cues models.Cues
}

// TracksChanged reports that the available or selected tracks changed.
type TracksChanged struct{}

// VideoSizeChanged reports new decoded video dimensions.
type VideoSizeChanged struct {
	Size engine.VideoSize
}

// RenderedFirstFrame reports that a frame reached the surface.
type RenderedFirstFrame struct{}

func (PlayingChanged) playerEvent()       {}
func (PlaybackStateChanged) playerEvent() {}
func (ErrorEvent) playerEvent()           {}
func (CuesEvent) playerEvent()            {}
func (TracksChanged) playerEvent()        {}
func (VideoSizeChanged) playerEvent()     {}
func (RenderedFirstFrame) playerEvent()   {}

// EventStream is a hot stream of PlayerEvents with one consumer. A new
// subscriber first receives the most recently emitted event. Emit never
// blocks, so it is safe to call from engine callback goroutines.
type EventStream struct {
	mu         sync.Mutex
	latest     PlayerEvent
	pending    []PlayerEvent
	ready      chan struct{}
	subscribed bool
}

// NewEventStream creates an empty stream.
func NewEventStream() *EventStream {
	return &EventStream{ready: make(chan struct{}, 1)}
}

// Emit publishes ev to the subscriber, if any, and remembers it for replay.
func (s *EventStream) Emit(ev PlayerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = ev
	if !s.subscribed {
		return
	}
	s.pending = append(s.pending, ev)
	s.signalLocked()
}

// Subscribe attaches the single consumer.
func (s *EventStream) Subscribe() (*EventSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed {
		return nil, ErrAlreadySubscribed
	}
	s.subscribed = true
	if s.latest != nil {
		s.pending = append(s.pending[:0], s.latest)
		s.signalLocked()
	}
	return &EventSubscription{stream: s}, nil
}

// Reset forgets the replay value and anything not yet consumed.
func (s *EventStream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = nil
	s.pending = nil
}

func (s *EventStream) signalLocked() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *EventStream) drain() []PlayerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func (s *EventStream) unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = false
	s.pending = nil
}

// EventSubscription is the consumer side of an EventStream.
type EventSubscription struct {
	stream *EventStream
	once   sync.Once
}

// Ready is signalled when events are waiting to be drained.
func (sub *EventSubscription) Ready() <-chan struct{} {
	return sub.stream.ready
}

// Drain returns the waiting events in emission order.
func (sub *EventSubscription) Drain() []PlayerEvent {
	return sub.stream.drain()
}

// Cancel detaches the subscriber. Safe to call more than once.
func (sub *EventSubscription) Cancel() {
	sub.once.Do(sub.stream.unsubscribe)
}
