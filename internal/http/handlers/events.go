package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/transport"
)

// EventsHandler streams state snapshots as server-sent events.
type EventsHandler struct {
	hub               *transport.Hub
	heartbeatInterval time.Duration
	limit             rate.Limit
}

// NewEventsHandler creates an SSE handler. perSecond caps state frames per
// connection; zero or less disables the cap.
func NewEventsHandler(hub *transport.Hub, perSecond float64) *EventsHandler {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &EventsHandler{hub: hub, heartbeatInterval: 30 * time.Second, limit: limit}
}

// SetHeartbeatInterval sets the SSE heartbeat interval.
func (h *EventsHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// RegisterSSE registers the stream on a chi router. Huma does not stream.
func (h *EventsHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/v1/player/events", h.HandleEvents)
}

// HandleEvents writes ":connected", then one "state" event per snapshot and a
// heartbeat comment whenever the stream is otherwise idle for the interval.
// Snapshots arriving faster than the rate cap collapse to the latest.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub.ID)

	rc := http.NewResponseController(w)
	limiter := rate.NewLimiter(h.limit, 1)
	ctx := r.Context()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	if _, err := fmt.Fprint(w, ":connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Error("failed to flush initial SSE connection", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				logger.Debug("heartbeat flush failed, client likely disconnected", slog.String("error", err.Error()))
				return
			}
		case state := <-sub.Events:
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			state = latest(sub.Events, state)
			if err := writeStateEvent(w, state); err != nil {
				logger.Debug("failed to write SSE event", slog.String("error", err.Error()))
				return
			}
			if err := rc.Flush(); err != nil {
				logger.Debug("event flush failed, client likely disconnected", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// latest returns a newer pending snapshot if one arrived while waiting.
func latest(ch <-chan models.PlaybackState, current models.PlaybackState) models.PlaybackState {
	select {
	case newer := <-ch:
		return newer
	default:
		return current
	}
}

// writeStateEvent writes one frame in a single write.
func writeStateEvent(w http.ResponseWriter, state models.PlaybackState) error {
	data, err := json.Marshal(transport.EncodeSnapshot(state))
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	msg := []byte(fmt.Sprintf("event: state\ndata: %s\n\n", data))
	n, err := w.Write(msg)
	if err != nil {
		return err
	}
	if n < len(msg) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(msg))
	}
	return nil
}
