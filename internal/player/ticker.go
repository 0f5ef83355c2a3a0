package player

import "time"

// DefaultPositionInterval is how often the position ticker samples the engine.
const DefaultPositionInterval = 500 * time.Millisecond

// PositionTicker is the periodic position sampler. The orchestrator loop
// selects on C; a stopped ticker has a nil channel, which never fires.
// Not safe for concurrent use.
type PositionTicker struct {
	interval time.Duration
	ticker   *time.Ticker
}

// NewPositionTicker creates a stopped ticker. Non-positive intervals fall
// back to DefaultPositionInterval.
func NewPositionTicker(interval time.Duration) *PositionTicker {
	if interval <= 0 {
		interval = DefaultPositionInterval
	}
	return &PositionTicker{interval: interval}
}

// Start begins ticking. No-op while already running.
func (t *PositionTicker) Start() {
	if t.ticker != nil {
		return
	}
	t.ticker = time.NewTicker(t.interval)
}

// Stop stops ticking. No tick is delivered after Stop returns.
func (t *PositionTicker) Stop() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	t.ticker = nil
}

// Running reports whether the ticker is started.
func (t *PositionTicker) Running() bool {
	return t.ticker != nil
}

// C returns the tick channel, or nil while stopped.
func (t *PositionTicker) C() <-chan time.Time {
	if t.ticker == nil {
		return nil
	}
	return t.ticker.C
}
