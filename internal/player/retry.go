package player

import (
	"math"
	"time"

	"github.com/jmylchreest/skyplayer/internal/engine"
)

// DefaultRetryDelay is the fixed wait between load attempts.
const DefaultRetryDelay = time.Second

// InfiniteRetryPolicy retries every load failure forever with a constant
// delay and never falls back to another track or location.
type InfiniteRetryPolicy struct{}

// NewInfiniteRetryPolicy returns the retry policy used by the player's engines.
func NewInfiniteRetryPolicy() InfiniteRetryPolicy {
	return InfiniteRetryPolicy{}
}

// FallbackSelectionFor always returns nil.
func (InfiniteRetryPolicy) FallbackSelectionFor(engine.FallbackOptions, engine.LoadErrorInfo) *engine.FallbackSelection {
	return nil
}

// RetryDelayFor returns DefaultRetryDelay regardless of the failure.
func (InfiniteRetryPolicy) RetryDelayFor(engine.LoadErrorInfo) time.Duration {
	return DefaultRetryDelay
}

// MinimumLoadableRetryCount returns math.MaxInt for every data type.
func (InfiniteRetryPolicy) MinimumLoadableRetryCount(engine.DataType) int {
	return math.MaxInt
}

var _ engine.LoadErrorHandlingPolicy = InfiniteRetryPolicy{}
