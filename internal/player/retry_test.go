package player

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/skyplayer/internal/engine"
)

func TestInfiniteRetryPolicy(t *testing.T) {
	p := NewInfiniteRetryPolicy()
	info := engine.LoadErrorInfo{}

	assert.Nil(t, p.FallbackSelectionFor(engine.FallbackOptions{}, info))
	assert.Equal(t, DefaultRetryDelay, p.RetryDelayFor(info))
	for _, dt := range []engine.DataType{engine.DataTypeManifest, engine.DataTypeMedia} {
		assert.Equal(t, math.MaxInt, p.MinimumLoadableRetryCount(dt))
	}
}

func TestInfiniteRetryPolicy_NeverGivesUp(t *testing.T) {
	p := NewInfiniteRetryPolicy()
	info := engine.LoadErrorInfo{
		DataType:   engine.DataTypeManifest,
		Err:        engine.NewPlaybackError(engine.ErrorCodeIONetworkConnectionFailed, nil),
		ErrorCount: 1_000_000,
	}

	assert.Equal(t, DefaultRetryDelay, p.RetryDelayFor(info))
	assert.Nil(t, p.FallbackSelectionFor(engine.FallbackOptions{}, info))
}
