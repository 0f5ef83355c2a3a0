// Package repository defines data access for playback history. All database
// access goes through these interfaces.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/skyplayer/internal/models"
)

// PlaybackSessionRepository persists playback sessions.
type PlaybackSessionRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, session *models.PlaybackSession) error
	// Update saves every field of an existing session.
	Update(ctx context.Context, session *models.PlaybackSession) error
	// GetByID returns models.ErrSessionNotFound when no session matches.
	GetByID(ctx context.Context, id models.ULID) (*models.PlaybackSession, error)
	// ListRecent returns up to limit sessions, newest first.
	ListRecent(ctx context.Context, limit int) ([]*models.PlaybackSession, error)
	// DeleteEndedBefore removes closed sessions that ended before cutoff.
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
