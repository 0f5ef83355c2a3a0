package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jmylchreest/skyplayer/internal/models"
)

// DefaultListLimit applies when ListRecent is called with a non-positive limit.
const DefaultListLimit = 50

type playbackSessionRepository struct {
	db *gorm.DB
}

// NewPlaybackSessionRepository creates a GORM-backed session repository.
func NewPlaybackSessionRepository(db *gorm.DB) PlaybackSessionRepository {
	return &playbackSessionRepository{db: db}
}

func (r *playbackSessionRepository) Create(ctx context.Context, session *models.PlaybackSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validating playback session: %w", err)
	}
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *playbackSessionRepository) Update(ctx context.Context, session *models.PlaybackSession) error {
	if session.ID.IsZero() {
		return models.ErrSessionNotFound
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validating playback session: %w", err)
	}
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *playbackSessionRepository) GetByID(ctx context.Context, id models.ULID) (*models.PlaybackSession, error) {
	var session models.PlaybackSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *playbackSessionRepository) ListRecent(ctx context.Context, limit int) ([]*models.PlaybackSession, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var sessions []*models.PlaybackSession
	if err := r.db.WithContext(ctx).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *playbackSessionRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("ended_at IS NOT NULL AND ended_at < ?", cutoff).
		Delete(&models.PlaybackSession{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
