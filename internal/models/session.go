package models

import (
	"net/url"
	"time"
)

// PlaybackSession records one source loaded into the player.
type PlaybackSession struct {
	BaseModel

	// URL is the media source the session played.
	URL string `gorm:"not null;size:2048" json:"url"`

	StartedAt time.Time  `gorm:"not null;index" json:"started_at"`
	EndedAt   *time.Time `gorm:"index" json:"ended_at,omitempty"`

	// LastPositionMs is the most recent playback position observed.
	LastPositionMs int64 `json:"last_position_ms"`

	// DurationMs is the media duration, zero while unknown or live.
	DurationMs int64 `json:"duration_ms"`

	// LastError is the most recent terminal engine error, if any.
	LastError string `gorm:"size:1024" json:"last_error,omitempty"`
}

// TableName returns the table name for PlaybackSession.
func (PlaybackSession) TableName() string {
	return "playback_sessions"
}

// Validate checks that the session has a usable source URL.
func (s *PlaybackSession) Validate() error {
	if s.URL == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" {
		return ErrValidation{Field: "url", Message: ErrInvalidURL.Error()}
	}
	return nil
}

// IsActive reports whether the session has not been closed yet.
func (s *PlaybackSession) IsActive() bool {
	return s.EndedAt == nil
}
