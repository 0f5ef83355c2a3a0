package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/skyplayer/internal/models"
)

func setupSessionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.PlaybackSession{}))
	return db
}

func TestPlaybackSessionRepo_CreateAndGet(t *testing.T) {
	repo := NewPlaybackSessionRepository(setupSessionTestDB(t))
	ctx := context.Background()

	session := &models.PlaybackSession{URL: "https://cdn.example.com/live.m3u8", StartedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, session))
	assert.False(t, session.ID.IsZero())

	found, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.URL, found.URL)
	assert.True(t, found.IsActive())
}

func TestPlaybackSessionRepo_CreateValidation(t *testing.T) {
	repo := NewPlaybackSessionRepository(setupSessionTestDB(t))
	ctx := context.Background()

	err := repo.Create(ctx, &models.PlaybackSession{StartedAt: time.Now()})
	assert.ErrorIs(t, err, models.ErrURLRequired)

	err = repo.Create(ctx, &models.PlaybackSession{URL: "no-scheme", StartedAt: time.Now()})
	var verr models.ErrValidation
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "url", verr.Field)
}

func TestPlaybackSessionRepo_GetByIDNotFound(t *testing.T) {
	repo := NewPlaybackSessionRepository(setupSessionTestDB(t))

	_, err := repo.GetByID(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestPlaybackSessionRepo_Update(t *testing.T) {
	repo := NewPlaybackSessionRepository(setupSessionTestDB(t))
	ctx := context.Background()

	session := &models.PlaybackSession{URL: "https://cdn.example.com/a.m3u8", StartedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, session))

	ended := time.Now()
	session.LastPositionMs = 12_500
	session.DurationMs = 60_000
	session.LastError = "connection failed"
	session.EndedAt = &ended
	require.NoError(t, repo.Update(ctx, session))

	found, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12_500), found.LastPositionMs)
	assert.Equal(t, int64(60_000), found.DurationMs)
	assert.Equal(t, "connection failed", found.LastError)
	assert.False(t, found.IsActive())

	assert.ErrorIs(t, repo.Update(ctx, &models.PlaybackSession{URL: "https://x/y"}), models.ErrSessionNotFound)
}

func TestPlaybackSessionRepo_ListRecent(t *testing.T) {
	repo := NewPlaybackSessionRepository(setupSessionTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &models.PlaybackSession{
			URL:       "https://cdn.example.com/" + name + ".m3u8",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	sessions, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "https://cdn.example.com/c.m3u8", sessions[0].URL)
	assert.Equal(t, "https://cdn.example.com/b.m3u8", sessions[1].URL)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPlaybackSessionRepo_DeleteEndedBefore(t *testing.T) {
	repo := NewPlaybackSessionRepository(setupSessionTestDB(t))
	ctx := context.Background()

	now := time.Now()
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	oldSession := &models.PlaybackSession{URL: "https://x/old", StartedAt: old, EndedAt: &old}
	recentSession := &models.PlaybackSession{URL: "https://x/recent", StartedAt: recent, EndedAt: &recent}
	openSession := &models.PlaybackSession{URL: "https://x/open", StartedAt: old}
	for _, s := range []*models.PlaybackSession{oldSession, recentSession, openSession} {
		require.NoError(t, repo.Create(ctx, s))
	}

	deleted, err := repo.DeleteEndedBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByID(ctx, oldSession.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	_, err = repo.GetByID(ctx, recentSession.ID)
	assert.NoError(t, err)
	_, err = repo.GetByID(ctx, openSession.ID)
	assert.NoError(t, err)
}
