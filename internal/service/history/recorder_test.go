package history

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
	"github.com/jmylchreest/skyplayer/internal/player"
	"github.com/jmylchreest/skyplayer/internal/repository"
)

func setupRepo(t *testing.T) repository.PlaybackSessionRepository {
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
	return repository.NewPlaybackSessionRepository(db)
}

// countingRepo counts Update calls.
type countingRepo struct {
	repository.PlaybackSessionRepository
	updates atomic.Int32
}

func (c *countingRepo) Update(ctx context.Context, s *models.PlaybackSession) error {
	c.updates.Add(1)
	return c.PlaybackSessionRepository.Update(ctx, s)
}

type fakeSession struct {
	state   models.PlaybackState
	lastErr *engine.PlaybackError
}

func (f *fakeSession) Subscribe() *player.StateSubscription { return nil }
func (f *fakeSession) State() models.PlaybackState          { return f.state }
func (f *fakeSession) LastError() *engine.PlaybackError     { return f.lastErr }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type feed struct {
	ch   chan models.PlaybackState
	once sync.Once
}

func newFeed() *feed { return &feed{ch: make(chan models.PlaybackState)} }

func (f *feed) cancel() { f.once.Do(func() { close(f.ch) }) }

func newTestRecorder(t *testing.T) (*Recorder, *countingRepo, *clock) {
	t.Helper()
	repo := &countingRepo{PlaybackSessionRepository: setupRepo(t)}
	clk := &clock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	r := NewRecorder(repo, Options{FlushInterval: 10 * time.Second})
	r.now = clk.Now
	t.Cleanup(r.Close)
	return r, repo, clk
}

func onlySession(t *testing.T, repo repository.PlaybackSessionRepository) *models.PlaybackSession {
	t.Helper()
	sessions, err := repo.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	return sessions[0]
}

func positionIs(t *testing.T, repo repository.PlaybackSessionRepository, ms int64) func() bool {
	return func() bool {
		sessions, err := repo.ListRecent(context.Background(), 1)
		return err == nil && len(sessions) == 1 && sessions[0].LastPositionMs == ms
	}
}

func TestRecorder_FlushesOnTransitionsAndInterval(t *testing.T) {
	r, repo, clk := newTestRecorder(t)
	f := newFeed()
	r.start("https://cdn.example.com/a.m3u8", f.ch, f.cancel)

	f.ch <- models.PlaybackState{Position: time.Second, Duration: time.Minute}
	require.Eventually(t, positionIs(t, repo, 1000), time.Second, 5*time.Millisecond)

	// Same play state inside the interval: no write.
	f.ch <- models.PlaybackState{Position: 2 * time.Second, Duration: time.Minute}
	// Play transition: immediate write.
	f.ch <- models.PlaybackState{Position: 3 * time.Second, Duration: time.Minute, IsPlaying: true}
	require.Eventually(t, positionIs(t, repo, 3000), time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), repo.updates.Load())

	clk.Advance(11 * time.Second)
	f.ch <- models.PlaybackState{Position: 14 * time.Second, Duration: time.Minute, IsPlaying: true}
	require.Eventually(t, positionIs(t, repo, 14000), time.Second, 5*time.Millisecond)

	s := onlySession(t, repo)
	assert.Equal(t, int64(60_000), s.DurationMs)
	assert.True(t, s.IsActive())
}

func TestRecorder_UnsetTimesKeepPriorValues(t *testing.T) {
	r, repo, _ := newTestRecorder(t)
	f := newFeed()
	r.start("https://cdn.example.com/live.m3u8", f.ch, f.cancel)

	f.ch <- models.PlaybackState{Position: 5 * time.Second, Duration: engine.TimeUnset}
	require.Eventually(t, positionIs(t, repo, 5000), time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), onlySession(t, repo).DurationMs)
}

func TestRecorder_RecordsErrorAndCloses(t *testing.T) {
	r, repo, clk := newTestRecorder(t)
	f := newFeed()
	r.start("https://cdn.example.com/a.m3u8", f.ch, f.cancel)

	f.ch <- models.PlaybackState{Position: time.Second}
	require.Eventually(t, positionIs(t, repo, 1000), time.Second, 5*time.Millisecond)

	r.SessionError(engine.NewPlaybackError(engine.ErrorCodeIOBadHTTPStatus, errors.New("status 500")))
	require.Eventually(t, func() bool {
		sessions, err := repo.ListRecent(context.Background(), 1)
		return err == nil && len(sessions) == 1 && sessions[0].LastError != ""
	}, time.Second, 5*time.Millisecond)

	clk.Advance(time.Minute)
	r.SessionEnded(&fakeSession{state: models.PlaybackState{Position: 42 * time.Second, Duration: time.Minute}})

	s := onlySession(t, repo)
	require.NotNil(t, s.EndedAt)
	assert.Equal(t, int64(42_000), s.LastPositionMs)
	assert.Contains(t, s.LastError, "status 500")
	assert.False(t, s.IsActive())

	// Nothing active any more.
	r.SessionEnded(&fakeSession{})
	r.SessionError(engine.NewPlaybackError(engine.ErrorCodeUnspecified, nil))
}

func TestRecorder_NewSessionClosesPrevious(t *testing.T) {
	r, repo, clk := newTestRecorder(t)

	first := newFeed()
	r.start("https://cdn.example.com/one.m3u8", first.ch, first.cancel)
	clk.Advance(time.Second)
	second := newFeed()
	r.start("https://cdn.example.com/two.m3u8", second.ch, second.cancel)

	sessions, err := repo.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "https://cdn.example.com/two.m3u8", sessions[0].URL)
	assert.True(t, sessions[0].IsActive())
	assert.False(t, sessions[1].IsActive())
}

func TestRecorder_CreateFailureCancelsFeed(t *testing.T) {
	r, repo, _ := newTestRecorder(t)
	f := newFeed()
	r.start("not a url", f.ch, f.cancel)

	_, open := <-f.ch
	assert.False(t, open)
	assert.Equal(t, int32(0), repo.updates.Load())
}

func TestPruner_Prune(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Now()

	old := now.Add(-40 * 24 * time.Hour)
	fresh := now.Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, &models.PlaybackSession{URL: "https://x/old", StartedAt: old, EndedAt: &old}))
	require.NoError(t, repo.Create(ctx, &models.PlaybackSession{URL: "https://x/new", StartedAt: fresh, EndedAt: &fresh}))

	p := NewPruner(repo, 30*24*time.Hour, nil)
	p.now = func() time.Time { return now }
	require.NoError(t, p.Prune(ctx))

	sessions, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "https://x/new", sessions[0].URL)
}
