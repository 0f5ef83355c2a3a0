package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/skyplayer/internal/repository"
	"github.com/jmylchreest/skyplayer/internal/scheduler"
)

// PruneJobName is the scheduler name of the retention job.
const PruneJobName = "history-prune"

// Pruner deletes closed sessions older than the retention window.
type Pruner struct {
	repo      repository.PlaybackSessionRepository
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner creates a pruner.
func NewPruner(repo repository.PlaybackSessionRepository, retention time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{repo: repo, retention: retention, logger: logger, now: time.Now}
}

// Prune removes sessions that ended before now minus retention.
func (p *Pruner) Prune(ctx context.Context) error {
	cutoff := p.now().Add(-p.retention)
	deleted, err := p.repo.DeleteEndedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning playback sessions: %w", err)
	}
	if deleted > 0 {
		p.logger.Info("pruned playback sessions",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff))
	}
	return nil
}

// Register schedules Prune on s.
func (p *Pruner) Register(s *scheduler.Scheduler, schedule string) error {
	return s.Register(PruneJobName, schedule, p.Prune)
}
