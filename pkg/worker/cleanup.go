package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/pkg/logger"
)

// OutboxCleanupWorker deletes relayed events once they are older than the
// retention window.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, log *logger.Logger) *OutboxCleanupWorker {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    log,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx, time.Now())
		}
	}
}

// RunOnce deletes events processed before now minus the retention window.
func (w *OutboxCleanupWorker) RunOnce(ctx context.Context, now time.Time) int64 {
	deleted, err := w.repo.DeleteProcessedBefore(ctx, now.Add(-w.retention))
	if err != nil {
		w.logger.Error(err, "Failed to clean up outbox events")
		return 0
	}
	if deleted > 0 {
		w.logger.Info("Cleaned up outbox events", "deleted", deleted)
	}
	return deleted
}
