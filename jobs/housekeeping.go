package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockledger/stockledger/internal/shared"
)

// TaskIdempotencyCleanup prunes expired idempotency keys.
const TaskIdempotencyCleanup = "inventory:idempotency_cleanup"

// NewIdempotencyCleanupTask constructs the scheduled cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// HousekeepingJob prunes storage the recorder accretes over time. Keys
// older than the retention window can no longer collide with a live retry.
type HousekeepingJob struct {
	store     *shared.IdempotencyStore
	retention time.Duration
	logger    *slog.Logger
}

// NewHousekeepingJob constructs a HousekeepingJob.
func NewHousekeepingJob(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) *HousekeepingJob {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HousekeepingJob{store: store, retention: retention, logger: logger}
}

// HandleIdempotencyCleanup processes TaskIdempotencyCleanup tasks.
func (j *HousekeepingJob) HandleIdempotencyCleanup(ctx context.Context, t *asynq.Task) error {
	if err := j.store.Cleanup(ctx, j.retention); err != nil {
		return err
	}
	j.logger.Info("idempotency keys pruned", slog.Duration("retention", j.retention))
	return nil
}
