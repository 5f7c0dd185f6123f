package cleanup

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type batchSweeper interface {
	SweepEmptyBatches(ctx context.Context) (int64, error)
}

// Job removes batches whose photo list became empty outside the normal delete path,
// for example when a photo delete was interrupted between detach and sweep.
type Job struct {
	sweeper batchSweeper
	logger  *zap.Logger
}

func New(sweeper batchSweeper, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		sweeper: sweeper,
		logger:  logger,
	}
}

func (j *Job) Run(ctx context.Context) (int64, error) {
	if j.sweeper == nil {
		return 0, nil
	}

	removed, err := j.sweeper.SweepEmptyBatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep empty batches: %w", err)
	}
	j.logger.Info("cleanup empty batches completed", zap.Int64("deleted", removed))
	return removed, nil
}
