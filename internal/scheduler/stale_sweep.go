package scheduler

import (
	"context"

	applogger "EventEdge/pkg/logger"
)

// StaleEnqueuer queues decisions scored by an older model version.
type StaleEnqueuer interface {
	EnqueueStale(ctx context.Context, limit int) (int, error)
}

// StaleSweep periodically queues rescoring after a model version bump.
type StaleSweep struct {
	uc    StaleEnqueuer
	limit int
	l     *applogger.Logger
}

func NewStaleSweep(uc StaleEnqueuer, limit int, l *applogger.Logger) *StaleSweep {
	if limit <= 0 {
		limit = 500
	}
	return &StaleSweep{uc: uc, limit: limit, l: l}
}

func (j *StaleSweep) Name() string { return "stale_decision_sweep" }

func (j *StaleSweep) Run(ctx context.Context) error {
	n, err := j.uc.EnqueueStale(ctx, j.limit)
	if err != nil {
		return err
	}
	if n > 0 && j.l != nil {
		j.l.Info("stale decisions queued", applogger.Int("count", n), applogger.Int("limit", j.limit))
	}
	return nil
}
