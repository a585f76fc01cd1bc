package usecase

import (
	"context"
	"errors"
	"fmt"

	svcmetrics "EventEdge/internal/service/metrics"
	applogger "EventEdge/pkg/logger"
	"EventEdge/pkg/queue"
)

const RescoreJobType = "decision.rescore"

// RescorePayload is the queued rescore request.
type RescorePayload struct {
	EventID   string `json:"eventId"`
	RequestID string `json:"requestId"`
}

// QueueKey collapses repeated requests for one event into a single job.
func (p RescorePayload) QueueKey() string { return p.EventID }

// RescoreJob rebuilds stored decisions from the redis queue.
type RescoreJob struct {
	uc *DecisionUseCase
	l  *applogger.Logger
}

func NewRescoreJob(uc *DecisionUseCase, l *applogger.Logger) *RescoreJob {
	svcmetrics.Register()
	return &RescoreJob{uc: uc, l: l}
}

func (j *RescoreJob) Name() string { return "rescore_decision" }
func (j *RescoreJob) Type() string { return RescoreJobType }

func (j *RescoreJob) Handle(ctx context.Context, msg queue.Message) error {
	p, err := queue.Decode[RescorePayload](msg)
	if err != nil {
		return fmt.Errorf("rescore payload: %w", err)
	}
	if p.EventID == "" {
		return fmt.Errorf("rescore payload: %w", ErrMissingEvent)
	}
	_, err = j.uc.Rescore(ctx, p.EventID)
	if errors.Is(err, ErrNotFound) {
		// deleted since it was queued, nothing to retry
		svcmetrics.RescoreJobs.WithLabelValues("not_found").Inc()
		if j.l != nil {
			j.l.Warn("rescore skipped, decision gone",
				applogger.String("event_id", p.EventID),
				applogger.String("request_id", p.RequestID),
			)
		}
		return nil
	}
	if err != nil {
		svcmetrics.RescoreJobs.WithLabelValues("error").Inc()
		return err
	}
	svcmetrics.RescoreJobs.WithLabelValues("ok").Inc()
	return nil
}

var _ queue.Job = (*RescoreJob)(nil)
