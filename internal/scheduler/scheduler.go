package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	applogger "EventEdge/pkg/logger"
)

// Job is a periodic task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron specs with seconds precision. Overlapping runs
// of the same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	l       *applogger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// New creates a scheduler. Each run gets its own context bounded by timeout.
func New(l *applogger.Logger, timeout time.Duration) *Scheduler {
	var cl cron.Logger = cron.DiscardLogger
	if l != nil {
		cl = cronLogger{l: l}
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		l:       l,
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// AddJob registers job. Schedule examples: "0 */5 * * * *", "@every 30s".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { _ = s.RunNow(job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	if s.l != nil {
		s.l.Info("job scheduled", applogger.String("job", job.Name()), applogger.String("schedule", schedule))
	}
	return nil
}

// RunNow executes job once outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	if s.l != nil {
		if err != nil {
			s.l.Error("job failed", applogger.String("job", job.Name()), applogger.Error(err))
		} else {
			s.l.Debug("job completed", applogger.String("job", job.Name()), applogger.Duration("duration_ms", time.Since(start)))
		}
	}
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if s.l != nil {
		s.l.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
	}
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	if s.l != nil {
		s.l.Info("scheduler stopped")
	}
}

type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug("cron "+msg, fields(kv)...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error("cron "+msg, append(fields(kv), applogger.Error(err))...)
}

func fields(kv []interface{}) []applogger.Field {
	out := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out = append(out, applogger.Any(k, kv[i+1]))
		}
	}
	return out
}
