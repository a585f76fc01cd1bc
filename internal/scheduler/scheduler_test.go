package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	calls atomic.Int32
	limit atomic.Int32
	err   error
}

func (f *fakeEnqueuer) EnqueueStale(_ context.Context, limit int) (int, error) {
	f.calls.Add(1)
	f.limit.Store(int32(limit))
	return 3, f.err
}

func TestStaleSweepRunNow(t *testing.T) {
	q := &fakeEnqueuer{}
	s := New(nil, time.Second)
	defer s.Stop()

	require.NoError(t, s.RunNow(NewStaleSweep(q, 0, nil)))
	assert.Equal(t, int32(1), q.calls.Load())
	assert.Equal(t, int32(500), q.limit.Load())

	q.err = errors.New("clickhouse down")
	assert.Error(t, s.RunNow(NewStaleSweep(q, 10, nil)))
}

func TestSchedulerFiresJobs(t *testing.T) {
	q := &fakeEnqueuer{}
	s := New(nil, time.Second)
	require.NoError(t, s.AddJob("@every 1s", NewStaleSweep(q, 5, nil)))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return q.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(5), q.limit.Load())
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := New(nil, time.Second)
	defer s.Stop()
	assert.Error(t, s.AddJob("not a spec", NewStaleSweep(&fakeEnqueuer{}, 1, nil)))
}
