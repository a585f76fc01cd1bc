package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcHandler struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h funcHandler) Topic() string                              { return h.topic }
func (h funcHandler) Handle(ctx context.Context, b []byte) error { return h.fn(ctx, b) }

type fakeCommitter struct {
	mu      sync.Mutex
	offsets []int64
}

func (f *fakeCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.offsets = append(f.offsets, m.Offset)
	}
	return nil
}

func (f *fakeCommitter) committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.offsets...)
}

func newTestConsumer(t *testing.T, retries int, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{WithConsumerBrokers("k:9092"), WithConsumerRetry(retries, time.Millisecond, 2*time.Millisecond)}, opts...)
	c, err := NewConsumer(opts...)
	require.NoError(t, err)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	t.Cleanup(c.cancel)
	c.SetHooks(TraceHook())
	return c
}

func TestConsumerAttemptRetriesUntilSuccess(t *testing.T) {
	c := newTestConsumer(t, 3)
	calls := 0
	h := funcHandler{topic: "t", fn: func(ctx context.Context, _ []byte) error {
		calls++
		assert.NotEmpty(t, TraceIDFrom(ctx))
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}}

	_, attempts, err := c.attempt(h, fetched{topic: "t"})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestConsumerAttemptStopsOnPermanent(t *testing.T) {
	c := newTestConsumer(t, 5)
	h := funcHandler{topic: "t", fn: func(context.Context, []byte) error { return Permanent(errors.New("bad")) }}

	_, attempts, err := c.attempt(h, fetched{topic: "t"})
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, attempts)
}

func TestConsumerProcessCountsFailures(t *testing.T) {
	c := newTestConsumer(t, 1)
	h := funcHandler{topic: "count-t", fn: func(context.Context, []byte) error { return errors.New("down") }}

	before := testutil.ToFloat64(c.m.messages.WithLabelValues("count-t", "failed"))
	c.process(h, fetched{topic: "count-t", km: kafka.Message{Partition: 2, Offset: 7}}, map[string]bool{})
	assert.Equal(t, before+1, testutil.ToFloat64(c.m.messages.WithLabelValues("count-t", "failed")))

	okBefore := testutil.ToFloat64(c.m.messages.WithLabelValues("count-t", "ok"))
	ok := funcHandler{topic: "count-t", fn: func(context.Context, []byte) error { return nil }}
	c.process(ok, fetched{topic: "count-t"}, map[string]bool{})
	assert.Equal(t, okBefore+1, testutil.ToFloat64(c.m.messages.WithLabelValues("count-t", "ok")))
}

func TestLaneForIsStable(t *testing.T) {
	assert.Equal(t, laneFor("t", 1, 4), laneFor("t", 1, 4))
	assert.Equal(t, 0, laneFor("t", 9, 1))
	for p := 0; p < 16; p++ {
		l := laneFor("t", p, 4)
		assert.True(t, l >= 0 && l < 4)
	}
}

func TestConsumerKeepsPartitionOrder(t *testing.T) {
	c := newTestConsumer(t, 0, WithConsumerGroupID("g"), WithConsumerWorkers(2, 4))
	commits := &fakeCommitter{}
	c.commits["t"] = commits

	var mu sync.Mutex
	var handled []string
	done := make(chan struct{}, 2)
	c.RegisterHandler(funcHandler{topic: "t", fn: func(_ context.Context, b []byte) error {
		if string(b) == "first" {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		handled = append(handled, string(b))
		mu.Unlock()
		done <- struct{}{}
		return nil
	}})
	for _, lane := range c.lanes {
		c.wg.Add(1)
		go c.work(lane)
	}

	require.True(t, c.dispatch(fetched{topic: "t", km: kafka.Message{Partition: 1, Offset: 10, Value: []byte("first")}}))
	require.True(t, c.dispatch(fetched{topic: "t", km: kafka.Message{Partition: 1, Offset: 11, Value: []byte("second")}}))
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("records not handled")
		}
	}
	c.cancel()
	c.wg.Wait()

	assert.Equal(t, []string{"first", "second"}, handled)
	assert.Equal(t, []int64{10, 11}, commits.committed())
}

func TestConsumerHoldsOffsetsAfterFailure(t *testing.T) {
	c := newTestConsumer(t, 0)
	commits := &fakeCommitter{}
	c.commits["t"] = commits
	stalled := map[string]bool{}

	fail := funcHandler{topic: "t", fn: func(context.Context, []byte) error { return errors.New("down") }}
	ok := funcHandler{topic: "t", fn: func(context.Context, []byte) error { return nil }}

	c.process(ok, fetched{topic: "t", km: kafka.Message{Partition: 0, Offset: 4}}, stalled)
	c.process(fail, fetched{topic: "t", km: kafka.Message{Partition: 0, Offset: 5}}, stalled)
	c.process(ok, fetched{topic: "t", km: kafka.Message{Partition: 0, Offset: 6}}, stalled)
	c.process(ok, fetched{topic: "t", km: kafka.Message{Partition: 1, Offset: 2}}, stalled)

	assert.Equal(t, []int64{4, 2}, commits.committed())
	assert.True(t, stalled[stallKey("t", 0)])
	assert.False(t, stalled[stallKey("t", 1)])
}

func TestDLQHeaders(t *testing.T) {
	ctx := WithTraceID(context.Background(), "tr-9")
	hs := dlqHeaders(ctx, fetched{topic: "events", km: kafka.Message{Partition: 3, Offset: 42}}, 4, errors.New("boom"))

	got := map[string]string{}
	for _, h := range hs {
		got[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{
		"source_topic":     "events",
		"source_partition": "3",
		"source_offset":    "42",
		"attempts":         "4",
		"error":            "boom",
		TraceHeader:        "tr-9",
	}, got)
}

func TestConsumerStartRequiresHandler(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers("k:9092"))
	require.NoError(t, err)
	assert.Error(t, c.Start())
	assert.NoError(t, c.Stop(context.Background()))
}
