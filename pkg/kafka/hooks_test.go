package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChainOrder(t *testing.T) {
	var calls []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				calls = append(calls, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				calls = append(calls, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))

	ctx, msg, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "xab", string(data))
	chain.AfterHandle(ctx, "t", msg, data, nil)

	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, calls)
}

func TestHookChainRecoversPanic(t *testing.T) {
	var notified error
	chain := NewHookChain(
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { notified = err }},
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		}},
	)

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Equal(t, err, notified)

	assert.NotPanics(t, func() {
		NewHookChain(HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { panic("x") }}).
			AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
	})
}

func TestTraceHook(t *testing.T) {
	h := TraceHook()

	km := kafka.Message{Headers: []kafka.Header{{Key: TraceHeader, Value: []byte("abc")}}}
	ctx, _, _, err := h.BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceIDFrom(ctx))
	_, ok := StartTimeFrom(ctx)
	assert.True(t, ok)

	ctx, _, _, err = h.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.NoError(t, err)
	assert.Len(t, TraceIDFrom(ctx), 36)
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")
	err := fmt.Errorf("handle: %w", Permanent(base))

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.NoError(t, Permanent(nil))
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
	assert.GreaterOrEqual(t, backoffWithJitter(min, max, 1), min/2)
	assert.GreaterOrEqual(t, backoffWithJitter(min, max, 10), max/2)
}

func TestEncode(t *testing.T) {
	b, err := encode([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encode(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	_, err = encode(make(chan int))
	assert.Error(t, err)
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer()
	assert.Error(t, err)
}

func TestProducerConfigValidation(t *testing.T) {
	_, err := NewProducer(WithBrokers("k:9092"), WithCompression("brotli"))
	assert.Error(t, err)
	_, err = NewProducer(WithBrokers("k:9092"), WithDelivery(2, 3))
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers("k:9092"), WithCompression("ZSTD"), WithKeyedPartitioning(true))
	require.NoError(t, err)
	assert.Equal(t, kafka.Zstd, p.w.Compression)
	assert.IsType(t, &kafka.Hash{}, p.w.Balancer)
	assert.Nil(t, p.w.Completion)
	assert.Equal(t, "zstd", p.codec)

	p, err = NewProducer(WithBrokers("k:9092"), WithCompression(""), WithAsync(true))
	require.NoError(t, err)
	assert.Equal(t, "none", p.codec)
	assert.NotNil(t, p.w.Completion)
	assert.IsType(t, &kafka.LeastBytes{}, p.w.Balancer)
}

func TestCompressionCodec(t *testing.T) {
	for name, want := range map[string]kafka.Compression{"": 0, "none": 0, "gzip": kafka.Gzip, "snappy": kafka.Snappy, "lz4": kafka.Lz4} {
		got, err := compressionCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestConsumerConfigValidation(t *testing.T) {
	_, err := NewConsumer(WithConsumerBrokers("k:9092"), WithConsumerGroupID(""))
	assert.Error(t, err)
	_, err = NewConsumer(WithConsumerBrokers("k:9092"), WithConsumerRetry(3, time.Second, time.Millisecond))
	assert.Error(t, err)

	c, err := NewConsumer(WithConsumerBrokers("k:9092"), WithConsumerWorkers(4, 0), WithConsumerDLQ("dlq"))
	require.NoError(t, err)
	assert.Equal(t, 4, c.cfg.WorkerCount)
	assert.Equal(t, 10, c.cfg.BufferSize)
	assert.NotNil(t, c.dlq)
	assert.Error(t, c.Start(), "no handlers registered")
}
