package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "EventEdge/pkg/logger"
)

// MessageHandler consumes one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer fetches from one reader per topic and routes every record to a
// worker lane picked by topic and partition, so one goroutine owns each
// partition and handles its records in offset order. An offset is committed
// only after its handler succeeded or the record was written to the DLQ.
// After a record fails without reaching the DLQ its partition stops
// committing until the consumer restarts, so the record is redelivered.
type Consumer struct {
	cfg      *ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	commits  map[string]offsetCommitter
	dlq      *kafka.Writer
	hook     ConsumerHook
	l        *applogger.Logger
	m        *consumerMetrics

	lanes  []chan fetched
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// offsetCommitter is the commit side of a kafka.Reader.
type offsetCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type fetched struct {
	topic string
	km    kafka.Message
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		commits:  make(map[string]offsetCommitter),
		hook:     NewHookChain(),
		l:        applogger.Nop(),
		m:        consumerMetricsOnce(),
	}
	c.lanes = make([]chan fetched, cfg.WorkerCount)
	for i := range c.lanes {
		c.lanes[i] = make(chan fetched, cfg.BufferSize)
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Transport:    &kafka.Transport{ClientID: cfg.ClientID},
		}
	}
	return c, nil
}

func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// SetHooks installs hooks run around every handling attempt, in order.
func (c *Consumer) SetHooks(hooks ...ConsumerHook) {
	c.hook = NewHookChain(hooks...)
}

// RegisterHandler must be called before Start. A second handler for the
// same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.l.Warn("kafka handler already registered", applogger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	dialer := &kafka.Dialer{ClientID: c.cfg.ClientID, Timeout: 10 * time.Second, DualStack: true}
	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Dialer:      dialer,
			GroupID:     c.cfg.GroupID,
			Topic:       topic,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: kafka.FirstOffset,
		})
		c.readers[topic] = r
		c.commits[topic] = r
		c.wg.Add(1)
		go c.fetch(topic, r)
	}
	for _, lane := range c.lanes {
		c.wg.Add(1)
		go c.work(lane)
	}

	c.l.Info("kafka consumer started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount))
	return nil
}

// Stop cancels fetching, waits for in-flight records up to ctx, then closes
// readers and the DLQ writer.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Error("close kafka reader", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Error("close dlq writer", applogger.Error(cerr))
			}
		}
		if err == nil {
			c.l.Info("kafka consumer stopped")
		}
	})
	return err
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	defer c.wg.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		switch {
		case c.ctx.Err() != nil:
			return
		case err != nil:
			c.l.Error("fetch kafka message", applogger.String("topic", topic), applogger.Error(err))
			if !sleepCtx(c.ctx, 500*time.Millisecond) {
				return
			}
			continue
		}

		if !c.dispatch(fetched{topic: topic, km: km}) {
			return
		}
	}
}

// dispatch queues f on the lane owning its partition. It reports false when
// the consumer stopped first.
func (c *Consumer) dispatch(f fetched) bool {
	lane := c.lanes[laneFor(f.topic, f.km.Partition, len(c.lanes))]
	select {
	case lane <- f:
		c.m.inbox.WithLabelValues(f.topic).Set(float64(len(lane)) / float64(cap(lane)))
		return true
	case <-c.ctx.Done():
		return false
	}
}

// laneFor pins a partition to one worker.
func laneFor(topic string, partition, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	_, _ = h.Write([]byte{'/'})
	_, _ = h.Write([]byte(strconv.Itoa(partition)))
	return int(h.Sum32() % uint32(n))
}

// work drains one lane. stalled holds partitions with an unsettled record;
// the lane owns it, so no lock is needed.
func (c *Consumer) work(lane <-chan fetched) {
	defer c.wg.Done()
	stalled := make(map[string]bool)
	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-lane:
			if h, ok := c.handlers[f.topic]; ok {
				c.process(h, f, stalled)
			}
		}
	}
}

// process handles one record and commits it unless it or an earlier record
// of its partition is unsettled.
func (c *Consumer) process(h MessageHandler, f fetched, stalled map[string]bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.m.messages.WithLabelValues(f.topic, "panic").Inc()
			c.l.Error("panic in kafka handler", applogger.String("topic", f.topic), applogger.Any("panic", r))
			stalled[stallKey(f.topic, f.km.Partition)] = true
		}
	}()

	ctx, attempts, err := c.attempt(h, f)
	if errors.Is(err, context.Canceled) && c.ctx.Err() != nil {
		// shutting down: leave the offset uncommitted so the record is redelivered
		return
	}

	result := "ok"
	if err != nil {
		result = c.fail(ctx, f, attempts, err)
	}
	c.m.messages.WithLabelValues(f.topic, result).Inc()
	key := stallKey(f.topic, f.km.Partition)
	switch {
	case result == "failed":
		if !stalled[key] {
			c.l.Warn("kafka partition stalled, offsets held until restart",
				applogger.String("topic", f.topic),
				applogger.Int("partition", f.km.Partition),
				applogger.Int64("offset", f.km.Offset))
		}
		stalled[key] = true
	case !stalled[key]:
		c.commit(f)
	}
	c.m.latency.WithLabelValues(f.topic).Observe(time.Since(start).Seconds())
}

// attempt runs the hooks and handler with backoff until success, a
// permanent error or RetryMax retries. It returns the last attempt context.
func (c *Consumer) attempt(h MessageHandler, f fetched) (context.Context, int, error) {
	for n := 1; ; n++ {
		ctx, km, data, err := c.hook.BeforeHandle(context.Background(), f.topic, f.km, f.km.Value)
		if err != nil {
			return ctx, n, err
		}
		err = h.Handle(ctx, data)
		c.hook.AfterHandle(ctx, f.topic, km, data, err)
		if err == nil || IsPermanent(err) || n > c.cfg.RetryMax {
			return ctx, n, err
		}
		c.hook.OnError(ctx, f.topic, km, data, err)
		if !sleepCtx(c.ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, n)) {
			return ctx, n, context.Canceled
		}
	}
}

// fail reports a record that exhausted its attempts and parks it in the DLQ.
// It returns "dlq" when parked, "failed" otherwise.
func (c *Consumer) fail(ctx context.Context, f fetched, attempts int, cause error) string {
	c.hook.OnError(ctx, f.topic, f.km, f.km.Value, cause)
	c.l.Error("kafka message failed",
		applogger.String("topic", f.topic),
		applogger.String("trace_id", TraceIDFrom(ctx)),
		applogger.Int("partition", f.km.Partition),
		applogger.Int64("offset", f.km.Offset),
		applogger.Int("attempts", attempts),
		applogger.Error(cause))
	if c.dlq == nil {
		return "failed"
	}
	if err := c.park(ctx, f, attempts, cause); err != nil {
		c.l.Error("write dlq", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return "failed"
	}
	return "dlq"
}

func (c *Consumer) park(ctx context.Context, f fetched, attempts int, cause error) error {
	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.dlq.WriteMessages(wctx, kafka.Message{
		Key:     f.km.Key,
		Value:   f.km.Value,
		Headers: dlqHeaders(ctx, f, attempts, cause),
		Time:    time.Now(),
	})
}

func dlqHeaders(ctx context.Context, f fetched, attempts int, cause error) []kafka.Header {
	hs := []kafka.Header{
		{Key: "source_topic", Value: []byte(f.topic)},
		{Key: "source_partition", Value: []byte(strconv.Itoa(f.km.Partition))},
		{Key: "source_offset", Value: []byte(strconv.FormatInt(f.km.Offset, 10))},
		{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
		{Key: "error", Value: []byte(cause.Error())},
	}
	if id := TraceIDFrom(ctx); id != "" {
		hs = append(hs, kafka.Header{Key: TraceHeader, Value: []byte(id)})
	}
	return hs
}

func (c *Consumer) commit(f fetched) {
	r := c.commits[f.topic]
	if r == nil {
		return
	}
	var err error
	for n := 1; n <= 3; n++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, f.km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, n))
	}
	c.l.Error("commit kafka offset",
		applogger.String("topic", f.topic),
		applogger.Int64("offset", f.km.Offset),
		applogger.Error(err))
}


// sleepCtx reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoffWithJitter doubles min per attempt up to max, then removes up to half.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := max
	if attempt < 1 {
		attempt = 1
	}
	if attempt <= 32 {
		if e := min << uint(attempt-1); e > 0 && e < max {
			d = e
		}
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

type consumerMetrics struct {
	inbox    *prometheus.GaugeVec
	latency  *prometheus.HistogramVec
	messages *prometheus.CounterVec
}

var (
	cmOnce      sync.Once
	consMetrics *consumerMetrics
)

func consumerMetricsOnce() *consumerMetrics {
	cmOnce.Do(func() {
		consMetrics = &consumerMetrics{
			inbox: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "eventedge_kafka_consumer_inbox_fullness",
				Help: "Fetched records waiting for a worker, as a share of the buffer.",
			}, []string{"topic"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "eventedge_kafka_consumer_handle_seconds",
				Help: "Time from pickup to settle, retries included.",
			}, []string{"topic"}),
			messages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "eventedge_kafka_consumer_messages_total",
				Help: "Consumed records by outcome.",
			}, []string{"topic", "result"}),
		}
	})
	return consMetrics
}

func stallKey(topic string, partition int) string {
	return topic + "/" + strconv.Itoa(partition)
}
