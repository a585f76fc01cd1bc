package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	applogger "EventEdge/pkg/logger"
)

// DefaultKeyPrefix namespaces queue keys in redis.
const DefaultKeyPrefix = "eventedge:queue"

const uniqueTTL = 6 * time.Hour

// promoteScript moves due retries back onto the pending list. Running it
// server side keeps two instances from promoting the same message.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

// RedisQueue is a job queue on a redis list with a sorted set of delayed
// retries and a capped dead-letter list.
type RedisQueue struct {
	client *redis.Client
	l      *applogger.Logger
	cfg    Config
	prefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix sets the redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func NewRedisQueue(client *redis.Client, l *applogger.Logger, cfg Config, opts ...Option) *RedisQueue {
	if l == nil {
		l = applogger.Nop()
	}
	cfg.setDefaults()
	r := &RedisQueue{
		client: client,
		l:      l,
		cfg:    cfg,
		prefix: DefaultKeyPrefix,
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	initQueueMetrics()
	return r
}

// Register adds a job. A second job for the same type is ignored.
func (r *RedisQueue) Register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.Type()]; ok {
		r.l.Warn("queue job already registered", applogger.String("type", job.Type()))
		return
	}
	r.jobs[job.Type()] = job
	r.l.Info("queue job registered", applogger.String("job", job.Name()), applogger.String("type", job.Type()))
}

// Start pings redis and launches the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.promoter()

	r.l.Info("redis queue started",
		applogger.Int("workers", r.cfg.Workers),
		applogger.String("prefix", r.prefix),
		applogger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop cancels in-flight jobs and waits for the workers until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.l.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue stores a message for the job registered under msgType. Payloads
// implementing Keyed return ErrDuplicate while the same key is queued.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	_, ok := r.jobs[msgType]
	running := r.running
	r.mu.RUnlock()
	if !running {
		return errors.New("queue not running")
	}
	if !ok {
		return fmt.Errorf("no job registered for type %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}
	if k, ok := payload.(Keyed); ok && k.QueueKey() != "" {
		msg.Key = k.QueueKey()
		set, err := r.client.SetNX(ctx, r.uniqueKey(msgType, msg.Key), msg.ID, uniqueTTL).Result()
		if err != nil {
			return fmt.Errorf("claim unique key: %w", err)
		}
		if !set {
			return ErrDuplicate
		}
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.pendingKey(), b).Err(); err != nil {
		r.release(ctx, msg)
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Stats reads the pending, retrying and dead counts in one round trip.
func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	var pending, retrying, dead *redis.IntCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		pending = p.LLen(ctx, r.pendingKey())
		retrying = p.ZCard(ctx, r.retryKey())
		dead = p.LLen(ctx, r.deadKey())
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), Retrying: retrying.Val(), Dead: dead.Val()}, nil
}

// Health pings redis.
func (r *RedisQueue) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		res, err := r.client.BRPop(r.ctx, time.Second, r.pendingKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || r.ctx.Err() != nil {
				continue
			}
			r.l.Error("queue brpop", applogger.Int("worker", id), applogger.Error(err))
			r.sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.l.Error("queue unmarshal", applogger.Error(err))
			continue
		}
		r.process(msg)
	}
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.bury(msg, "no job registered")
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.JobTimeout)
	start := time.Now()
	err := job.Handle(ctx, msg)
	cancel()

	switch {
	case err == nil:
		queueMessages.WithLabelValues(msg.Type, "ok").Inc()
		r.release(context.Background(), msg)
		r.l.Debug("queue job done",
			applogger.String("job", job.Name()),
			applogger.String("id", msg.ID),
			applogger.Duration("took", time.Since(start)))
	case r.ctx.Err() != nil:
		// shutting down: put it back for the next process
		r.schedule(msg, time.Now())
	case msg.Attempts < r.cfg.RetryLimit:
		msg.Attempts++
		msg.LastError = err.Error()
		at := time.Now().Add(retryDelay(r.cfg.RetryDelay, r.cfg.MaxRetryDelay, msg.Attempts))
		r.schedule(msg, at)
		queueMessages.WithLabelValues(msg.Type, "retry").Inc()
		r.l.Warn("queue job failed, retrying",
			applogger.String("job", job.Name()),
			applogger.String("id", msg.ID),
			applogger.Int("attempt", msg.Attempts),
			applogger.String("retry_at", at.UTC().Format(time.RFC3339)),
			applogger.Error(err))
	default:
		msg.LastError = err.Error()
		r.bury(msg, err.Error())
	}
}

func (r *RedisQueue) schedule(msg Message, at time.Time) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.l.Error("queue marshal retry", applogger.Error(err))
		return
	}
	if err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: b}).Err(); err != nil {
		r.l.Error("queue zadd retry", applogger.String("id", msg.ID), applogger.Error(err))
	}
}

// bury moves msg to the dead-letter list and frees its unique key.
func (r *RedisQueue) bury(msg Message, reason string) {
	ctx := context.Background()
	queueMessages.WithLabelValues(msg.Type, "dead").Inc()
	r.l.Error("queue job dead",
		applogger.String("type", msg.Type),
		applogger.String("id", msg.ID),
		applogger.Int("attempts", msg.Attempts),
		applogger.String("reason", reason))

	b, err := json.Marshal(msg)
	if err == nil {
		_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LPush(ctx, r.deadKey(), b)
			p.LTrim(ctx, r.deadKey(), 0, r.cfg.DeadLimit-1)
			return nil
		})
	}
	if err != nil {
		r.l.Error("queue dead letter", applogger.String("id", msg.ID), applogger.Error(err))
	}
	r.release(ctx, msg)
}

func (r *RedisQueue) release(ctx context.Context, msg Message) {
	if msg.Key == "" {
		return
	}
	if err := r.client.Del(ctx, r.uniqueKey(msg.Type, msg.Key)).Err(); err != nil {
		r.l.Warn("queue release key", applogger.String("key", msg.Key), applogger.Error(err))
	}
}

func (r *RedisQueue) promoter() {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			r.promote()
			r.sample()
		}
	}
}

func (r *RedisQueue) promote() {
	n, err := promoteScript.Run(r.ctx, r.client,
		[]string{r.retryKey(), r.pendingKey()},
		strconv.FormatInt(time.Now().Unix(), 10), 100).Int64()
	if err != nil {
		if r.ctx.Err() == nil {
			r.l.Error("queue promote retries", applogger.Error(err))
		}
		return
	}
	if n > 0 {
		r.l.Debug("queue retries promoted", applogger.Int64("count", n))
	}
}

func (r *RedisQueue) sample() {
	s, err := r.Stats(r.ctx)
	if err != nil {
		return
	}
	queueDepth.WithLabelValues("pending").Set(float64(s.Pending))
	queueDepth.WithLabelValues("retrying").Set(float64(s.Retrying))
	queueDepth.WithLabelValues("dead").Set(float64(s.Dead))
}

func (r *RedisQueue) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-r.ctx.Done():
	}
}

func (r *RedisQueue) pendingKey() string { return r.prefix + ":pending" }
func (r *RedisQueue) retryKey() string   { return r.prefix + ":retry" }
func (r *RedisQueue) deadKey() string    { return r.prefix + ":dead" }

func (r *RedisQueue) uniqueKey(msgType, key string) string {
	return r.prefix + ":unique:" + msgType + ":" + key
}

var (
	queueMessages *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
	queueOnce     sync.Once
)

func initQueueMetrics() {
	queueOnce.Do(func() {
		queueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventedge_queue_messages_total",
			Help: "Queue messages handled by outcome",
		}, []string{"type", "result"})
		queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eventedge_queue_depth",
			Help: "Messages per queue state",
		}, []string{"state"})
	})
}
