package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "EventEdge/internal/domain/repository"
	"EventEdge/internal/handler/api"
	internalrepo "EventEdge/internal/repository"
	"EventEdge/internal/scheduler"
	icache "EventEdge/internal/service/cache"
	"EventEdge/internal/service/stream"
	"EventEdge/internal/services/explain"
	"EventEdge/internal/services/scoring"
	"EventEdge/internal/usecase"
	pkgch "EventEdge/pkg/clickhouse"
	"EventEdge/pkg/config"
	xhttp "EventEdge/pkg/http"
	pkgkafka "EventEdge/pkg/kafka"
	applogger "EventEdge/pkg/logger"
	"EventEdge/pkg/metrics"
	"EventEdge/pkg/queue"
	"EventEdge/pkg/server"
)

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: "eventedge",
	})
}

// ProvideMetrics creates the Prometheus decision recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideEngine creates the scoring engine pinned to the configured model version.
func ProvideEngine(cfg *config.Config) (*scoring.Engine, error) {
	return scoring.New(scoring.Config{ModelVersion: cfg.Engine.ModelVersion})
}

// ProvideRenderer creates the note renderer.
func ProvideRenderer() (*explain.Renderer, error) {
	return explain.NewRenderer()
}

// ProvideClickHouseClient opens the ClickHouse pool and makes sure the
// database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithProtocol(cfg.ClickHouse.UseHTTP, cfg.ClickHouse.Compress),
		pkgch.WithPool(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns, 0),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithQueryLimits(cfg.ClickHouse.MaxExecutionTime, cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.EnsureDatabase(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// ProvideDecisionStore creates the decision table if needed.
func ProvideDecisionStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (domrepo.DecisionStore, error) {
	store := internalrepo.NewCHDecisionStore(ch)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("decision store: %w", err)
	}
	return store, nil
}

// ProvideCandleStore returns nil when risk enrichment is disabled.
func ProvideCandleStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.CandleStore {
	if !cfg.Enrich.Enabled {
		return nil
	}
	store := internalrepo.NewCHCandleStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideRedisClient returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return cli, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled. With the log collector enabled, aggregated errors and warnings
// are shipped to the logs topic through the same producer.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers...),
		pkgkafka.WithClientID(cfg.Kafka.ClientID),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithKeyedPartitioning(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Logging.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.Threshold,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}
	return producer, nil
}

// ProvideDecisionPublisher returns nil without a producer.
func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.DecisionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionsTopic)
}

// ProvideCache picks the decision cache backend.
func ProvideCache(cfg *config.Config, rdb *redis.Client) icache.BytesCache {
	switch cfg.Cache.Backend {
	case "redis":
		if rdb != nil {
			return icache.NewRedisCache(rdb, cfg.Cache.Prefix)
		}
		return nil
	case "layered":
		if rdb != nil {
			return icache.NewLayeredCache(icache.NewTTLCache(), icache.NewRedisCache(rdb, cfg.Cache.Prefix), cfg.Cache.L1TTL)
		}
		return icache.NewTTLCache()
	case "memory":
		return icache.NewTTLCache()
	default:
		return nil
	}
}

// ProvideHub returns nil when streaming is disabled.
func ProvideHub(cfg *config.Config, l *applogger.Logger) *stream.Hub {
	if !cfg.Stream.Enabled {
		return nil
	}
	return stream.NewHub(stream.HubConfig{
		PingInterval: cfg.Stream.PingInterval,
		WriteTimeout: cfg.Stream.WriteTimeout,
		BufferSize:   cfg.Stream.BufferSize,
	}, l)
}

// ProvideQueue returns the rescore queue, or nil without redis.
func ProvideQueue(cfg *config.Config, rdb *redis.Client, l *applogger.Logger) *queue.RedisQueue {
	if rdb == nil {
		return nil
	}
	return queue.NewRedisQueue(rdb, l, queue.Config{
		Workers:       cfg.Rescore.Workers,
		RetryLimit:    cfg.Rescore.RetryLimit,
		RetryDelay:    cfg.Rescore.RetryDelay,
		MaxRetryDelay: cfg.Rescore.MaxRetryDelay,
		JobTimeout:    cfg.Rescore.JobTimeout,
		DeadLimit:     cfg.Rescore.DeadLimit,
	}, queue.WithKeyPrefix(cfg.Rescore.KeyPrefix))
}

// ProvideDecisionUseCase assembles the decision pipeline. Optional
// collaborators are only injected when present so the use case never
// holds a typed nil.
func ProvideDecisionUseCase(
	engine *scoring.Engine,
	store domrepo.DecisionStore,
	publisher domrepo.DecisionPublisher,
	candles domrepo.CandleStore,
	m domrepo.Metrics,
	cache icache.BytesCache,
	hub *stream.Hub,
	q *queue.RedisQueue,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.DecisionUseCase {
	uc := usecase.NewDecisionUseCase(engine, store, publisher, candles, m, usecase.DecisionConfig{
		CacheTTL:        cfg.Cache.TTL,
		EnrichRisk:      cfg.Enrich.Enabled,
		CandleTimeframe: domrepo.NormalizeTimeframe(cfg.Enrich.Timeframe),
		ATRPeriod:       cfg.Enrich.ATRPeriod,
		EnrichTimeout:   cfg.Enrich.Timeout,
	})
	uc.SetLogger(l)
	if cache != nil {
		uc.SetCache(cache)
	}
	if hub != nil {
		uc.SetHub(hub)
	}
	if q != nil {
		q.Register(usecase.NewRescoreJob(uc, l))
		uc.SetQueue(q)
	}
	return uc
}

// ProvideEventsHandler creates the classified-events consumer handler.
func ProvideEventsHandler(uc *usecase.DecisionUseCase, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaEventsHandler {
	return usecase.NewKafkaEventsHandler(cfg.Kafka.EventsTopic, uc, m)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers...),
		pkgkafka.WithConsumerClientID(cfg.Kafka.ClientID),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	c.SetLogger(l)
	c.SetHooks(pkgkafka.TraceHook(), pkgkafka.LogHook(l, cfg.Metrics.SlowThreshold))
	return c, nil
}

// ProvideScheduler registers the stale decision sweep.
func ProvideScheduler(cfg *config.Config, uc *usecase.DecisionUseCase, l *applogger.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(l, cfg.Rescore.JobTimeout)
	if cfg.Rescore.StaleSchedule == "" {
		return s, nil
	}
	if err := s.AddJob(cfg.Rescore.StaleSchedule, scheduler.NewStaleSweep(uc, cfg.Rescore.StaleLimit, l)); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideHTTPHandler groups the decision API and health probes.
func ProvideHTTPHandler(
	uc *usecase.DecisionUseCase,
	renderer *explain.Renderer,
	hub *stream.Hub,
	store domrepo.DecisionStore,
	q *queue.RedisQueue,
	cfg *config.Config,
	l *applogger.Logger,
) xhttp.Handler {
	dh := api.NewDecisionsHandler(uc, renderer, api.RateConfig{
		Capacity:     cfg.RateLimit.Capacity,
		RefillPerSec: cfg.RateLimit.RefillPerSec,
	})
	dh.SetLogger(l)
	if hub != nil {
		dh.SetStream(hub.Handle)
	}

	hh := api.NewHealthHandler(2 * time.Second)
	hh.Add("clickhouse", store.Health)
	if q != nil {
		hh.Add("redis", q.Health)
	}
	return xhttp.Handlers{dh, hh}
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.CORSOrigins...),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, cfg.Metrics.SlowThreshold))
	} else {
		opts = append(opts, xhttp.WithMetrics("", cfg.Metrics.SlowThreshold))
	}
	return xhttp.NewServer(h, l, opts...)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	events *usecase.KafkaEventsHandler,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	hub *stream.Hub,
	store domrepo.DecisionStore,
	publisher domrepo.DecisionPublisher,
	ch *pkgch.Client,
	rdb *redis.Client,
) *server.App {
	return server.New(cfg, l, server.Components{
		HTTP:       srv,
		Consumer:   consumer,
		Events:     events,
		Queue:      q,
		Scheduler:  sched,
		Hub:        hub,
		Store:      store,
		Publisher:  publisher,
		ClickHouse: ch,
		Redis:      rdb,
	})
}
