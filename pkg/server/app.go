package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	domrepo "EventEdge/internal/domain/repository"
	"EventEdge/internal/scheduler"
	"EventEdge/internal/service/stream"
	pkgch "EventEdge/pkg/clickhouse"
	"EventEdge/pkg/config"
	xhttp "EventEdge/pkg/http"
	pkgkafka "EventEdge/pkg/kafka"
	applogger "EventEdge/pkg/logger"
	"EventEdge/pkg/queue"
)

// Components are the long-running parts the App starts and stops. Any of
// them except HTTP may be nil when disabled in config.
type Components struct {
	HTTP       *xhttp.Server
	Consumer   *pkgkafka.Consumer
	Events     pkgkafka.MessageHandler
	Queue      *queue.RedisQueue
	Scheduler  *scheduler.Scheduler
	Hub        *stream.Hub
	Store      domrepo.DecisionStore
	Publisher  domrepo.DecisionPublisher
	ClickHouse *pkgch.Client
	Redis      *redis.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	l   *applogger.Logger
	c   Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, l: l, c: c}
}

// Run starts every component and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(); err != nil {
		_ = a.shutdown()
		return err
	}
	a.l.Info("eventedge started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("model_version", a.cfg.Engine.ModelVersion))

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) start() error {
	if a.c.HTTP == nil {
		return errors.New("http server is required")
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Start(); err != nil {
			return fmt.Errorf("start rescore queue: %w", err)
		}
	}
	if a.c.Consumer != nil && a.c.Events != nil {
		a.c.Consumer.RegisterHandler(a.c.Events)
		if err := a.c.Consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}
	if a.c.Scheduler != nil {
		a.c.Scheduler.Start()
	}
	return a.c.HTTP.Start()
}

// shutdown stops producers of work before the sinks they write to.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	note := func(what string, err error) {
		if err != nil {
			a.l.Warn("shutdown: "+what, applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
	}

	if a.c.HTTP != nil {
		note("http server", a.c.HTTP.Stop(ctx))
	}
	if a.c.Scheduler != nil {
		a.c.Scheduler.Stop()
	}
	if a.c.Consumer != nil {
		note("kafka consumer", a.c.Consumer.Stop(ctx))
	}
	if a.c.Queue != nil {
		note("rescore queue", a.c.Queue.Stop(ctx))
	}
	if a.c.Hub != nil {
		a.c.Hub.Close()
	}
	// the collector ships through the producer, so flush it first
	a.l.RemoveCollector()
	if a.c.Publisher != nil {
		note("decision publisher", a.c.Publisher.Close())
	}
	if a.c.Store != nil {
		note("decision store", a.c.Store.Close())
	}
	if a.c.ClickHouse != nil {
		note("clickhouse", a.c.ClickHouse.Close())
	}
	if a.c.Redis != nil {
		note("redis", a.c.Redis.Close())
	}
	a.l.Info("shutdown complete", applogger.Int("errors", len(errs)))
	return errors.Join(errs...)
}
