//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"EventEdge/pkg/config"
	"EventEdge/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideDecisionStore,
		ProvideCandleStore,
		ProvideDecisionPublisher,
		ProvideCache,

		// Engine and use cases
		ProvideEngine,
		ProvideRenderer,
		ProvideHub,
		ProvideQueue,
		ProvideDecisionUseCase,
		ProvideEventsHandler,
		ProvideScheduler,

		// Transport
		ProvideHTTPHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
