//go:build wireinject
// +build wireinject

package di

import (
	"AlphaPulse/pkg/config"
	"AlphaPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogCollector,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCacheBackend,

		// Repositories
		ProvideDedupStore,
		ProvideWeightStore,
		ProvideOutcomeLog,
		ProvideAlertPublisher,
		ProvideProviderCache,

		// Resolution
		ProvideStream,
		ProvideRegistry,
		ProvideResolver,

		// Use cases
		ProvideAggregator,
		ProvideOutcomeTracker,
		ProvideWeightAdjuster,
		ProvidePipeline,
		ProvideEventsHandler,

		// Surfaces
		ProvideScheduler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
