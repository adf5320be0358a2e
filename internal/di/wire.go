//go:build wireinject
// +build wireinject

package di

import (
	"AlphaBot/pkg/config"
	"AlphaBot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideHub,

		// Repositories
		ProvideBotStore,
		ProvideSignalLog,
		ProvideEventPublisher,
		ProvideLocker,

		// Use cases
		ProvideMachine,
		ProvideDispatcher,
		ProvideKafkaCommandsHandler,

		// Transport
		ProvideLimiter,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		// Application server
		ProvideResources,
		ProvideApp,
	)
	return &server.App{}, nil
}
