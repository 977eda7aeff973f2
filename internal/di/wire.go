//go:build wireinject
// +build wireinject

package di

import (
	"TrendPulse/pkg/config"
	"TrendPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideBus,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideBytesCache,

		// Repositories
		ProvideCandleArchive,
		ProvideSignalSink,
		ProvideHistoricalSource,
		ProvideLiveStream,

		// Use cases
		ProvidePipeline,
		ProvideFeed,
		ProvideStateView,
		ProvideArchiveRouter,
		ProvideArchiveTap,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
