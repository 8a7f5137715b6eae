//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/sjfremen/fred/pkg/config"
	applogger "github.com/sjfremen/fred/pkg/logger"
	"github.com/sjfremen/fred/pkg/server"
)

// InitializeJob wires the pipeline process.
// Wire will generate the implementation of this function.
func InitializeJob(cfg *config.Config, l *applogger.Logger) (*server.Job, func(), error) {
	wire.Build(
		// Metrics
		ProvideRecorder,
		ProvideMetrics,

		// Source and sinks
		ProvideSeriesSource,
		ProvideCSVTable,
		ProvideTableWriter,
		ProvideMirrors,

		// Use cases
		ProvideTargets,
		ProvidePipeline,

		ProvideJob,
	)
	return nil, nil, nil
}

// InitializeApp wires the dashboard process.
func InitializeApp(cfg *config.Config, l *applogger.Logger) (*server.App, func(), error) {
	wire.Build(
		ProvideCSVTable,
		ProvideTableLoader,
		ProvideTargets,
		ProvideDashboard,
		ProvideDashboardHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
