package server

import (
	"context"

	"github.com/sjfremen/fred/pkg/config"
	xhttp "github.com/sjfremen/fred/pkg/http"
	applogger "github.com/sjfremen/fred/pkg/logger"
)

// App is the dashboard process: an HTTP server over the persisted tables.
type App struct {
	cfg        *config.Config
	httpServer *xhttp.Server
	l          *applogger.Logger
}

// New creates a new App instance.
func New(cfg *config.Config, httpServer *xhttp.Server, l *applogger.Logger) *App {
	return &App{cfg: cfg, httpServer: httpServer, l: l}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("dashboard started",
		applogger.String("weekly", a.cfg.Pipeline.Weekly.Output),
		applogger.String("monthly", a.cfg.Pipeline.Monthly.Output),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	err := a.httpServer.Stop(shutdownCtx)
	if err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	a.l.Info("shutdown complete")
	return err
}
