package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sjfremen/fred/internal/di"
	"github.com/sjfremen/fred/pkg/config"
	applogger "github.com/sjfremen/fred/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg, l)
	if err != nil {
		l.Error("dashboard initialization failed", applogger.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		l.Error("dashboard error", applogger.Error(err))
		os.Exit(1)
	}
}
