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
	only := flag.String("only", "", "build a single table: weekly or monthly")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	switch *only {
	case "":
	case "weekly":
		cfg.Pipeline.Monthly.Enabled = false
	case "monthly":
		cfg.Pipeline.Weekly.Enabled = false
	default:
		log.Fatalf("unknown table %q for -only", *only)
	}

	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	if err := cfg.RequireCredential(); err != nil {
		l.Error("missing credential", applogger.Error(err))
		os.Exit(1)
	}
	l.Info("pipeline config",
		applogger.String("env", cfg.Environment),
		applogger.String("mirror", cfg.Mirror.Type),
		applogger.Bool("weekly", cfg.Pipeline.Weekly.Enabled),
		applogger.Bool("monthly", cfg.Pipeline.Monthly.Enabled),
	)

	job, cleanup, err := di.InitializeJob(cfg, l)
	if err != nil {
		l.Error("pipeline initialization failed", applogger.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	_, err = job.Run(ctx)
	stop()
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}
