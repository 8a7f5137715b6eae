package server

import (
	"context"
	"time"

	"github.com/sjfremen/fred/internal/usecase"
	"github.com/sjfremen/fred/pkg/config"
	applogger "github.com/sjfremen/fred/pkg/logger"
	"github.com/sjfremen/fred/pkg/metrics"
)

// pushTimeout bounds the Pushgateway call after a run.
const pushTimeout = 10 * time.Second

// Job is the pipeline process: one batch run followed by a metrics push.
type Job struct {
	cfg      *config.Config
	pipeline *usecase.Pipeline
	recorder *metrics.Recorder
	l        *applogger.Logger
}

// NewJob creates a new Job instance.
func NewJob(cfg *config.Config, pipeline *usecase.Pipeline, recorder *metrics.Recorder, l *applogger.Logger) *Job {
	return &Job{cfg: cfg, pipeline: pipeline, recorder: recorder, l: l}
}

// Run executes the pipeline once. Metrics are pushed whether or not the
// run succeeded; a push failure is logged and never fails the run.
func (j *Job) Run(ctx context.Context) (*usecase.RunResult, error) {
	res, err := j.pipeline.Run(ctx)
	if err == nil && j.recorder != nil {
		j.recorder.MarkSuccess()
	}
	j.push()
	if err != nil {
		j.l.Error("pipeline failed", applogger.Error(err))
		return nil, err
	}
	for _, t := range res.Tables {
		j.l.Info("table ready",
			applogger.String("table", t.Name),
			applogger.String("path", t.Path),
			applogger.Int("rows", t.Rows),
			applogger.String("first", t.First.Format("2006-01-02")),
			applogger.String("last", t.Last.Format("2006-01-02")),
		)
	}
	return res, nil
}

func (j *Job) push() {
	if j.recorder == nil || !j.cfg.Metrics.Enabled || j.cfg.Metrics.PushURL == "" {
		return
	}
	// The run context may already be cancelled; the push gets its own budget.
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := j.recorder.Push(ctx, j.cfg.Metrics.PushURL, j.cfg.Metrics.JobName); err != nil {
		j.l.Warn("metrics push failed", applogger.Error(err))
		return
	}
	j.l.Debug("metrics pushed", applogger.String("url", j.cfg.Metrics.PushURL))
}
