package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sjfremen/fred/internal/domain/models"
	drepo "github.com/sjfremen/fred/internal/domain/repository"
	"github.com/sjfremen/fred/internal/domain/service"
	"github.com/sjfremen/fred/internal/services/timeseries"
	applogger "github.com/sjfremen/fred/pkg/logger"
)

// Target binds a recipe to the file it is written to.
type Target struct {
	Recipe service.Recipe
	Output string
}

// TableResult describes one written table.
type TableResult struct {
	Name  string
	Path  string
	Rows  int
	First time.Time
	Last  time.Time
}

// RunResult summarizes a pipeline run.
type RunResult struct {
	Tables   []TableResult
	Fetched  int
	Duration time.Duration
}

// Pipeline fetches upstream series, builds every configured table and
// persists them. No file is touched unless every table was built.
type Pipeline struct {
	source      drepo.SeriesSource
	writer      drepo.TableWriter
	mirrors     []drepo.TableMirror
	targets     []Target
	metrics     drepo.Metrics
	concurrency int
	l           *applogger.Logger
}

// NewPipeline creates a new Pipeline instance. metrics may be nil.
func NewPipeline(source drepo.SeriesSource, writer drepo.TableWriter, targets []Target, mirrors []drepo.TableMirror, metrics drepo.Metrics, concurrency int, l *applogger.Logger) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Pipeline{
		source:      source,
		writer:      writer,
		mirrors:     mirrors,
		targets:     targets,
		metrics:     metrics,
		concurrency: concurrency,
		l:           l,
	}
}

// Targets returns the configured targets.
func (p *Pipeline) Targets() []Target { return p.targets }

type built struct {
	target Target
	table  *models.Table
}

// Run executes one full batch.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	if len(p.targets) == 0 {
		return nil, errors.New("pipeline: no tables enabled")
	}
	p.l.Info("pipeline started", applogger.Int("tables", len(p.targets)), applogger.Int("concurrency", p.concurrency))

	fetched, err := p.fetchAll(ctx)
	if err != nil {
		p.recordError("fetch")
		return nil, err
	}

	tables := make([]built, 0, len(p.targets))
	for _, tg := range p.targets {
		t, err := p.build(tg.Recipe, fetched)
		if err != nil {
			p.recordError("build")
			return nil, fmt.Errorf("build %s table: %w", tg.Recipe.Name(), err)
		}
		p.l.Info("table built",
			applogger.String("table", tg.Recipe.Name()),
			applogger.Int("rows", t.Len()),
			applogger.Int("columns", len(t.Names())),
		)
		tables = append(tables, built{target: tg, table: t})
	}

	res := &RunResult{Fetched: len(fetched)}
	for _, b := range tables {
		name := b.target.Recipe.Name()
		if err := p.writer.Write(ctx, b.target.Output, b.table); err != nil {
			p.recordError("write")
			return nil, fmt.Errorf("write %s table: %w", name, err)
		}
		p.l.Info("table written", applogger.String("table", name), applogger.String("path", b.target.Output), applogger.Int("rows", b.table.Len()))
		p.recordTable("csv", name, b.table)

		tr := TableResult{Name: name, Path: b.target.Output, Rows: b.table.Len()}
		if n := b.table.Len(); n > 0 {
			tr.First, tr.Last = b.table.Dates[0], b.table.Dates[n-1]
		}
		res.Tables = append(res.Tables, tr)
	}

	for _, b := range tables {
		for _, m := range p.mirrors {
			name := b.target.Recipe.Name()
			if err := m.Mirror(ctx, name, b.table); err != nil {
				p.recordError("mirror")
				return nil, fmt.Errorf("mirror %s table: %w", name, err)
			}
			if p.metrics != nil {
				p.metrics.RecordRowsWritten("mirror", name, b.table.Len())
			}
		}
	}

	res.Duration = time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline", res.Duration.Seconds())
	}
	p.l.Info("pipeline finished", applogger.Int("series", res.Fetched), applogger.Duration("duration_ms", res.Duration))
	return res, nil
}

// requests returns every distinct series request across targets, in
// first-seen order. Requests are distinct by Key, not by series ID alone.
func (p *Pipeline) requests() []drepo.SeriesRequest {
	seen := make(map[string]bool)
	var out []drepo.SeriesRequest
	add := func(r drepo.SeriesRequest) {
		if seen[r.Key()] {
			return
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	for _, tg := range p.targets {
		add(tg.Recipe.Anchor())
		for _, s := range tg.Recipe.Series() {
			add(s.Request)
		}
	}
	return out
}

// fetchAll retrieves each distinct request once, keyed by SeriesRequest.Key.
// The first failure cancels the remaining fetches.
func (p *Pipeline) fetchAll(ctx context.Context) (map[string]*models.TimeSeries, error) {
	reqs := p.requests()
	out := make(map[string]*models.TimeSeries, len(reqs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, req := range reqs {
		req := req
		g.Go(func() error {
			s, err := p.source.Fetch(gctx, req)
			if err != nil {
				p.l.Error("fetch failed", applogger.String("series", req.ID), applogger.Error(err))
				return err
			}
			p.l.Debug("series fetched", applogger.String("series", req.ID), applogger.Int("observations", s.Len()))
			mu.Lock()
			out[req.Key()] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) build(r service.Recipe, fetched map[string]*models.TimeSeries) (*models.Table, error) {
	axis, err := timeseries.Axis(fetched[r.Anchor().Key()])
	if err != nil {
		return nil, fmt.Errorf("anchor %s: %w", r.Anchor().ID, err)
	}

	byColumn := make(map[string]*models.TimeSeries, len(r.Series()))
	order := make([]string, 0, len(r.Series()))
	for _, s := range r.Series() {
		byColumn[s.Column] = fetched[s.Request.Key()]
		order = append(order, s.Column)
	}

	aligned, err := timeseries.Align(axis, byColumn, order)
	if err != nil {
		return nil, err
	}
	t, err := timeseries.Resample(aligned, r.Frequency())
	if err != nil {
		return nil, err
	}
	if err := r.Derive(t); err != nil {
		return nil, err
	}
	if after := r.StartAfter(); !after.IsZero() {
		t = t.After(after)
	}
	return t.Select(r.Columns()...)
}

func (p *Pipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func (p *Pipeline) recordTable(sink, name string, t *models.Table) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordRowsWritten(sink, name, t.Len())
	n := t.Len()
	if n == 0 {
		return
	}
	for _, c := range t.Columns() {
		if c.Kind == models.NumericColumn && !models.IsMissing(c.Values[n-1]) {
			p.metrics.RecordLastValue(name, c.Name, c.Values[n-1])
		}
	}
}
