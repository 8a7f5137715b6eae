package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
	drepo "github.com/sjfremen/fred/internal/domain/repository"
	applogger "github.com/sjfremen/fred/pkg/logger"
)

var ErrUnknownTable = errors.New("unknown table")

// Dashboard serves read-only views over the persisted tables.
type Dashboard struct {
	reader  drepo.TableReader
	targets map[string]Target
	order   []string
	l       *applogger.Logger
}

// NewDashboard creates a new Dashboard instance. reader is expected to be
// a memoizing loader so every request sees the same loaded table.
func NewDashboard(reader drepo.TableReader, targets []Target, l *applogger.Logger) *Dashboard {
	if l == nil {
		l = applogger.Nop()
	}
	d := &Dashboard{reader: reader, targets: make(map[string]Target, len(targets)), l: l}
	for _, tg := range targets {
		name := tg.Recipe.Name()
		d.targets[name] = tg
		d.order = append(d.order, name)
	}
	return d
}

func (d *Dashboard) load(ctx context.Context, table string) (Target, *models.Table, error) {
	tg, ok := d.targets[table]
	if !ok {
		return Target{}, nil, fmt.Errorf("%s: %w", table, ErrUnknownTable)
	}
	t, err := d.reader.Read(ctx, tg.Output)
	if err != nil {
		d.l.Error("load table", applogger.String("table", table), applogger.String("path", tg.Output), applogger.Error(err))
		return Target{}, nil, fmt.Errorf("load %s table: %w", table, err)
	}
	return tg, t, nil
}

// Tables describes every configured table.
func (d *Dashboard) Tables(ctx context.Context) ([]models.TableInfo, error) {
	out := make([]models.TableInfo, 0, len(d.order))
	for _, name := range d.order {
		tg, t, err := d.load(ctx, name)
		if err != nil {
			return nil, err
		}
		info := models.TableInfo{Name: name, Path: tg.Output, Columns: t.Names(), Rows: t.Len()}
		if n := t.Len(); n > 0 {
			info.FirstDate, info.LastDate = t.Dates[0], t.Dates[n-1]
		}
		out = append(out, info)
	}
	return out, nil
}

// Latest returns the "latest values" view of table over rows dated at or
// after start. Previous is one year of rows before the latest, when present.
func (d *Dashboard) Latest(ctx context.Context, table string, start time.Time) (*models.LatestView, error) {
	tg, t, err := d.load(ctx, table)
	if err != nil {
		return nil, err
	}
	t = t.Since(start)
	lookback := tg.Recipe.Frequency().YearLookback()
	view := &models.LatestView{Table: table, Lookback: lookback}
	n := t.Len()
	if n == 0 {
		return view, nil
	}
	view.AsOf = t.Dates[n-1]

	for _, h := range tg.Recipe.Highlights() {
		values, err := t.Numeric(h.Column)
		if err != nil {
			return nil, err
		}
		changes, err := t.Numeric(h.Change)
		if err != nil {
			return nil, err
		}
		m := models.MetricSnapshot{
			Label:  h.Label,
			Column: h.Column,
			Latest: ptr(values[n-1]),
			Change: ptr(changes[n-1]),
		}
		if prev := n - 1 - lookback; prev >= 0 {
			m.Previous = ptr(values[prev])
		}
		view.Metrics = append(view.Metrics, m)
	}

	for _, name := range tg.Recipe.RegimeColumns() {
		labels, err := t.Labels(name)
		if err != nil {
			return nil, err
		}
		if view.Regimes == nil {
			view.Regimes = make(map[string]string)
		}
		view.Regimes[name] = lastLabel(labels)
	}
	return view, nil
}

// Series returns the named columns of table from start on.
func (d *Dashboard) Series(ctx context.Context, table string, columns []string, start time.Time) (*models.SeriesView, error) {
	_, t, err := d.load(ctx, table)
	if err != nil {
		return nil, err
	}
	t = t.Since(start)
	view := &models.SeriesView{
		Table:  table,
		Dates:  t.Dates,
		Series: make(map[string][]*float64),
	}
	for _, name := range columns {
		c, ok := t.Column(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, models.ErrUnknownColumn)
		}
		if c.Kind == models.LabelColumn {
			if view.Labels == nil {
				view.Labels = make(map[string][]string)
			}
			view.Labels[c.Name] = c.Labels
			continue
		}
		vals := make([]*float64, len(c.Values))
		for i, v := range c.Values {
			vals[i] = ptr(v)
		}
		view.Series[c.Name] = vals
	}
	return view, nil
}

// ptr maps missing and non-finite values to null for JSON.
func ptr(v float64) *float64 {
	if models.IsMissing(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func lastLabel(labels []string) string {
	for i := len(labels) - 1; i >= 0; i-- {
		if labels[i] != "" {
			return labels[i]
		}
	}
	return ""
}
