// Package timeseries puts differently sampled series on one date axis and
// downsamples the result to weekly or monthly periods.
package timeseries

import (
	"errors"
	"fmt"
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
	"github.com/sjfremen/fred/internal/domain/repository"
)

var (
	ErrEmptyAxis     = errors.New("empty reference axis")
	ErrMissingSeries = errors.New("series not provided")
)

// Axis returns the anchor's observation dates. Dates whose value is missing
// still belong to the axis.
func Axis(anchor *models.TimeSeries) ([]time.Time, error) {
	if anchor.Len() == 0 {
		return nil, ErrEmptyAxis
	}
	if err := anchor.Validate(); err != nil {
		return nil, err
	}
	return anchor.Dates(), nil
}

// Align reindexes every named series onto axis, in the given column order.
// The value at t is the latest non-missing observation dated at or before t.
// Rows before a series' first observation stay missing.
func Align(axis []time.Time, series map[string]*models.TimeSeries, order []string) (*models.Table, error) {
	if len(axis) == 0 {
		return nil, ErrEmptyAxis
	}
	t := models.NewTable(axis)
	for _, name := range order {
		s, ok := series[name]
		if !ok || s == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrMissingSeries)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if err := t.AddNumeric(name, ForwardFill(axis, s.Observations)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ForwardFill samples obs at every axis date with last-value carry-forward.
// Both axis and obs must be in ascending date order.
func ForwardFill(axis []time.Time, obs []models.Observation) []float64 {
	out := make([]float64, len(axis))
	last := models.Missing()
	j := 0
	for i, d := range axis {
		for j < len(obs) && !obs[j].Date.After(d) {
			if !models.IsMissing(obs[j].Value) {
				last = obs[j].Value
			}
			j++
		}
		out[i] = last
	}
	return out
}

// PeriodEnd returns the label of the period containing t: the Sunday ending
// its week, or the last calendar day of its month.
func PeriodEnd(t time.Time, f repository.Frequency) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch f {
	case repository.Monthly:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	default:
		return day.AddDate(0, 0, (7-int(day.Weekday()))%7)
	}
}

func nextPeriodEnd(end time.Time, f repository.Frequency) time.Time {
	if f == repository.Monthly {
		return PeriodEnd(end.AddDate(0, 0, 1), f)
	}
	return end.AddDate(0, 0, 7)
}

// Resample downsamples t to f. Each output row is labelled with its period
// end and holds, per column, the last non-missing value of the period.
// Periods without rows between the first and last one are emitted empty.
func Resample(t *models.Table, f repository.Frequency) (*models.Table, error) {
	if !repository.IsValidFrequency(f) {
		return nil, fmt.Errorf("unsupported frequency %q", f)
	}
	if t.Len() == 0 {
		return models.NewTable(nil), nil
	}

	first := PeriodEnd(t.Dates[0], f)
	last := PeriodEnd(t.Dates[t.Len()-1], f)
	var ends []time.Time
	for e := first; !e.After(last); e = nextPeriodEnd(e, f) {
		ends = append(ends, e)
	}

	// bucket[i] is the output row of input row i.
	bucket := make([]int, t.Len())
	b := 0
	for i, d := range t.Dates {
		if i > 0 && !d.After(t.Dates[i-1]) {
			return nil, fmt.Errorf("resample: dates not strictly increasing at %s", d.Format(models.DateLayout))
		}
		pe := PeriodEnd(d, f)
		for ends[b].Before(pe) {
			b++
		}
		bucket[i] = b
	}

	out := models.NewTable(ends)
	for _, c := range t.Columns() {
		var err error
		switch c.Kind {
		case models.NumericColumn:
			vals := make([]float64, len(ends))
			for i := range vals {
				vals[i] = models.Missing()
			}
			for i, v := range c.Values {
				if !models.IsMissing(v) {
					vals[bucket[i]] = v
				}
			}
			err = out.AddNumeric(c.Name, vals)
		case models.LabelColumn:
			labels := make([]string, len(ends))
			for i, v := range c.Labels {
				if v != "" {
					labels[bucket[i]] = v
				}
			}
			err = out.AddLabels(c.Name, labels)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
