package repository

import (
	"context"
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
)

// SeriesRequest identifies an upstream series and optional sampling hints.
type SeriesRequest struct {
	ID               string
	Frequency        string // source-side frequency hint, e.g. "w", "m"
	Aggregation      string // source-side aggregation hint: "avg", "sum", "eop"
	ObservationStart time.Time
}

// Key identifies a request by every field that shapes the fetched data.
// Requests for one series with different hints get different keys.
func (r SeriesRequest) Key() string {
	start := ""
	if !r.ObservationStart.IsZero() {
		start = r.ObservationStart.UTC().Format(time.RFC3339)
	}
	return r.ID + "|" + r.Frequency + "|" + r.Aggregation + "|" + start
}

// SeriesSource retrieves the full available history of a named series.
type SeriesSource interface {
	Fetch(ctx context.Context, req SeriesRequest) (*models.TimeSeries, error)
}

// TableWriter persists a table at path, replacing any existing content.
type TableWriter interface {
	Write(ctx context.Context, path string, t *models.Table) error
}

// TableReader loads a persisted table.
type TableReader interface {
	Read(ctx context.Context, path string) (*models.Table, error)
}

// TableMirror copies a finished table into a secondary sink.
type TableMirror interface {
	Mirror(ctx context.Context, name string, t *models.Table) error
	Close() error
}

type Metrics interface {
	RecordRowsWritten(sink, table string, rows int)
	RecordError(kind string)
	RecordLastValue(table, column string, v float64)
	RecordLatency(op string, seconds float64)
}
