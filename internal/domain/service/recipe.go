package service

import (
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
	"github.com/sjfremen/fred/internal/domain/repository"
)

// SeriesSpec binds an upstream series to the column it fills.
type SeriesSpec struct {
	Column  string
	Request repository.SeriesRequest
}

// Highlight is one metric of the "latest values" view: a level column and
// the precomputed change column that goes with it.
type Highlight struct {
	Label  string
	Column string
	Change string
}

// Recipe describes how one output table is built from upstream series.
type Recipe interface {
	Name() string
	Frequency() repository.Frequency
	// Anchor is the series whose observation dates form the reference axis.
	Anchor() repository.SeriesRequest
	Series() []SeriesSpec
	// Derive adds the computed columns to an aligned and resampled table.
	Derive(t *models.Table) error
	// Columns lists the persisted columns in output order.
	Columns() []string
	// StartAfter drops rows dated on or before this date. Zero keeps all rows.
	StartAfter() time.Time
	Highlights() []Highlight
	// RegimeColumns lists the categorical columns, if any.
	RegimeColumns() []string
}
