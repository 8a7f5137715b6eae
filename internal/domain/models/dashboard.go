package models

import "time"

// Requests for dashboard HTTP endpoints. Defined in domain for consistency and reuse.

type LatestRequest struct {
	Table string `param:"table" json:"table" validate:"required"`
	Start string `query:"start" json:"start" default:"2010-01-01" validate:"omitempty,datetime=2006-01-02"`
}

type SeriesRequest struct {
	Table   string `param:"table" json:"table" validate:"required"`
	Columns string `query:"columns" json:"columns" validate:"required"`
	Start   string `query:"start" json:"start" default:"2010-01-01" validate:"omitempty,datetime=2006-01-02"`
}

// TableInfo summarizes a persisted table.
type TableInfo struct {
	Name      string
	Path      string
	Columns   []string
	Rows      int
	FirstDate time.Time
	LastDate  time.Time
}

// MetricSnapshot is one row of the "latest values" view: the latest value
// of a level column, the value one lookback earlier and the precomputed change.
type MetricSnapshot struct {
	Label    string
	Column   string
	Latest   *float64
	Previous *float64
	Change   *float64
}

// LatestView is the "latest values" summary of a table.
type LatestView struct {
	Table    string
	AsOf     time.Time
	Lookback int
	Metrics  []MetricSnapshot
	Regimes  map[string]string
}

// SeriesView holds the selected columns of a table from a start date on.
// Missing values are nil.
type SeriesView struct {
	Table  string
	Dates  []time.Time
	Series map[string][]*float64
	Labels map[string][]string
}
