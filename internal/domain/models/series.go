package models

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the ISO 8601 calendar date used on the wire and on disk.
const DateLayout = "2006-01-02"

// Missing returns the sentinel used for an absent value.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is absent.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Observation is one (date, value) point of a series. Value is NaN when
// the source reports no value for the date.
type Observation struct {
	Date  time.Time
	Value float64
}

// TimeSeries is an ordered, immutable sequence of observations for one
// upstream series identifier.
type TimeSeries struct {
	ID           string
	Observations []Observation
}

// Len returns the number of observations.
func (s *TimeSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Observations)
}

// Dates returns the observation dates in order.
func (s *TimeSeries) Dates() []time.Time {
	out := make([]time.Time, s.Len())
	for i, o := range s.Observations {
		out[i] = o.Date
	}
	return out
}

// Validate checks that dates are strictly increasing.
func (s *TimeSeries) Validate() error {
	for i := 1; i < s.Len(); i++ {
		if !s.Observations[i].Date.After(s.Observations[i-1].Date) {
			return fmt.Errorf("series %s: dates not strictly increasing at %s", s.ID, s.Observations[i].Date.Format(DateLayout))
		}
	}
	return nil
}
