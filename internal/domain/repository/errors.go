package repository

import (
	"errors"
	"fmt"
)

// ErrUnknownSeries is wrapped by FetchError when the source does not know the identifier.
var ErrUnknownSeries = errors.New("unknown series")

// FetchError reports a series that could not be retrieved. A run with a
// FetchError for a mandatory series is invalid.
type FetchError struct {
	SeriesID   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.SeriesID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.SeriesID, e.Err)
}

// Unwrap returns underlying error.
func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, ErrUnknownSeries) {
		return false
	}
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
