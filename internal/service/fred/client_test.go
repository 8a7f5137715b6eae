package fred

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "github.com/sjfremen/fred/internal/domain/repository"
	"github.com/sjfremen/fred/internal/service/ratelimit"
	xhttp "github.com/sjfremen/fred/pkg/http"
)

func newTestClient(url string, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(url),
		WithRetry(3, time.Millisecond, 5*time.Millisecond),
		WithRateLimit(ratelimit.New(), 60000),
	}
	return New("secret-key", append(base, opts...)...)
}

func TestFetchParsesObservations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/observations", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "WALCL", q.Get("series_id"))
		assert.Equal(t, "secret-key", q.Get("api_key"))
		assert.Equal(t, "json", q.Get("file_type"))
		assert.Equal(t, "m", q.Get("frequency"))
		assert.Equal(t, "eop", q.Get("aggregation_method"))
		assert.Equal(t, "2000-01-01", q.Get("observation_start"))
		_, _ = w.Write([]byte(`{"count":3,"observations":[
			{"date":"2024-01-03","value":"7700000.5"},
			{"date":"2024-01-10","value":"."},
			{"date":"2024-01-17","value":"7650000"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	s, err := c.Fetch(context.Background(), drepo.SeriesRequest{
		ID:               "WALCL",
		Frequency:        "m",
		Aggregation:      "eop",
		ObservationStart: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, "WALCL", s.ID)
	assert.Equal(t, 7700000.5, s.Observations[0].Value)
	assert.True(t, math.IsNaN(s.Observations[1].Value))
	assert.Equal(t, time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), s.Observations[2].Date)
}

func TestFetchUnknownSeriesIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":400,"error_message":"Bad Request.  The series does not exist."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), drepo.SeriesRequest{ID: "NOPE"})
	require.Error(t, err)

	var fe *drepo.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "NOPE", fe.SeriesID)
	assert.Equal(t, http.StatusBadRequest, fe.StatusCode)
	assert.ErrorIs(t, err, drepo.ErrUnknownSeries)
	assert.Contains(t, err.Error(), "series does not exist")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"observations":[{"date":"2024-01-01","value":"1"}]}`))
		}
	}))
	defer srv.Close()

	s, err := newTestClient(srv.URL).Fetch(context.Background(), drepo.SeriesRequest{ID: "FF"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), drepo.SeriesRequest{ID: "FF"})
	var fe *drepo.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.False(t, errors.Is(err, drepo.ErrUnknownSeries))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchTimeoutIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL,
		WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(20*time.Millisecond))),
		WithRetry(2, time.Millisecond, time.Millisecond),
	)
	_, err := c.Fetch(context.Background(), drepo.SeriesRequest{ID: "FF"})
	var fe *drepo.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, fe.StatusCode)
	assert.True(t, fe.Retryable())
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || isTimeout(err), err.Error())
	assert.NotContains(t, err.Error(), "secret-key")
	assert.Contains(t, err.Error(), "api_key=REDACTED")
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func TestFetchTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := New("SECRETKEY123",
		WithBaseURL(addr),
		WithRetry(1, time.Millisecond, time.Millisecond),
		WithRateLimit(ratelimit.New(), 60000),
	)
	_, err := c.Fetch(context.Background(), drepo.SeriesRequest{ID: "WALCL"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRETKEY123")
	assert.Contains(t, err.Error(), "WALCL")
}

func TestFetchRejectsMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"observations":[{"date":"2024-01-02","value":"1"},{"date":"2024-01-01","value":"2"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), drepo.SeriesRequest{ID: "FF"})
	var fe *drepo.FetchError
	require.True(t, errors.As(err, &fe))
	assert.False(t, fe.Retryable())
}

func TestFetchEmptyID(t *testing.T) {
	_, err := New("k").Fetch(context.Background(), drepo.SeriesRequest{})
	assert.ErrorIs(t, err, drepo.ErrUnknownSeries)
}

func TestFetchHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv.URL, WithRetry(5, time.Second, time.Second)).Fetch(ctx, drepo.SeriesRequest{ID: "FF"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	c := New("k", WithRetry(5, 100*time.Millisecond, 300*time.Millisecond))
	b1 := c.backoff(1)
	assert.GreaterOrEqual(t, b1, 100*time.Millisecond)
	assert.Less(t, b1, 111*time.Millisecond)
	assert.GreaterOrEqual(t, c.backoff(2), 200*time.Millisecond)
	assert.GreaterOrEqual(t, c.backoff(4), 300*time.Millisecond)
	assert.LessOrEqual(t, c.backoff(4), 330*time.Millisecond)
}
