// Package fred fetches observation histories from the FRED REST API.
package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
	drepo "github.com/sjfremen/fred/internal/domain/repository"
	"github.com/sjfremen/fred/internal/service/ratelimit"
	xhttp "github.com/sjfremen/fred/pkg/http"
	"github.com/sjfremen/fred/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.stlouisfed.org/fred"

	// missingValue is FRED's placeholder for a date without a value.
	missingValue = "."
	limiterKey   = "fred"
	redacted     = "REDACTED"
)

// Client implements repository.SeriesSource against FRED.
type Client struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client

	limiter           *ratelimit.Limiter
	requestsPerMinute float64

	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration

	metrics drepo.Metrics
	log     *logger.Logger
}

// Option configures Client.
type Option func(*Client)

// New creates a FRED client. The API key is sent with every request.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:           DefaultBaseURL,
		apiKey:            apiKey,
		requestsPerMinute: 120,
		maxAttempts:       4,
		backoffMin:        500 * time.Millisecond,
		backoffMax:        10 * time.Second,
		log:               logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New()
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// WithBaseURL overrides the API root, e.g. for a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the transport client; its timeout bounds each attempt.
func WithHTTPClient(h *xhttp.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry sets the attempt budget and the exponential backoff window.
func WithRetry(maxAttempts int, min, max time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.backoffMin = min
		c.backoffMax = max
	}
}

// WithRateLimit shares a limiter and sets the request budget per minute.
func WithRateLimit(l *ratelimit.Limiter, perMinute int) Option {
	return func(c *Client) {
		c.limiter = l
		c.requestsPerMinute = float64(perMinute)
	}
}

func WithMetrics(m drepo.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type observationsResponse struct {
	Count        int           `json:"count"`
	Observations []observation `json:"observations"`
}

type errorResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

// Fetch returns the full history of req.ID. Transient failures are retried
// with exponential backoff; unknown series fail immediately.
func (c *Client) Fetch(ctx context.Context, req drepo.SeriesRequest) (*models.TimeSeries, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, &drepo.FetchError{Err: fmt.Errorf("empty series id: %w", drepo.ErrUnknownSeries)}
	}

	start := time.Now()
	var lastErr *drepo.FetchError
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx, limiterKey, c.burst(), c.requestsPerMinute/60); err != nil {
			return nil, &drepo.FetchError{SeriesID: req.ID, Err: err}
		}

		s, ferr := c.fetchOnce(ctx, req)
		if ferr == nil {
			c.observe(start)
			c.log.Debug("fred: series fetched",
				logger.String("series", req.ID),
				logger.Int("observations", s.Len()),
				logger.Int("attempt", attempt),
			)
			return s, nil
		}
		lastErr = ferr
		if !ferr.Retryable() || ctx.Err() != nil || attempt == c.maxAttempts {
			break
		}

		wait := c.backoff(attempt)
		c.log.Warn("fred: fetch failed, retrying",
			logger.String("series", req.ID),
			logger.Int("attempt", attempt),
			logger.Int("status", ferr.StatusCode),
			logger.Duration("backoff_ms", wait),
			logger.Error(ferr.Err),
		)
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			c.recordError()
			return nil, &drepo.FetchError{SeriesID: req.ID, Err: ctx.Err()}
		}
	}

	c.recordError()
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, req drepo.SeriesRequest) (*models.TimeSeries, *drepo.FetchError) {
	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/series/observations",
		QueryParams: c.query(req),
		Headers:     map[string]string{"Accept": "application/json"},
	}, &body)
	if err != nil {
		return nil, c.classify(req.ID, err)
	}

	var resp observationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &drepo.FetchError{SeriesID: req.ID, StatusCode: http.StatusOK, Err: fmt.Errorf("decode observations: %w", err)}
	}
	s, err := toSeries(req.ID, resp.Observations)
	if err != nil {
		return nil, &drepo.FetchError{SeriesID: req.ID, StatusCode: http.StatusOK, Err: err}
	}
	return s, nil
}

func (c *Client) query(req drepo.SeriesRequest) map[string][]string {
	q := map[string][]string{
		"series_id": {req.ID},
		"api_key":   {c.apiKey},
		"file_type": {"json"},
	}
	if req.Frequency != "" {
		q["frequency"] = []string{req.Frequency}
	}
	if req.Aggregation != "" {
		q["aggregation_method"] = []string{req.Aggregation}
	}
	if !req.ObservationStart.IsZero() {
		q["observation_start"] = []string{req.ObservationStart.Format(models.DateLayout)}
	}
	return q
}

// classify turns a transport error into a FetchError without leaking the key.
func (c *Client) classify(id string, err error) *drepo.FetchError {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		msg := se.Body
		var er errorResponse
		if json.Unmarshal([]byte(se.Body), &er) == nil && er.Message != "" {
			msg = er.Message
		}
		switch se.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound:
			return &drepo.FetchError{SeriesID: id, StatusCode: se.StatusCode, Err: fmt.Errorf("%w: %s", drepo.ErrUnknownSeries, msg)}
		default:
			return &drepo.FetchError{SeriesID: id, StatusCode: se.StatusCode, Err: errors.New(msg)}
		}
	}

	return &drepo.FetchError{SeriesID: id, Err: c.redact(err)}
}

// redact returns err with the api key removed from its message. Wrapping
// errors format their text eagerly, so the url.Error is rebuilt rather
// than edited in place.
func (c *Client) redact(err error) error {
	if c.apiKey == "" {
		return err
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		err = &url.Error{Op: ue.Op, URL: c.scrub(ue.URL), Err: ue.Err}
	}
	if msg := err.Error(); msg != c.scrub(msg) {
		return errors.New(c.scrub(msg))
	}
	return err
}

func (c *Client) scrub(s string) string {
	s = strings.ReplaceAll(s, url.QueryEscape(c.apiKey), redacted)
	return strings.ReplaceAll(s, c.apiKey, redacted)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.backoffMin << (attempt - 1)
	if d <= 0 || d > c.backoffMax {
		d = c.backoffMax
	}
	// up to 10% jitter
	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}

func (c *Client) burst() float64 {
	b := c.requestsPerMinute / 60
	if b < 1 {
		return 1
	}
	return b
}

func (c *Client) observe(start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordLatency("fred_fetch", time.Since(start).Seconds())
	}
}

func (c *Client) recordError() {
	if c.metrics != nil {
		c.metrics.RecordError("fred_fetch")
	}
}

func toSeries(id string, obs []observation) (*models.TimeSeries, error) {
	s := &models.TimeSeries{ID: id, Observations: make([]models.Observation, 0, len(obs))}
	for _, o := range obs {
		d, err := time.Parse(models.DateLayout, o.Date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", o.Date, err)
		}
		v := models.Missing()
		if raw := strings.TrimSpace(o.Value); raw != missingValue && raw != "" {
			v, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("parse value %q at %s: %w", o.Value, o.Date, err)
			}
		}
		s.Observations = append(s.Observations, models.Observation{Date: d, Value: v})
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
