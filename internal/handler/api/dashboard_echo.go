package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sjfremen/fred/internal/domain/models"
	"github.com/sjfremen/fred/internal/service/metrics"
	"github.com/sjfremen/fred/internal/service/ratelimit"
	"github.com/sjfremen/fred/internal/usecase"
	xhttp "github.com/sjfremen/fred/pkg/http"
	xlogger "github.com/sjfremen/fred/pkg/logger"
	"github.com/sjfremen/fred/pkg/util"
)

// TableDTO describes one table.
type TableDTO struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Columns   []string `json:"columns"`
	Rows      int      `json:"rows"`
	FirstDate string   `json:"first_date,omitempty"`
	LastDate  string   `json:"last_date,omitempty"`
}

// MetricDTO is one row of the latest values view. Missing values are null.
type MetricDTO struct {
	Metric   string   `json:"metric"`
	Column   string   `json:"column"`
	Latest   *float64 `json:"latest"`
	Previous *float64 `json:"previous"`
	Change   *float64 `json:"change"`
}

type LatestDTO struct {
	Table    string            `json:"table"`
	AsOf     string            `json:"as_of,omitempty"`
	Lookback int               `json:"lookback"`
	Metrics  []MetricDTO       `json:"metrics"`
	Regimes  map[string]string `json:"regimes,omitempty"`
}

type SeriesDTO struct {
	Table  string                `json:"table"`
	Dates  []string              `json:"dates"`
	Series map[string][]*float64 `json:"series"`
	Labels map[string][]string   `json:"labels,omitempty"`
}

// DashboardEchoHandler serves the persisted tables as JSON.
type DashboardEchoHandler struct {
	logger       *xlogger.Logger
	dash         *usecase.Dashboard
	defaultStart string
	rl           *ratelimit.Limiter
	rate, burst  float64
}

// NewDashboardEchoHandler creates the handler. defaultStart applies when a
// request has no start parameter; a zero rate disables per-client limiting.
func NewDashboardEchoHandler(logger *xlogger.Logger, dash *usecase.Dashboard, defaultStart string, rate, burst float64) *DashboardEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &DashboardEchoHandler{logger: logger, dash: dash, defaultStart: defaultStart, rate: rate, burst: burst}
	if rate > 0 {
		h.rl = ratelimit.New()
	}
	return h
}

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api", h.limit)
	g.GET("/tables", h.Tables)
	g.GET("/tables/:table/latest", h.Latest)
	g.GET("/tables/:table/series", h.Series)
}

func (h *DashboardEchoHandler) limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.rl != nil && !h.rl.Allow(c.RealIP(), h.burst, h.rate) {
			h.logger.Warn("dashboard rate_limited", xlogger.String("remote", c.RealIP()))
			return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
		}
		return next(c)
	}
}

func (h *DashboardEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *DashboardEchoHandler) Tables(c echo.Context) error {
	defer h.observe("tables", time.Now())
	infos, err := h.dash.Tables(c.Request().Context())
	if err != nil {
		return h.fail(c, "tables", err)
	}
	out := make([]TableDTO, len(infos))
	for i, t := range infos {
		out[i] = TableDTO{
			Name:      t.Name,
			Path:      t.Path,
			Columns:   t.Columns,
			Rows:      t.Rows,
			FirstDate: util.FormatDate(t.FirstDate),
			LastDate:  util.FormatDate(t.LastDate),
		}
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *DashboardEchoHandler) Latest(c echo.Context) error {
	defer h.observe("latest", time.Now())
	req := &models.LatestRequest{Start: h.defaultStart}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.DashboardErrors.WithLabelValues("latest").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	start, ok := util.ParseTime(req.Start)
	if !ok {
		return h.fail(c, "latest", xhttp.BadRequestErrorf("invalid start %q", req.Start))
	}

	view, err := h.dash.Latest(c.Request().Context(), req.Table, start)
	if err != nil {
		return h.fail(c, "latest", err)
	}
	dto := LatestDTO{
		Table:    view.Table,
		AsOf:     util.FormatDate(view.AsOf),
		Lookback: view.Lookback,
		Metrics:  make([]MetricDTO, len(view.Metrics)),
		Regimes:  view.Regimes,
	}
	for i, m := range view.Metrics {
		dto.Metrics[i] = MetricDTO{Metric: m.Label, Column: m.Column, Latest: m.Latest, Previous: m.Previous, Change: m.Change}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, dto)
}

func (h *DashboardEchoHandler) Series(c echo.Context) error {
	defer h.observe("series", time.Now())
	req := &models.SeriesRequest{Start: h.defaultStart}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.DashboardErrors.WithLabelValues("series").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	start, ok := util.ParseTime(req.Start)
	if !ok {
		return h.fail(c, "series", xhttp.BadRequestErrorf("invalid start %q", req.Start))
	}
	columns := xhttp.ParseList(req.Columns)
	if len(columns) == 0 {
		return h.fail(c, "series", xhttp.BadRequestError("columns required"))
	}

	view, err := h.dash.Series(c.Request().Context(), req.Table, columns, start)
	if err != nil {
		return h.fail(c, "series", err)
	}
	dto := SeriesDTO{
		Table:  view.Table,
		Dates:  make([]string, len(view.Dates)),
		Series: view.Series,
		Labels: view.Labels,
	}
	for i, d := range view.Dates {
		dto.Dates[i] = util.FormatDate(d)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, dto)
}

// fail maps usecase errors onto AppErrors and writes the response.
func (h *DashboardEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.DashboardErrors.WithLabelValues(endpoint).Inc()
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, usecase.ErrUnknownTable):
		appErr = xhttp.NotFoundErrorf("table %q not found", c.Param("table")).
			WithParam("table", c.Param("table")).
			WithError(err)
	case errors.Is(err, models.ErrUnknownColumn):
		appErr = xhttp.NotFoundError(err.Error()).
			WithParam("table", c.Param("table")).
			WithError(err)
	default:
		h.logger.Error("dashboard usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	h.logger.Debug("dashboard request rejected", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *DashboardEchoHandler) observe(endpoint string, start time.Time) {
	metrics.DashboardLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
