package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjfremen/fred/internal/domain/models"
	"github.com/sjfremen/fred/internal/domain/service"
	"github.com/sjfremen/fred/internal/repository"
	"github.com/sjfremen/fred/internal/services/analytics"
	"github.com/sjfremen/fred/internal/usecase"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func writeTable(t *testing.T, path string, r service.Recipe, start time.Time, rows int, step func(time.Time) time.Time) {
	t.Helper()
	dates := make([]time.Time, rows)
	for i, d := 0, start; i < rows; i, d = i+1, step(d) {
		dates[i] = d
	}
	tbl := models.NewTable(dates)
	regimes := make(map[string]bool)
	for _, c := range r.RegimeColumns() {
		regimes[c] = true
	}
	for _, c := range r.Columns() {
		if regimes[c] {
			labels := make([]string, rows)
			for i := range labels {
				labels[i] = string(models.RegimeStagflation)
			}
			require.NoError(t, tbl.AddLabels(c, labels))
			continue
		}
		vals := make([]float64, rows)
		for i := range vals {
			vals[i] = float64(i) + 0.5
		}
		vals[0] = models.Missing()
		require.NoError(t, tbl.AddNumeric(c, vals))
	}
	require.NoError(t, repository.NewCSVTable().Write(context.Background(), path, tbl))
}

func newTestEcho(t *testing.T, rate, burst float64) *echo.Echo {
	t.Helper()
	dir := t.TempDir()
	wr := analytics.NewWeeklyRecipe(time.Time{})
	mr := analytics.NewMonthlyRecipe(time.Time{})
	wp, mp := filepath.Join(dir, "fred_weekly.csv"), filepath.Join(dir, "fred_monthly.csv")
	writeTable(t, wp, wr, time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC), 80, func(d time.Time) time.Time { return d.AddDate(0, 0, 7) })
	writeTable(t, mp, mr, time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), 20, func(d time.Time) time.Time {
		return time.Date(d.Year(), d.Month()+2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	})

	loader := repository.NewTableLoader(repository.NewCSVTable(), 0, nil)
	dash := usecase.NewDashboard(loader, []usecase.Target{
		{Recipe: wr, Output: wp},
		{Recipe: mr, Output: mp},
	}, nil)

	e := echo.New()
	NewDashboardEchoHandler(nil, dash, "2010-01-01", rate, burst).RegisterRoutes(e)
	return e
}

func get(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestTablesEndpoint(t *testing.T) {
	e := newTestEcho(t, 0, 0)
	rec, env := get(t, e, "/api/tables")
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Rows  []TableDTO `json:"rows"`
		Total int64      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, "weekly", list.Rows[0].Name)
	assert.Equal(t, 80, list.Rows[0].Rows)
	assert.Equal(t, "2020-01-05", list.Rows[0].FirstDate)
	assert.Equal(t, analytics.MonthlyColumns, list.Rows[1].Columns)
}

func TestLatestEndpoint(t *testing.T) {
	e := newTestEcho(t, 0, 0)
	rec, env := get(t, e, "/api/tables/weekly/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto LatestDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, 52, dto.Lookback)
	require.Len(t, dto.Metrics, 6)
	m := dto.Metrics[0]
	require.NotNil(t, m.Latest)
	assert.Equal(t, 79.5, *m.Latest)
	require.NotNil(t, m.Previous)
	assert.Equal(t, 27.5, *m.Previous)

	_, env = get(t, e, "/api/tables/monthly/latest?start=2020-06-01")
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, 12, dto.Lookback)
	assert.Equal(t, "Stagflation", dto.Regimes["regime_gdp_cpi"])
}

func TestSeriesEndpoint(t *testing.T) {
	e := newTestEcho(t, 0, 0)
	rec, env := get(t, e, "/api/tables/weekly/series?columns=net_liq,btc&start=2021-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto SeriesDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	require.NotEmpty(t, dto.Dates)
	assert.Equal(t, "2021-01-03", dto.Dates[0])
	assert.Len(t, dto.Series["net_liq"], len(dto.Dates))
	assert.Len(t, dto.Series["btc"], len(dto.Dates))

	// the first row of every numeric column is missing
	_, env = get(t, e, "/api/tables/weekly/series?columns=net_liq")
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Nil(t, dto.Series["net_liq"][0])
	assert.NotNil(t, dto.Series["net_liq"][1])
}

func TestEndpointErrors(t *testing.T) {
	e := newTestEcho(t, 0, 0)
	cases := []struct {
		target string
		status int
	}{
		{"/api/tables/daily/latest", http.StatusNotFound},
		{"/api/tables/weekly/series?columns=nope", http.StatusNotFound},
		{"/api/tables/weekly/series", http.StatusBadRequest},
		{"/api/tables/weekly/latest?start=yesterday", http.StatusBadRequest},
		{"/api/tables/weekly/series?columns=,,", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			rec, env := get(t, e, tc.target)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status, env.Status)
		})
	}
}

func TestNotFoundCarriesTableParam(t *testing.T) {
	e := newTestEcho(t, 0, 0)
	for _, target := range []string{
		"/api/tables/daily/latest",
		"/api/tables/weekly/series?columns=nope",
	} {
		rec, env := get(t, e, target)
		require.Equal(t, http.StatusNotFound, rec.Code, target)
		var errs []struct {
			Code   string                 `json:"code"`
			Params map[string]interface{} `json:"params"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &errs), target)
		require.Len(t, errs, 1, target)
		assert.Equal(t, "ERR_NOT_FOUND", errs[0].Code)
		assert.NotEmpty(t, errs[0].Params["table"], target)
	}
	_, env := get(t, e, "/api/tables/daily/latest")
	assert.Contains(t, string(env.Data), `"table":"daily"`)
}

func TestHealthAndRateLimit(t *testing.T) {
	e := newTestEcho(t, 0.001, 1)
	rec, _ := get(t, e, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, e, "/api/tables")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = get(t, e, "/api/tables")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// health checks are not limited
	rec, _ = get(t, e, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
