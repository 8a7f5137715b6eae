package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjfremen/fred/internal/domain/models"
	"github.com/sjfremen/fred/internal/domain/service"
	"github.com/sjfremen/fred/internal/services/analytics"
)

type memReader map[string]*models.Table

func (m memReader) Read(_ context.Context, path string) (*models.Table, error) {
	t, ok := m[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return t, nil
}

// synthTable fills every recipe column: numbers equal the row index,
// regimes are Goldilocks except the last row, which is empty.
func synthTable(t *testing.T, r service.Recipe, start time.Time, rows int, step func(time.Time) time.Time) *models.Table {
	t.Helper()
	dates := make([]time.Time, rows)
	d := start
	for i := range dates {
		dates[i] = d
		d = step(d)
	}
	tbl := models.NewTable(dates)
	regimes := make(map[string]bool)
	for _, c := range r.RegimeColumns() {
		regimes[c] = true
	}
	for _, c := range r.Columns() {
		if regimes[c] {
			labels := make([]string, rows)
			for i := 0; i < rows-1; i++ {
				labels[i] = string(models.RegimeGoldilocks)
			}
			require.NoError(t, tbl.AddLabels(c, labels))
			continue
		}
		vals := make([]float64, rows)
		for i := range vals {
			vals[i] = float64(i)
		}
		require.NoError(t, tbl.AddNumeric(c, vals))
	}
	return tbl
}

func weekly(d time.Time) time.Time { return d.AddDate(0, 0, 7) }

func newDashboard(t *testing.T) (*Dashboard, memReader) {
	wr := analytics.NewWeeklyRecipe(time.Time{})
	mr := analytics.NewMonthlyRecipe(time.Time{})
	sunday := time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)
	monthEnd := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	reader := memReader{
		"w.csv": synthTable(t, wr, sunday, 60, weekly),
		"m.csv": synthTable(t, mr, monthEnd, 10, func(d time.Time) time.Time {
			return time.Date(d.Year(), d.Month()+2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		}),
	}
	d := NewDashboard(reader, []Target{
		{Recipe: wr, Output: "w.csv"},
		{Recipe: mr, Output: "m.csv"},
	}, nil)
	return d, reader
}

func TestDashboardTables(t *testing.T) {
	d, _ := newDashboard(t)
	infos, err := d.Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, analytics.WeeklyTable, infos[0].Name)
	assert.Equal(t, 60, infos[0].Rows)
	assert.Equal(t, analytics.WeeklyColumns, infos[0].Columns)
	assert.Equal(t, time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC), infos[0].FirstDate)
	assert.Equal(t, analytics.MonthlyTable, infos[1].Name)
}

func TestDashboardLatestWeekly(t *testing.T) {
	d, _ := newDashboard(t)
	view, err := d.Latest(context.Background(), analytics.WeeklyTable, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 52, view.Lookback)
	require.NotEmpty(t, view.Metrics)
	for _, m := range view.Metrics {
		require.NotNil(t, m.Latest)
		assert.Equal(t, 59.0, *m.Latest)
		require.NotNil(t, m.Previous)
		assert.Equal(t, 7.0, *m.Previous)
		require.NotNil(t, m.Change)
	}
	assert.Nil(t, view.Regimes)
}

func TestDashboardLatestShortHistory(t *testing.T) {
	d, _ := newDashboard(t)
	start := time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC)
	view, err := d.Latest(context.Background(), analytics.WeeklyTable, start)
	require.NoError(t, err)
	for _, m := range view.Metrics {
		assert.Nil(t, m.Previous, "fewer rows than the lookback")
		require.NotNil(t, m.Latest)
	}
}

func TestDashboardLatestMonthlyRegimes(t *testing.T) {
	d, _ := newDashboard(t)
	view, err := d.Latest(context.Background(), analytics.MonthlyTable, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 12, view.Lookback)
	for _, m := range view.Metrics {
		assert.Nil(t, m.Previous)
	}
	require.Len(t, view.Regimes, len(analytics.MonthlyRegimes))
	for _, label := range view.Regimes {
		assert.Equal(t, string(models.RegimeGoldilocks), label)
	}
}

func TestDashboardLatestEmptyWindow(t *testing.T) {
	d, _ := newDashboard(t)
	view, err := d.Latest(context.Background(), analytics.WeeklyTable, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, view.Metrics)
	assert.True(t, view.AsOf.IsZero())
}

func TestDashboardSeries(t *testing.T) {
	d, reader := newDashboard(t)
	net, _ := reader["w.csv"].Numeric("net_liq")
	net[58] = math.NaN()

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	view, err := d.Series(context.Background(), analytics.WeeklyTable, []string{"net_liq", " btc"}, start)
	require.NoError(t, err)
	require.NotEmpty(t, view.Dates)
	assert.False(t, view.Dates[0].Before(start))

	got := view.Series["net_liq"]
	require.Len(t, got, len(view.Dates))
	assert.Nil(t, got[len(got)-2])
	require.NotNil(t, got[len(got)-1])
	assert.Equal(t, 59.0, *got[len(got)-1])
	assert.Contains(t, view.Series, "btc")
}

func TestDashboardSeriesInfiniteIsNull(t *testing.T) {
	d, reader := newDashboard(t)
	btc, _ := reader["w.csv"].Numeric("btc")
	btc[59] = math.Inf(1)
	btc[58] = math.Inf(-1)

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	view, err := d.Series(context.Background(), analytics.WeeklyTable, []string{"btc"}, start)
	require.NoError(t, err)
	got := view.Series["btc"]
	require.GreaterOrEqual(t, len(got), 3)
	assert.Nil(t, got[len(got)-1])
	assert.Nil(t, got[len(got)-2])
	require.NotNil(t, got[len(got)-3])

	_, err = json.Marshal(view)
	assert.NoError(t, err)
}

func TestDashboardErrors(t *testing.T) {
	d, _ := newDashboard(t)
	ctx := context.Background()

	_, err := d.Latest(ctx, "daily", time.Time{})
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = d.Series(ctx, analytics.WeeklyTable, []string{"nope"}, time.Time{})
	assert.ErrorIs(t, err, models.ErrUnknownColumn)

	broken := NewDashboard(memReader{}, []Target{{Recipe: analytics.NewWeeklyRecipe(time.Time{}), Output: "missing.csv"}}, nil)
	_, err = broken.Tables(ctx)
	assert.Error(t, err)
}
