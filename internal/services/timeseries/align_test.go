package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjfremen/fred/internal/domain/models"
	"github.com/sjfremen/fred/internal/domain/repository"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func series(id string, pts ...interface{}) *models.TimeSeries {
	s := &models.TimeSeries{ID: id}
	for i := 0; i < len(pts); i += 2 {
		s.Observations = append(s.Observations, models.Observation{Date: day(pts[i].(string)), Value: pts[i+1].(float64)})
	}
	return s
}

func assertValues(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want missing, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-12, "index %d", i)
	}
}

var nan = math.NaN()

func TestAlignForwardFillsAsOf(t *testing.T) {
	anchor := series("FF", "2024-01-01", 5.0, "2024-01-02", 5.0, "2024-01-04", 5.0, "2024-01-05", nan)
	axis, err := Axis(anchor)
	require.NoError(t, err)
	require.Len(t, axis, 4, "dates with missing anchor values stay on the axis")

	weekly := series("WALCL", "2024-01-02", 100.0)
	// 2024-01-03 is not on the axis; it is still picked up as of 2024-01-04
	offGrid := series("X", "2024-01-01", 1.0, "2024-01-02", nan, "2024-01-03", 3.0)
	tbl, err := Align(axis, map[string]*models.TimeSeries{"assets": weekly, "x": offGrid}, []string{"assets", "x"})
	require.NoError(t, err)

	assert.Equal(t, []string{"assets", "x"}, tbl.Names())
	assets, _ := tbl.Numeric("assets")
	assertValues(t, []float64{nan, 100, 100, 100}, assets)
	x, _ := tbl.Numeric("x")
	assertValues(t, []float64{1, 1, 3, 3}, x)
}

func TestAlignNeverBackFills(t *testing.T) {
	axis := []time.Time{day("2020-01-01"), day("2020-02-01"), day("2020-03-01")}
	s := series("S", "2020-02-15", 7.0)
	tbl, err := Align(axis, map[string]*models.TimeSeries{"s": s}, []string{"s"})
	require.NoError(t, err)
	v, _ := tbl.Numeric("s")
	assertValues(t, []float64{nan, nan, 7}, v)
}

func TestAlignErrors(t *testing.T) {
	_, err := Align(nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyAxis)

	axis := []time.Time{day("2020-01-01")}
	_, err = Align(axis, map[string]*models.TimeSeries{}, []string{"missing"})
	assert.ErrorIs(t, err, ErrMissingSeries)

	bad := series("B", "2020-01-02", 1.0, "2020-01-01", 2.0)
	_, err = Align(axis, map[string]*models.TimeSeries{"b": bad}, []string{"b"})
	assert.Error(t, err)

	_, err = Axis(&models.TimeSeries{ID: "FF"})
	assert.ErrorIs(t, err, ErrEmptyAxis)
}

func TestPeriodEnd(t *testing.T) {
	cases := []struct {
		in   string
		f    repository.Frequency
		want string
	}{
		{"2024-01-01", repository.Weekly, "2024-01-07"}, // Monday
		{"2024-01-07", repository.Weekly, "2024-01-07"}, // Sunday
		{"2024-01-06", repository.Weekly, "2024-01-07"},
		{"2024-12-30", repository.Weekly, "2025-01-05"},
		{"2024-02-10", repository.Monthly, "2024-02-29"},
		{"2023-02-01", repository.Monthly, "2023-02-28"},
		{"2024-12-31", repository.Monthly, "2024-12-31"},
	}
	for _, tc := range cases {
		got := PeriodEnd(day(tc.in), tc.f)
		assert.Equal(t, tc.want, got.Format(models.DateLayout), "%s %s", tc.in, tc.f)
	}
}

func TestResampleWeeklyLastValue(t *testing.T) {
	dates := []time.Time{day("2024-01-01"), day("2024-01-03"), day("2024-01-05"), day("2024-01-22")}
	tbl := models.NewTable(dates)
	require.NoError(t, tbl.AddNumeric("v", []float64{1, 2, nan, 9}))
	require.NoError(t, tbl.AddLabels("l", []string{"a", "", "", "b"}))

	out, err := Resample(tbl, repository.Weekly)
	require.NoError(t, err)

	var got []string
	for _, d := range out.Dates {
		got = append(got, d.Format(models.DateLayout))
	}
	assert.Equal(t, []string{"2024-01-07", "2024-01-14", "2024-01-21", "2024-01-28"}, got)

	v, _ := out.Numeric("v")
	assertValues(t, []float64{2, nan, nan, 9}, v)
	l, _ := out.Labels("l")
	assert.Equal(t, []string{"a", "", "", "b"}, l)
}

func TestResampleMonthly(t *testing.T) {
	dates := []time.Time{day("2023-12-01"), day("2024-01-01"), day("2024-01-31"), day("2024-03-01")}
	tbl := models.NewTable(dates)
	require.NoError(t, tbl.AddNumeric("cpi", []float64{300, 301, 302, 304}))

	out, err := Resample(tbl, repository.Monthly)
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())
	assert.Equal(t, "2024-02-29", out.Dates[2].Format(models.DateLayout))

	v, _ := out.Numeric("cpi")
	assertValues(t, []float64{300, 302, nan, 304}, v)
}

func TestResampleRejects(t *testing.T) {
	tbl := models.NewTable([]time.Time{day("2024-01-02"), day("2024-01-01")})
	require.NoError(t, tbl.AddNumeric("v", []float64{1, 2}))
	_, err := Resample(tbl, repository.Weekly)
	assert.Error(t, err)

	_, err = Resample(tbl, repository.Frequency("daily"))
	assert.Error(t, err)

	out, err := Resample(models.NewTable(nil), repository.Monthly)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}
