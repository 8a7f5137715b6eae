package analytics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func assertValues(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want missing, got %v", i, got[i])
			continue
		}
		if math.IsInf(want[i], 0) {
			assert.Equal(t, want[i], got[i], "index %d", i)
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
	}
}

func TestNetLiquidity(t *testing.T) {
	got := NetLiquidity([]float64{9000, nan, 9000}, []float64{0.5, 0.5, nan}, []float64{0.3, 0.3, 0.3}, NetLiquidityScale)
	assertValues(t, []float64{8.2, nan, nan}, got)
}

func TestPercentChange(t *testing.T) {
	got := PercentChange([]float64{100, 110, nan, 0, 5, 10}, 1)
	assertValues(t, []float64{nan, 0.1, nan, nan, math.Inf(1), 1}, got)

	got = PercentChange([]float64{50, 60, 75}, 2)
	assertValues(t, []float64{nan, nan, 0.5}, got)
}

func TestPercentChangeMissingIffEndpointMissing(t *testing.T) {
	v := []float64{1, 2, nan, 4, 5, nan, 7, 8}
	const n = 2
	got := PercentChange(v, n)
	for i := range v {
		undefined := i < n || math.IsNaN(v[i]) || math.IsNaN(v[i-n])
		assert.Equal(t, undefined, math.IsNaN(got[i]), "index %d", i)
		if !undefined {
			assert.Equal(t, (v[i]-v[i-n])/v[i-n], got[i])
		}
	}
}

func TestPercentChangeZeroBase(t *testing.T) {
	got := PercentChange([]float64{0, 5, 0, -5, 0, 0}, 1)
	assert.True(t, math.IsInf(got[1], 1), "0 -> 5: got %v", got[1])
	assert.True(t, math.IsInf(got[3], -1), "0 -> -5: got %v", got[3])
	assert.True(t, math.IsNaN(got[5]), "0 -> 0: got %v", got[5])
	assert.Equal(t, -1.0, got[2])
}

func TestDiff(t *testing.T) {
	got := Diff([]float64{1.5, 0.5, nan, -1}, 1)
	assertValues(t, []float64{nan, -1, nan, nan}, got)
}

func TestAnnualize(t *testing.T) {
	got := Annualize([]float64{0.01, 0, nan}, 12)
	assertValues(t, []float64{math.Pow(1.01, 12) - 1, 0, nan}, got)
}

func TestLagAndScale(t *testing.T) {
	assertValues(t, []float64{nan, 1, 2}, Lag([]float64{1, 2, 3}, 1))
	assertValues(t, []float64{nan, nan, nan}, Lag([]float64{1, 2, 3}, 5))
	assertValues(t, []float64{3, nan}, Scale([]float64{0.03, nan}, 100))
}

func TestRollingCorrelationWindow(t *testing.T) {
	a := []float64{1, 2, 3, 4, nan, 5, 6, 7}
	b := []float64{2, 4, 6, 8, 10, 10, 12, 14}
	got := RollingCorrelation(a, b, 3)
	assertValues(t, []float64{nan, nan, 1, 1, nan, nan, nan, 1}, got)

	neg := RollingCorrelation([]float64{1, 2, 3, 4}, []float64{4, 3, 2, 1}, 4)
	assertValues(t, []float64{nan, nan, nan, -1}, neg)
}

func TestRollingCorrelationZeroVariance(t *testing.T) {
	got := RollingCorrelation([]float64{1, 1, 1, 1}, []float64{1, 2, 3, 4}, 3)
	assertValues(t, []float64{nan, nan, nan, nan}, got)
}

func TestRollingCorrelationSampleEstimator(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 1, 4, 3, 5}
	got := RollingCorrelation(x, y, 5)
	// sum dxdy = 8, sum dx2 = sum dy2 = 10
	assert.InDelta(t, 0.8, got[4], 1e-12)
}

func TestRollingCorrelationBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := make([]float64, 300)
	b := make([]float64, 300)
	for i := range a {
		a[i] = rng.NormFloat64()
		b[i] = 0.7*a[i] + 0.3*rng.NormFloat64()
		if i%97 == 0 {
			b[i] = nan
		}
	}
	got := RollingCorrelation(a, b, CorrelationWindow)

	defined := 0
	for i, v := range got {
		if math.IsNaN(v) {
			continue
		}
		defined++
		assert.GreaterOrEqual(t, v, -1.0, "index %d", i)
		assert.LessOrEqual(t, v, 1.0, "index %d", i)
	}
	assert.Positive(t, defined)
	for i := 1; i < CorrelationWindow; i++ {
		assert.True(t, math.IsNaN(got[i]), "row %d is inside the first window", i)
	}
}
