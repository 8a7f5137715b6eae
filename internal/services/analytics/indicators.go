package analytics

import (
	"math"

	"github.com/sjfremen/fred/internal/domain/models"
)

// NetLiquidityScale converts millions to billions.
const NetLiquidityScale = 1000.0

// CorrelationWindow is the trailing window of the rolling correlations.
const CorrelationWindow = 52

// NetLiquidity computes (assets - (tga*1000 + repo*1000)) / scale per row.
// Treasury and reverse-repo balances are reported in billions while total
// assets are in millions, hence the factor of 1000.
func NetLiquidity(assets, tga, repo []float64, scale float64) []float64 {
	out := make([]float64, len(assets))
	for i := range assets {
		a, g, r := assets[i], at(tga, i), at(repo, i)
		if models.IsMissing(a) || models.IsMissing(g) || models.IsMissing(r) || scale == 0 {
			out[i] = models.Missing()
			continue
		}
		out[i] = (a - (g*1000 + r*1000)) / scale
	}
	return out
}

// PercentChange returns (v[t]-v[t-n])/v[t-n]. The result is missing for the
// first n rows and when either endpoint is missing. A zero base yields ±Inf
// (0/0 is NaN).
func PercentChange(v []float64, n int) []float64 {
	out := missing(len(v))
	for t := n; t < len(v); t++ {
		cur, base := v[t], v[t-n]
		if models.IsMissing(cur) || models.IsMissing(base) {
			continue
		}
		out[t] = (cur - base) / base
	}
	return out
}

// Diff returns v[t]-v[t-n], missing when either endpoint is.
func Diff(v []float64, n int) []float64 {
	out := missing(len(v))
	for t := n; t < len(v); t++ {
		if models.IsMissing(v[t]) || models.IsMissing(v[t-n]) {
			continue
		}
		out[t] = v[t] - v[t-n]
	}
	return out
}

// Annualize compounds a per-period rate over periods: (1+v)^periods - 1.
func Annualize(v []float64, periods int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if models.IsMissing(x) {
			out[i] = models.Missing()
			continue
		}
		out[i] = math.Pow(1+x, float64(periods)) - 1
	}
	return out
}

// Lag shifts v forward by n rows; the first n rows become missing.
func Lag(v []float64, n int) []float64 {
	out := missing(len(v))
	for t := n; t < len(v); t++ {
		out[t] = v[t-n]
	}
	return out
}

// Scale multiplies every non-missing value by k.
func Scale(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * k
	}
	return out
}

// RollingCorrelation is the sample Pearson correlation of a and b over the
// trailing window ending at each row. A row is defined only when the whole
// window holds non-missing pairs and both sides have non-zero variance.
// Results are clamped to [-1, 1].
func RollingCorrelation(a, b []float64, window int) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := missing(len(a))
	if window < 2 {
		return out
	}
	run := 0
	for t := 0; t < n; t++ {
		if models.IsMissing(a[t]) || models.IsMissing(b[t]) {
			run = 0
			continue
		}
		run++
		if run < window {
			continue
		}
		out[t] = pearson(a[t-window+1:t+1], b[t-window+1:t+1])
	}
	return out
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return models.Missing()
	}
	// the (n-1) factors of the sample covariance and deviations cancel
	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r))
}

func missing(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = models.Missing()
	}
	return out
}

func at(v []float64, i int) float64 {
	if i >= len(v) {
		return models.Missing()
	}
	return v[i]
}
