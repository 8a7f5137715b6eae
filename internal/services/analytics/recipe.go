package analytics

import (
	"fmt"
	"time"

	"github.com/sjfremen/fred/internal/domain/models"
	"github.com/sjfremen/fred/internal/domain/repository"
	"github.com/sjfremen/fred/internal/domain/service"
)

// Step adds one or more derived columns to a table.
type Step func(t *models.Table) error

// TableRecipe is a data-driven service.Recipe: the derivation is an ordered
// list of steps, each reading only columns produced before it.
type TableRecipe struct {
	name       string
	freq       repository.Frequency
	anchor     repository.SeriesRequest
	series     []service.SeriesSpec
	steps      []Step
	columns    []string
	startAfter time.Time
	highlights []service.Highlight
	regimes    []string
}

var _ service.Recipe = (*TableRecipe)(nil)

func (r *TableRecipe) Name() string { return r.name }
func (r *TableRecipe) Frequency() repository.Frequency { return r.freq }
func (r *TableRecipe) Anchor() repository.SeriesRequest { return r.anchor }
func (r *TableRecipe) Series() []service.SeriesSpec { return r.series }
func (r *TableRecipe) Columns() []string { return r.columns }
func (r *TableRecipe) StartAfter() time.Time { return r.startAfter }
func (r *TableRecipe) Highlights() []service.Highlight { return r.highlights }
func (r *TableRecipe) RegimeColumns() []string { return r.regimes }

// Derive runs every step in order.
func (r *TableRecipe) Derive(t *models.Table) error {
	for _, step := range r.steps {
		if err := step(t); err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
	}
	return nil
}

// SeriesColumns returns the raw column names in fetch order.
func (r *TableRecipe) SeriesColumns() []string {
	out := make([]string, len(r.series))
	for i, s := range r.series {
		out[i] = s.Column
	}
	return out
}

func netLiquidityStep(dst, assets, tga, repo string) Step {
	return func(t *models.Table) error {
		a, err := t.Numeric(assets)
		if err != nil {
			return err
		}
		g, err := t.Numeric(tga)
		if err != nil {
			return err
		}
		rp, err := t.Numeric(repo)
		if err != nil {
			return err
		}
		return t.AddNumeric(dst, NetLiquidity(a, g, rp, NetLiquidityScale))
	}
}

// unary derives dst from src with fn.
func unary(dst, src string, fn func([]float64) []float64) Step {
	return func(t *models.Table) error {
		v, err := t.Numeric(src)
		if err != nil {
			return err
		}
		return t.AddNumeric(dst, fn(v))
	}
}

func pctStep(dst, src string, n int) Step {
	return unary(dst, src, func(v []float64) []float64 { return PercentChange(v, n) })
}

func diffStep(dst, src string, n int) Step {
	return unary(dst, src, func(v []float64) []float64 { return Diff(v, n) })
}

func annualizeStep(dst, src string, periods int) Step {
	return unary(dst, src, func(v []float64) []float64 { return Annualize(v, periods) })
}

func corrStep(dst, a, b string, window int) Step {
	return func(t *models.Table) error {
		x, err := t.Numeric(a)
		if err != nil {
			return err
		}
		y, err := t.Numeric(b)
		if err != nil {
			return err
		}
		return t.AddNumeric(dst, RollingCorrelation(x, y, window))
	}
}

func regimeStep(v RegimeVariant) Step {
	return v.Apply
}

func spec(column, id string) service.SeriesSpec {
	return service.SeriesSpec{Column: column, Request: repository.SeriesRequest{ID: id}}
}
