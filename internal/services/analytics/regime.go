package analytics

import (
	"fmt"

	"github.com/sjfremen/fred/internal/domain/models"
)

// Classify places one (growth, inflation) pair in a quadrant. Both inputs
// and the threshold are in the same unit. A missing input yields RegimeUnknown.
func Classify(growth, inflation, threshold float64) models.Regime {
	if models.IsMissing(growth) || models.IsMissing(inflation) {
		return models.RegimeUnknown
	}
	hot := inflation > threshold
	if growth > threshold {
		if hot {
			return models.RegimeInflation
		}
		return models.RegimeGoldilocks
	}
	if hot {
		return models.RegimeStagflation
	}
	return models.RegimeDeflation
}

// ClassifySeries applies Classify row by row.
func ClassifySeries(growth, inflation []float64, threshold float64) []models.Regime {
	out := make([]models.Regime, len(growth))
	for i := range growth {
		out[i] = Classify(growth[i], at(inflation, i), threshold)
	}
	return out
}

// RegimeVariant names the growth and inflation columns that feed one
// regime column. Inputs are fractions; Threshold is in percent.
type RegimeVariant struct {
	Column    string
	Growth    string
	Inflation string
	Threshold float64
	Lag       int
}

// Apply lags both inputs, scales them to percent and adds the label column to t.
func (v RegimeVariant) Apply(t *models.Table) error {
	g, err := t.Numeric(v.Growth)
	if err != nil {
		return fmt.Errorf("regime %s: %w", v.Column, err)
	}
	inf, err := t.Numeric(v.Inflation)
	if err != nil {
		return fmt.Errorf("regime %s: %w", v.Column, err)
	}
	g = Scale(Lag(g, v.Lag), 100)
	inf = Scale(Lag(inf, v.Lag), 100)

	regimes := ClassifySeries(g, inf, v.Threshold)
	labels := make([]string, len(regimes))
	for i, r := range regimes {
		labels[i] = r.String()
	}
	return t.AddLabels(v.Column, labels)
}
