package models

// Regime is the four-quadrant macro state derived from a growth proxy and
// an inflation proxy.
type Regime string

const (
	RegimeUnknown     Regime = ""
	RegimeGoldilocks  Regime = "Goldilocks"
	RegimeInflation   Regime = "Inflation"
	RegimeDeflation   Regime = "Deflation"
	RegimeStagflation Regime = "Stagflation"
)

// Regimes lists the defined labels.
var Regimes = []Regime{RegimeGoldilocks, RegimeInflation, RegimeDeflation, RegimeStagflation}

// Valid reports whether r is one of the four defined labels.
func (r Regime) Valid() bool {
	switch r {
	case RegimeGoldilocks, RegimeInflation, RegimeDeflation, RegimeStagflation:
		return true
	default:
		return false
	}
}

func (r Regime) String() string { return string(r) }
