package analytics

import (
	"time"

	"github.com/sjfremen/fred/internal/domain/repository"
	"github.com/sjfremen/fred/internal/domain/service"
)

// MonthlyTable is the name of the macro regime table.
const MonthlyTable = "monthly"

// RegimeThreshold is the percent level separating hot from cold readings.
const RegimeThreshold = 2.0

// MonthlyRegimes are the classification variants of the monthly table.
var MonthlyRegimes = []RegimeVariant{
	{Column: "regime_gdp_cpi", Growth: "gdp_yoy", Inflation: "cpi_yoy", Threshold: RegimeThreshold, Lag: 1},
	{Column: "regime_gdp_corepce", Growth: "gdp_yoy", Inflation: "core_pce_yoy", Threshold: RegimeThreshold, Lag: 1},
	{Column: "regime_indpro_cpi", Growth: "indpro_yoy", Inflation: "cpi_yoy", Threshold: RegimeThreshold, Lag: 1},
	{Column: "regime_indpro_corepce", Growth: "indpro_yoy", Inflation: "core_pce_yoy", Threshold: RegimeThreshold, Lag: 1},
	{Column: "regime_gdp_cpi_mom", Growth: "gdp_yoy", Inflation: "cpi_mom_annualized", Threshold: RegimeThreshold, Lag: 1},
	{Column: "regime_momentum", Growth: "indpro_yoy_chg", Inflation: "cpi_yoy_chg", Threshold: 0, Lag: 1},
}

// MonthlyColumns is the column order of fred_monthly.csv after the date.
var MonthlyColumns = func() []string {
	cols := []string{
		"indpro", "cpi", "core_pce", "gdp", "unrate", "10y2y", "SP500",
		"indpro_yoy", "cpi_yoy", "core_pce_yoy", "gdp_yoy", "sp500_yoy",
		"cpi_mom", "cpi_mom_annualized",
		"unrate_change", "10y2y_change",
		"indpro_yoy_chg", "cpi_yoy_chg",
	}
	for _, v := range MonthlyRegimes {
		cols = append(cols, v.Column)
	}
	return cols
}()

// NewMonthlyRecipe builds the macro regime table on the CPI calendar,
// resampled to calendar month ends. Quarterly GDP is carried forward.
func NewMonthlyRecipe(startAfter time.Time) *TableRecipe {
	const yoy = 12
	steps := []Step{
		pctStep("indpro_yoy", "indpro", yoy),
		pctStep("cpi_yoy", "cpi", yoy),
		pctStep("core_pce_yoy", "core_pce", yoy),
		pctStep("gdp_yoy", "gdp", yoy),
		pctStep("sp500_yoy", "SP500", yoy),
		pctStep("cpi_mom", "cpi", 1),
		annualizeStep("cpi_mom_annualized", "cpi_mom", 12),
		diffStep("unrate_change", "unrate", yoy),
		diffStep("10y2y_change", "10y2y", yoy),
		diffStep("indpro_yoy_chg", "indpro_yoy", 1),
		diffStep("cpi_yoy_chg", "cpi_yoy", 1),
	}
	regimes := make([]string, 0, len(MonthlyRegimes))
	for _, v := range MonthlyRegimes {
		steps = append(steps, regimeStep(v))
		regimes = append(regimes, v.Column)
	}

	return &TableRecipe{
		name:   MonthlyTable,
		freq:   repository.Monthly,
		anchor: repository.SeriesRequest{ID: "CPIAUCSL"},
		series: []service.SeriesSpec{
			spec("indpro", "INDPRO"),
			spec("cpi", "CPIAUCSL"),
			spec("core_pce", "PCEPILFE"),
			spec("gdp", "GDPC1"),
			spec("unrate", "UNRATE"),
			spec("10y2y", "T10Y2Y"),
			spec("SP500", "SP500"),
		},
		steps:      steps,
		columns:    MonthlyColumns,
		startAfter: startAfter,
		highlights: []service.Highlight{
			{Label: "CPI", Column: "cpi", Change: "cpi_yoy"},
			{Label: "Core PCE", Column: "core_pce", Change: "core_pce_yoy"},
			{Label: "Real GDP", Column: "gdp", Change: "gdp_yoy"},
			{Label: "Industrial Production", Column: "indpro", Change: "indpro_yoy"},
			{Label: "Unemployment Rate", Column: "unrate", Change: "unrate_change"},
			{Label: "S&P 500", Column: "SP500", Change: "sp500_yoy"},
		},
		regimes: regimes,
	}
}
