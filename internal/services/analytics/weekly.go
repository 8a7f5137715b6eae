package analytics

import (
	"time"

	"github.com/sjfremen/fred/internal/domain/repository"
	"github.com/sjfremen/fred/internal/domain/service"
)

// WeeklyTable is the name of the net liquidity table.
const WeeklyTable = "weekly"

// WeeklyColumns is the column order of fred_weekly.csv after the date.
var WeeklyColumns = []string{
	"assets", "tga", "repo", "btc", "rates2y", "nasdaq", "SP500", "10y2y",
	"net_liq",
	"net_liq_change", "btc_change", "rates2y_change", "nasdaq_change", "sp500_change",
	"10y2y_change",
	"corr_netliq_btc", "corr_netliq_nasdaq", "corr_netliq_sp500",
}

// NewWeeklyRecipe builds the net liquidity table: daily and weekly series on
// the federal funds calendar, resampled to weeks ending Sunday.
func NewWeeklyRecipe(startAfter time.Time) *TableRecipe {
	const yoy = 52
	return &TableRecipe{
		name:   WeeklyTable,
		freq:   repository.Weekly,
		anchor: repository.SeriesRequest{ID: "FF"},
		series: []service.SeriesSpec{
			spec("assets", "WALCL"),
			spec("tga", "WTREGEN"),
			spec("repo", "RRPONTSYD"),
			spec("btc", "CBBTCUSD"),
			spec("rates2y", "DGS2"),
			spec("nasdaq", "NASDAQ100"),
			spec("SP500", "SP500"),
			spec("10y2y", "T10Y2Y"),
		},
		steps: []Step{
			netLiquidityStep("net_liq", "assets", "tga", "repo"),
			pctStep("net_liq_change", "net_liq", yoy),
			pctStep("btc_change", "btc", yoy),
			pctStep("rates2y_change", "rates2y", yoy),
			pctStep("nasdaq_change", "nasdaq", yoy),
			pctStep("sp500_change", "SP500", yoy),
			diffStep("10y2y_change", "10y2y", yoy),
			corrStep("corr_netliq_btc", "net_liq_change", "btc_change", CorrelationWindow),
			corrStep("corr_netliq_nasdaq", "net_liq_change", "nasdaq_change", CorrelationWindow),
			corrStep("corr_netliq_sp500", "net_liq_change", "sp500_change", CorrelationWindow),
		},
		columns:    WeeklyColumns,
		startAfter: startAfter,
		highlights: []service.Highlight{
			{Label: "BTC Price", Column: "btc", Change: "btc_change"},
			{Label: "Nasdaq Price", Column: "nasdaq", Change: "nasdaq_change"},
			{Label: "S&P 500 Price", Column: "SP500", Change: "sp500_change"},
			{Label: "Net Liquidity", Column: "net_liq", Change: "net_liq_change"},
			{Label: "2Y Treasury Yield", Column: "rates2y", Change: "rates2y_change"},
			{Label: "10Y-2Y Spread", Column: "10y2y", Change: "10y2y_change"},
		},
	}
}
