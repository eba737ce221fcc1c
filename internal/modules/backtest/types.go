package backtest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/aristath/harvest/internal/domain"
)

// Ratio is a float that may legitimately be NaN or infinite (growth relative to
// a zero base, tax ratio of a year without income). It encodes as JSON null in
// those cases.
type Ratio float64

// Valid reports whether the ratio is a finite number.
func (r Ratio) Valid() bool {
	f := float64(r)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(r))
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// NormalizedObservation is a raw observation rescaled to the first month of the run.
type NormalizedObservation struct {
	domain.RawObservation
	Yield          float64 `json:"dividend_yield"`
	Price          float64 `json:"price"` // 100 in the first month
	InflationIndex float64 `json:"cpi"`   // 1 in the first month
}

// MonthState is one simulated month.
type MonthState struct {
	NormalizedObservation
	PercSold float64 `json:"perc_sold"`

	Shares           float64 `json:"shares"`
	CumCapitalLosses float64 `json:"cum_capital_losses"`
	CostBasisRate    float64 `json:"cost_basis_rate"`
	PortfolioValue   float64 `json:"portfolio_value"`
	GrossIncome      float64 `json:"gross_income"`
	GrossDividend    float64 `json:"gross_dividend"`
	DividendTax      float64 `json:"dividend_tax"`
	NetDividend      float64 `json:"net_dividend"`
	SharesSold       float64 `json:"shares_sold"`
	CapitalGains     float64 `json:"capital_gains"`
	CapitalGainsTax  float64 `json:"capital_gains_tax"`
	NetIncome        float64 `json:"net_income"`
	SharesPurchased  float64 `json:"shares_purchased"`

	InflAdjPortfolioValue  float64 `json:"infl_adj_portfolio_value"`
	InflAdjNetIncome       float64 `json:"infl_adj_net_income"`
	InflAdjPortfolioGrowth Ratio   `json:"infl_adj_portfolio_growth"`
	InflAdjNetIncomeGrowth Ratio   `json:"infl_adj_net_income_growth"`
}

// YearRecord rolls up twelve consecutive months.
type YearRecord struct {
	// last month of the year
	Timestamp              time.Time `json:"timestamp"`
	Price                  float64   `json:"price"`
	InflationIndex         float64   `json:"cpi"`
	Shares                 float64   `json:"shares"`
	PortfolioValue         float64   `json:"portfolio_value"`
	InflAdjPortfolioValue  float64   `json:"infl_adj_portfolio_value"`
	InflAdjPortfolioGrowth Ratio     `json:"infl_adj_portfolio_growth"`
	CostBasisRate          float64   `json:"cost_basis_rate"`

	// sums over the year
	DividendYield    float64 `json:"dividend_yield"`
	DividendTax      float64 `json:"dividend_tax"`
	NetIncome        float64 `json:"net_income"`
	InflAdjNetIncome float64 `json:"infl_adj_net_income"`
	GrossIncome      float64 `json:"gross_income"`
	CapitalGainsTax  float64 `json:"capital_gains_tax"`

	MonthlyIncome float64 `json:"infl_adj_monthly_income"`
	IncomeChange  Ratio   `json:"infl_adj_monthly_income_change"`
	TaxRatio      Ratio   `json:"tax_gross_income_ratio"`
}
