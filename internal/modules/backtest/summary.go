package backtest

import (
	"math"

	"github.com/aristath/harvest/pkg/formulas"
)

// Summary condenses a run into headline numbers. Money amounts are nominal
// unless prefixed with real (inflation adjusted).
type Summary struct {
	Months                 int     `json:"months"`
	Years                  int     `json:"years"`
	FinalPortfolioGrowth   Ratio   `json:"final_infl_adj_portfolio_growth"`
	RealCAGR               Ratio   `json:"real_cagr"`
	MeanRealAnnualReturn   Ratio   `json:"mean_real_annual_return"`
	RealAnnualReturnStdDev Ratio   `json:"real_annual_return_stddev"`
	MaxDrawdown            float64 `json:"max_drawdown"`
	TotalTaxes             float64 `json:"total_taxes"`
	AverageTaxRatio        Ratio   `json:"average_tax_ratio"`
	FirstMonthlyIncome     Ratio   `json:"first_year_monthly_income"`
	LastMonthlyIncome      Ratio   `json:"last_year_monthly_income"`
	TrailingRealIncomeSMA  Ratio   `json:"trailing_12m_real_income_sma"`
}

// Summarize derives a Summary from the monthly and yearly tables of one run.
func Summarize(monthly []MonthState, yearly []YearRecord) Summary {
	nan := Ratio(math.NaN())
	s := Summary{
		Months:                 len(monthly),
		Years:                  len(yearly),
		FinalPortfolioGrowth:   nan,
		RealCAGR:               nan,
		MeanRealAnnualReturn:   nan,
		RealAnnualReturnStdDev: nan,
		AverageTaxRatio:        nan,
		FirstMonthlyIncome:     nan,
		LastMonthlyIncome:      nan,
		TrailingRealIncomeSMA:  nan,
	}
	if len(monthly) == 0 {
		return s
	}

	realValues := make([]float64, len(monthly))
	realIncome := make([]float64, len(monthly))
	for i, m := range monthly {
		realValues[i] = m.InflAdjPortfolioValue
		realIncome[i] = m.InflAdjNetIncome
		s.TotalTaxes += m.DividendTax + m.CapitalGainsTax
	}

	s.FinalPortfolioGrowth = monthly[len(monthly)-1].InflAdjPortfolioGrowth
	s.MaxDrawdown = formulas.MaxDrawdown(realValues)
	if sma := formulas.CalculateSMA(realIncome, monthsPerYear); sma != nil {
		s.TrailingRealIncomeSMA = Ratio(*sma)
	}

	if len(yearly) == 0 {
		return s
	}

	// year-end values preceded by the starting value
	yearEnds := make([]float64, 0, len(yearly)+1)
	yearEnds = append(yearEnds, monthly[0].InflAdjPortfolioValue)
	taxRatios := make([]float64, 0, len(yearly))
	for _, y := range yearly {
		yearEnds = append(yearEnds, y.InflAdjPortfolioValue)
		taxRatios = append(taxRatios, float64(y.TaxRatio))
	}

	if cagr := formulas.CalculateCAGR(yearEnds[0], yearEnds[len(yearEnds)-1], float64(len(yearly))); cagr != nil {
		s.RealCAGR = Ratio(*cagr)
	}

	returns := formulas.CalculateReturns(yearEnds)
	s.MeanRealAnnualReturn = Ratio(formulas.Mean(returns))
	if len(returns) > 1 {
		s.RealAnnualReturnStdDev = Ratio(formulas.StdDev(returns))
	}

	if finiteRatios := formulas.Finite(taxRatios); len(finiteRatios) > 0 {
		s.AverageTaxRatio = Ratio(formulas.Mean(finiteRatios))
	}

	s.FirstMonthlyIncome = Ratio(yearly[0].MonthlyIncome)
	s.LastMonthlyIncome = Ratio(yearly[len(yearly)-1].MonthlyIncome)

	return s
}
