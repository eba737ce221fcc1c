package backtest

const monthsPerYear = 12

// Annualize rolls consecutive blocks of twelve months into YearRecords.
// A trailing block shorter than twelve months is dropped; fewer than twelve
// months yields an empty slice.
func Annualize(months []MonthState) []YearRecord {
	years := make([]YearRecord, 0, len(months)/monthsPerYear)

	for start := 0; start+monthsPerYear <= len(months); start += monthsPerYear {
		years = append(years, annualizeBlock(months[start:start+monthsPerYear]))
	}

	if len(years) == 0 {
		return years
	}

	base := years[0].MonthlyIncome
	for i := range years {
		years[i].IncomeChange = Ratio(years[i].MonthlyIncome / base)
	}

	return years
}

func annualizeBlock(block []MonthState) YearRecord {
	last := block[len(block)-1]
	y := YearRecord{
		Timestamp:              last.Timestamp,
		Price:                  last.Price,
		InflationIndex:         last.InflationIndex,
		Shares:                 last.Shares,
		PortfolioValue:         last.PortfolioValue,
		InflAdjPortfolioValue:  last.InflAdjPortfolioValue,
		InflAdjPortfolioGrowth: last.InflAdjPortfolioGrowth,
		CostBasisRate:          last.CostBasisRate,
	}

	for _, m := range block {
		y.DividendYield += m.Yield
		y.DividendTax += m.DividendTax
		y.NetIncome += m.NetIncome
		y.InflAdjNetIncome += m.InflAdjNetIncome
		y.GrossIncome += m.GrossIncome
		y.CapitalGainsTax += m.CapitalGainsTax
	}

	y.MonthlyIncome = y.InflAdjNetIncome / monthsPerYear
	y.TaxRatio = Ratio((y.DividendTax + y.CapitalGainsTax) / y.GrossIncome)

	return y
}
