package backtest

// StrategyParams are the inputs of the monthly withdrawal strategy.
type StrategyParams struct {
	InitialInvestment   float64
	DividendTaxRate     float64
	CapitalGainsTaxRate float64
	MonthlySaleFraction float64 // yearly sale percentage / 12
}

// foldState is the accumulator carried from month to month.
type foldState struct {
	previous *MonthState
	first    *MonthState
}

// Simulate runs the withdrawal strategy over a normalized series, producing one
// MonthState per observation. Each month depends only on the previous month and,
// for growth ratios, on the first month.
//
// Every month withdraws MonthlySaleFraction of the portfolio value. Net dividends
// cover as much of it as they can; a shortfall is covered by selling shares
// (taxing realized gains with loss carryforward), a surplus buys shares at the
// current price and is blended into the cost basis.
func Simulate(series []NormalizedObservation, params StrategyParams) ([]MonthState, error) {
	months := make([]MonthState, 0, len(series))
	var acc foldState

	for i, obs := range series {
		if obs.Price == 0 {
			return nil, &ZeroPriceError{Index: i, Timestamp: obs.Timestamp}
		}

		month := simulateMonth(obs, params, acc)
		months = append(months, month)

		acc.previous = &month
		if acc.first == nil {
			first := month
			acc.first = &first
		}
	}

	return months, nil
}

func simulateMonth(obs NormalizedObservation, params StrategyParams, acc foldState) MonthState {
	m := MonthState{
		NormalizedObservation: obs,
		PercSold:              params.MonthlySaleFraction,
	}

	if p := acc.previous; p != nil {
		m.Shares = p.Shares
		m.CumCapitalLosses = p.CumCapitalLosses
		m.CostBasisRate = p.CostBasisRate
	} else {
		m.Shares = params.InitialInvestment / obs.Price
		m.CumCapitalLosses = 0
		m.CostBasisRate = obs.Price
	}

	m.PortfolioValue = m.Shares * obs.Price
	m.GrossIncome = m.PortfolioValue * params.MonthlySaleFraction

	m.GrossDividend = m.Shares * obs.Yield * obs.Price
	m.DividendTax = m.GrossDividend * params.DividendTaxRate
	m.NetDividend = m.GrossDividend * (1 - params.DividendTaxRate)

	if m.GrossIncome > m.NetDividend {
		// dividends fall short: sell shares for the rest
		shortfall := m.GrossIncome - m.NetDividend
		m.SharesSold = shortfall / obs.Price
		m.Shares -= m.SharesSold
		if m.Shares < 0 {
			// a full liquidation can undershoot zero by rounding
			m.Shares = 0
		}
		m.CapitalGains = m.SharesSold * (obs.Price - m.CostBasisRate)
		m.CapitalGainsTax, m.CumCapitalLosses = taxCapitalGains(m.CapitalGains, m.CumCapitalLosses, params.CapitalGainsTaxRate)
		m.NetIncome = m.GrossIncome - m.CapitalGainsTax
	} else {
		// dividends cover the withdrawal: reinvest the surplus
		surplus := m.NetDividend - m.GrossIncome
		m.NetIncome = m.GrossIncome
		m.SharesPurchased = surplus / obs.Price
		if held := m.Shares + m.SharesPurchased; held > 0 {
			m.CostBasisRate = (m.Shares*m.CostBasisRate + m.SharesPurchased*obs.Price) / held
		}
		m.Shares += m.SharesPurchased
	}

	m.PortfolioValue = m.Shares * obs.Price
	m.InflAdjPortfolioValue = m.PortfolioValue / obs.InflationIndex
	m.InflAdjNetIncome = m.NetIncome / obs.InflationIndex

	first := acc.first
	if first == nil {
		first = &m
	}
	m.InflAdjPortfolioGrowth = Ratio(m.InflAdjPortfolioValue / first.InflAdjPortfolioValue)
	m.InflAdjNetIncomeGrowth = Ratio(m.InflAdjNetIncome / first.InflAdjNetIncome)

	return m
}

// taxCapitalGains returns the tax due on a realized gain and the loss
// carryforward left afterwards. The branch order matters: a realized loss is
// only ever added to the carryforward, never netted in the same month.
func taxCapitalGains(gains, carriedLosses, rate float64) (tax, remainingLosses float64) {
	switch {
	case gains < 0:
		return 0, carriedLosses - gains
	case carriedLosses > 0:
		net := gains - carriedLosses
		if net < 0 {
			return 0, -net
		}
		return net * rate, 0
	default:
		return gains * rate, carriedLosses
	}
}
