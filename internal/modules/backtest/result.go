package backtest

// Result is the wire shape of one backtested portfolio.
type Result struct {
	Name                 string       `json:"name"`
	Ticker               string       `json:"ticker"`
	StartDate            *string      `json:"start_date"`
	InitialInvestment    float64      `json:"initial_investment"`
	DividendTax          float64      `json:"dividend_tax"`
	CapitalGainsTax      float64      `json:"capital_gains_tax"`
	YearlySalePercentage float64      `json:"yearly_sale_percentage"`
	MonthlyResults       []MonthState `json:"monthly_results"`
	YearlyResults        []YearRecord `json:"yearly_results"`
	Summary              *Summary     `json:"summary,omitempty"`
	Error                string       `json:"error,omitempty"`
	ErrorKind            string       `json:"error_kind,omitempty"`
}

// NewResult builds the result of a completed portfolio.
func NewResult(p *Portfolio) Result {
	r := resultHeader(p.config)
	r.MonthlyResults = p.monthly
	r.YearlyResults = p.yearly
	if p.HasResults() {
		summary := Summarize(p.monthly, p.yearly)
		r.Summary = &summary
	}
	return r
}

// ErrorResult builds the result of a portfolio that failed.
func ErrorResult(cfg PortfolioConfig, err error) Result {
	r := resultHeader(cfg)
	r.Error = err.Error()
	r.ErrorKind = ErrorKind(err)
	return r
}

func resultHeader(cfg PortfolioConfig) Result {
	return Result{
		Name:                 cfg.DisplayName(),
		Ticker:               cfg.Ticker,
		StartDate:            cfg.StartDateString(),
		InitialInvestment:    cfg.InitialInvestment,
		DividendTax:          cfg.DividendTaxRate,
		CapitalGainsTax:      cfg.CapitalGainsTaxRate,
		YearlySalePercentage: cfg.YearlySalePercentage,
	}
}
