package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/harvest/internal/domain"
	"github.com/aristath/harvest/internal/utils"
)

// Defaults for omitted portfolio parameters
const (
	DefaultTicker               = "VTI"
	DefaultInitialInvestment    = 1000000.0
	DefaultDividendTaxRate      = 0.26
	DefaultCapitalGainsTaxRate  = 0.26
	DefaultYearlySalePercentage = 0.04
)

// PortfolioConfig describes one backtest. It is a value type: copies never share state.
type PortfolioConfig struct {
	Ticker               string
	StartDate            *time.Time
	InitialInvestment    float64
	DividendTaxRate      float64
	CapitalGainsTaxRate  float64
	YearlySalePercentage float64
	Name                 string // empty means "use the ticker"
}

// DefaultConfig returns the configuration used when a request omits every parameter.
func DefaultConfig() PortfolioConfig {
	return PortfolioConfig{
		Ticker:               DefaultTicker,
		InitialInvestment:    DefaultInitialInvestment,
		DividendTaxRate:      DefaultDividendTaxRate,
		CapitalGainsTaxRate:  DefaultCapitalGainsTaxRate,
		YearlySalePercentage: DefaultYearlySalePercentage,
	}
}

// DisplayName returns the name, falling back to the ticker.
func (c PortfolioConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Ticker
}

// StrategyParams converts the config to engine inputs.
func (c PortfolioConfig) StrategyParams() StrategyParams {
	return StrategyParams{
		InitialInvestment:   c.InitialInvestment,
		DividendTaxRate:     c.DividendTaxRate,
		CapitalGainsTaxRate: c.CapitalGainsTaxRate,
		MonthlySaleFraction: c.YearlySalePercentage / monthsPerYear,
	}
}

// Validate checks parameter ranges.
func (c PortfolioConfig) Validate() error {
	if c.Ticker == "" {
		return &ConfigError{Field: "ticker", Reason: "must not be empty"}
	}
	if !finite(c.InitialInvestment) || c.InitialInvestment <= 0 {
		return &ConfigError{Field: "initial_investment", Reason: "must be a positive number"}
	}
	if !finite(c.DividendTaxRate) || c.DividendTaxRate < 0 || c.DividendTaxRate > 1 {
		return &ConfigError{Field: "dividend_tax", Reason: "must be between 0 and 1"}
	}
	if !finite(c.CapitalGainsTaxRate) || c.CapitalGainsTaxRate < 0 || c.CapitalGainsTaxRate > 1 {
		return &ConfigError{Field: "capital_gains_tax", Reason: "must be between 0 and 1"}
	}
	if !finite(c.YearlySalePercentage) || c.YearlySalePercentage < 0 {
		return &ConfigError{Field: "yearly_sale_percentage", Reason: "must not be negative"}
	}
	// more than the whole holding per month
	if c.YearlySalePercentage > monthsPerYear {
		return &ConfigError{Field: "yearly_sale_percentage", Reason: "must not exceed 12 (the whole portfolio every month)"}
	}
	return nil
}

// StartDateString formats the start date for results, nil when unset.
func (c PortfolioConfig) StartDateString() *string {
	if c.StartDate == nil {
		return nil
	}
	s := c.StartDate.Format(domain.DateLayout)
	return &s
}

// Overrides is a sparse set of portfolio parameters. Nil fields keep the base value.
// It is also the wire shape of one portfolio in a backtest request.
type Overrides struct {
	Ticker               *string  `json:"ticker,omitempty"`
	StartDate            *string  `json:"start_date,omitempty"`
	InitialInvestment    *float64 `json:"initial_investment,omitempty"`
	DividendTax          *float64 `json:"dividend_tax,omitempty"`
	CapitalGainsTax      *float64 `json:"capital_gains_tax,omitempty"`
	YearlySalePercentage *float64 `json:"yearly_sale_percentage,omitempty"`
	Name                 *string  `json:"name,omitempty"`
}

// With returns a copy of c with the overrides applied and validated.
// The returned config carries every override that could be applied even when
// an error is returned, so failures can still be reported by name and ticker.
func (c PortfolioConfig) With(o Overrides) (PortfolioConfig, error) {
	out := c
	if c.StartDate != nil {
		start := *c.StartDate
		out.StartDate = &start
	}

	if o.Ticker != nil {
		out.Ticker = utils.NormalizeTicker(*o.Ticker)
	}
	if o.Name != nil {
		out.Name = *o.Name
	}
	if o.InitialInvestment != nil {
		out.InitialInvestment = *o.InitialInvestment
	}
	if o.DividendTax != nil {
		out.DividendTaxRate = *o.DividendTax
	}
	if o.CapitalGainsTax != nil {
		out.CapitalGainsTaxRate = *o.CapitalGainsTax
	}
	if o.YearlySalePercentage != nil {
		out.YearlySalePercentage = *o.YearlySalePercentage
	}

	var dateErr error
	if o.StartDate != nil {
		if *o.StartDate == "" {
			out.StartDate = nil
		} else if start, err := ParseStartDate(*o.StartDate); err != nil {
			dateErr = err
		} else {
			out.StartDate = &start
		}
	}
	if dateErr != nil {
		return out, dateErr
	}

	return out, out.Validate()
}

// ParseStartDate accepts YYYY-MM-DD, YYYY-MM or RFC 3339 timestamps.
func ParseStartDate(s string) (time.Time, error) {
	for _, layout := range []string{domain.DateLayout, "2006-01", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ConfigError{Field: "start_date", Reason: fmt.Sprintf("cannot parse %q as a date", s)}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
