package backtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/harvest/internal/domain"
)

// Portfolio holds one backtest configuration and, after Run, its results.
// A Portfolio is owned by a single goroutine.
type Portfolio struct {
	config  PortfolioConfig
	monthly []MonthState
	yearly  []YearRecord
}

// NewPortfolio creates a portfolio without results.
func NewPortfolio(cfg PortfolioConfig) *Portfolio {
	return &Portfolio{config: cfg}
}

// Config returns a copy of the configuration.
func (p *Portfolio) Config() PortfolioConfig {
	return p.config
}

// Monthly returns the monthly table, nil before a successful Run.
func (p *Portfolio) Monthly() []MonthState {
	return p.monthly
}

// Yearly returns the yearly table, nil before a successful Run.
func (p *Portfolio) Yearly() []YearRecord {
	return p.yearly
}

// HasResults reports whether Run has completed successfully.
func (p *Portfolio) HasResults() bool {
	return p.monthly != nil
}

// Run fetches the series for the configured ticker and recomputes both tables.
// Results are replaced only when every stage succeeds; on error the previous
// results are cleared.
func (p *Portfolio) Run(ctx context.Context, provider domain.SeriesProvider) error {
	p.monthly, p.yearly = nil, nil

	raw, err := provider.FetchSeries(ctx, p.config.Ticker)
	if err != nil {
		return fmt.Errorf("failed to fetch series for %s: %w", p.config.Ticker, err)
	}

	monthly, yearly, err := Compute(raw, p.config)
	if err != nil {
		return err
	}

	p.monthly, p.yearly = monthly, yearly
	return nil
}

// Derive returns a new portfolio with the same configuration except for the
// overridden fields. Results are never copied and the receiver is not modified.
func (p *Portfolio) Derive(o Overrides) (*Portfolio, error) {
	cfg, err := p.config.With(o)
	if err != nil {
		return nil, err
	}
	return NewPortfolio(cfg), nil
}

// Compute runs normalization, the strategy and the annual rollup over a raw series.
func Compute(raw []domain.RawObservation, cfg PortfolioConfig) ([]MonthState, []YearRecord, error) {
	series, err := Normalize(raw, cfg.StartDate)
	if err != nil {
		var emptyErr *EmptySeriesError
		if errors.As(err, &emptyErr) {
			emptyErr.Ticker = cfg.Ticker
		}
		return nil, nil, err
	}

	monthly, err := Simulate(series, cfg.StrategyParams())
	if err != nil {
		return nil, nil, err
	}

	return monthly, Annualize(monthly), nil
}
