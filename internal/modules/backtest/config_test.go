package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "VTI", cfg.Ticker)
	assert.Equal(t, "VTI", cfg.DisplayName())
	assert.Nil(t, cfg.StartDate)
	assert.Equal(t, 1000000.0, cfg.InitialInvestment)
	assert.Equal(t, 0.26, cfg.DividendTaxRate)
	assert.Equal(t, 0.26, cfg.CapitalGainsTaxRate)
	assert.Equal(t, 0.04, cfg.YearlySalePercentage)
	assert.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.04/12, cfg.StrategyParams().MonthlySaleFraction, 1e-15)
}

func TestWith_AppliesOverrides(t *testing.T) {
	cfg, err := DefaultConfig().With(Overrides{
		Ticker:               ptr(" schd "),
		StartDate:            ptr("2015-06-01"),
		InitialInvestment:    ptr(250000.0),
		DividendTax:          ptr(0.15),
		CapitalGainsTax:      ptr(0.2),
		YearlySalePercentage: ptr(0.035),
		Name:                 ptr("Dividend growth"),
	})
	require.NoError(t, err)

	assert.Equal(t, "SCHD", cfg.Ticker)
	require.NotNil(t, cfg.StartDate)
	assert.Equal(t, time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC), *cfg.StartDate)
	assert.Equal(t, 250000.0, cfg.InitialInvestment)
	assert.Equal(t, 0.15, cfg.DividendTaxRate)
	assert.Equal(t, 0.2, cfg.CapitalGainsTaxRate)
	assert.Equal(t, 0.035, cfg.YearlySalePercentage)
	assert.Equal(t, "Dividend growth", cfg.DisplayName())
	assert.Equal(t, "2015-06-01", *cfg.StartDateString())
}

func TestWith_EmptyStartDateClears(t *testing.T) {
	base, err := DefaultConfig().With(Overrides{StartDate: ptr("2010-01")})
	require.NoError(t, err)
	require.NotNil(t, base.StartDate)

	cleared, err := base.With(Overrides{StartDate: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.StartDate)
	assert.NotNil(t, base.StartDate)
}

func TestWith_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides Overrides
		field     string
	}{
		{"blank ticker", Overrides{Ticker: ptr("  ")}, "ticker"},
		{"zero investment", Overrides{InitialInvestment: ptr(0.0)}, "initial_investment"},
		{"negative investment", Overrides{InitialInvestment: ptr(-5.0)}, "initial_investment"},
		{"dividend tax above one", Overrides{DividendTax: ptr(1.5)}, "dividend_tax"},
		{"negative capital gains tax", Overrides{CapitalGainsTax: ptr(-0.1)}, "capital_gains_tax"},
		{"negative sale percentage", Overrides{YearlySalePercentage: ptr(-0.01)}, "yearly_sale_percentage"},
		{"sale percentage above twelve", Overrides{YearlySalePercentage: ptr(12.5)}, "yearly_sale_percentage"},
		{"unparseable start date", Overrides{StartDate: ptr("last tuesday")}, "start_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultConfig().With(tt.overrides)
			var configErr *ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, tt.field, configErr.Field)
			assert.Equal(t, ErrorKindInvalidConfig, ErrorKind(err))
		})
	}
}

func TestWith_FullMonthlySaleIsValid(t *testing.T) {
	cfg, err := DefaultConfig().With(Overrides{YearlySalePercentage: ptr(12.0)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.StrategyParams().MonthlySaleFraction)
}

func TestWith_InvalidKeepsIdentity(t *testing.T) {
	cfg, err := DefaultConfig().With(Overrides{Ticker: ptr("QQQ"), Name: ptr("tech"), DividendTax: ptr(2.0)})
	require.Error(t, err)
	assert.Equal(t, "QQQ", cfg.Ticker)
	assert.Equal(t, "tech", cfg.DisplayName())
}

func TestParseStartDate(t *testing.T) {
	for _, s := range []string{"2001-02-03", "2001-02-03T00:00:00Z"} {
		d, err := ParseStartDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC), d)
	}

	d, err := ParseStartDate("2001-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2001, 2, 1, 0, 0, 0, 0, time.UTC), d)
}
