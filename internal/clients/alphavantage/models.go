package alphavantage

import "time"

// MonthlyBar is one row of TIME_SERIES_MONTHLY_ADJUSTED.
type MonthlyBar struct {
	Date           time.Time `json:"date"`
	Open           float64   `json:"open"`
	High           float64   `json:"high"`
	Low            float64   `json:"low"`
	Close          float64   `json:"close"`
	AdjustedClose  float64   `json:"adjusted_close"`
	Volume         int64     `json:"volume"`
	DividendAmount float64   `json:"dividend_amount"`
}

// MonthlyAdjustedSeries is a symbol's full monthly history, oldest bar first.
type MonthlyAdjustedSeries struct {
	Symbol        string       `json:"symbol"`
	LastRefreshed time.Time    `json:"last_refreshed"`
	Bars          []MonthlyBar `json:"bars"`
}

// EconomicDataPoint is one observation of an economic indicator.
type EconomicDataPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// EconomicData is an economic indicator series, oldest point first.
type EconomicData struct {
	Name     string              `json:"name"`
	Interval string              `json:"interval"`
	Unit     string              `json:"unit"`
	Data     []EconomicDataPoint `json:"data"`
}
