// Package timeseries stores monthly asset and inflation series and serves
// them, merged, to the backtest engine.
package timeseries

import "time"

// AssetRow is one stored month of an asset's monthly adjusted series.
type AssetRow struct {
	Date           time.Time `json:"date"`
	Open           float64   `json:"open"`
	High           float64   `json:"high"`
	Low            float64   `json:"low"`
	Close          float64   `json:"close"`
	AdjustedClose  float64   `json:"adjusted_close"`
	Volume         int64     `json:"volume"`
	DividendAmount float64   `json:"dividend_amount"`
}

// TickerInfo summarizes what is stored for a ticker.
type TickerInfo struct {
	Ticker string    `json:"ticker"`
	Rows   int       `json:"rows"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
}
