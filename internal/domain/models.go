// Package domain provides core domain models and types.
package domain

import "time"

// DateLayout is the storage and wire format for observation dates
const DateLayout = "2006-01-02"

// SeriesType distinguishes asset rows from inflation rows in the time-series store
type SeriesType string

const (
	// SeriesTypeAsset is a monthly adjusted price/dividend row for a ticker
	SeriesTypeAsset SeriesType = "asset"
	// SeriesTypeCPI is a monthly consumer price index row
	SeriesTypeCPI SeriesType = "cpi"
)

// CPITicker is the ticker under which inflation rows are stored
const CPITicker = "CPI"

// RawObservation is one month of un-normalized market and inflation data for an asset.
// Produced by a SeriesProvider and never mutated afterwards.
type RawObservation struct {
	Timestamp         time.Time `json:"timestamp"`
	RawPrice          float64   `json:"raw_price"`       // adjusted close, > 0
	DividendAmount    float64   `json:"dividend_amount"` // >= 0
	ClosePrice        float64   `json:"close"`           // unadjusted close, yield denominator
	RawInflationIndex float64   `json:"raw_cpi"`         // > 0
}

// DividendYield returns the dividend paid this month as a fraction of the close price.
// Zero when the close price is zero.
func (o RawObservation) DividendYield() float64 {
	if o.ClosePrice == 0 {
		return 0
	}
	return o.DividendAmount / o.ClosePrice
}

// InflationPoint is one month of the inflation index
type InflationPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
