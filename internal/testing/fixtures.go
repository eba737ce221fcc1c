package testing

import (
	"time"

	"github.com/aristath/harvest/internal/domain"
)

// FixtureStart is the first month of every generated series
var FixtureStart = time.Date(2000, time.January, 31, 0, 0, 0, 0, time.UTC)

// MonthEnds returns n consecutive month-end dates starting with start's month.
func MonthEnds(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		// day 0 of the following month is the last day of this one
		dates[i] = time.Date(start.Year(), start.Month()+time.Month(i)+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return dates
}

// FlatSeries returns n months at a constant price, no dividends and constant inflation.
func FlatSeries(n int, price float64) []domain.RawObservation {
	series := make([]domain.RawObservation, n)
	for i, ts := range MonthEnds(FixtureStart, n) {
		series[i] = domain.RawObservation{
			Timestamp:         ts,
			RawPrice:          price,
			ClosePrice:        price,
			RawInflationIndex: 170.0,
		}
	}
	return series
}

// DividendSeries returns n months at a constant price paying monthlyYield of
// the close price as a dividend every month, with CPI rising 0.2% a month.
func DividendSeries(n int, price, monthlyYield float64) []domain.RawObservation {
	series := make([]domain.RawObservation, n)
	cpi := 170.0
	for i, ts := range MonthEnds(FixtureStart, n) {
		series[i] = domain.RawObservation{
			Timestamp:         ts,
			RawPrice:          price,
			ClosePrice:        price,
			DividendAmount:    price * monthlyYield,
			RawInflationIndex: cpi,
		}
		cpi *= 1.002
	}
	return series
}

// GrowthSeries returns n months whose price compounds by monthlyGrowth, paying
// a quarterly dividend of quarterlyYield, with CPI rising 0.25% a month.
func GrowthSeries(n int, startPrice, monthlyGrowth, quarterlyYield float64) []domain.RawObservation {
	series := make([]domain.RawObservation, n)
	price := startPrice
	cpi := 170.0
	for i, ts := range MonthEnds(FixtureStart, n) {
		obs := domain.RawObservation{
			Timestamp:         ts,
			RawPrice:          price,
			ClosePrice:        price,
			RawInflationIndex: cpi,
		}
		if ts.Month()%3 == 0 {
			obs.DividendAmount = price * quarterlyYield
		}
		series[i] = obs
		price *= 1 + monthlyGrowth
		cpi *= 1.0025
	}
	return series
}

// PriceSeries builds a series from explicit prices, no dividends and constant inflation.
func PriceSeries(prices ...float64) []domain.RawObservation {
	series := make([]domain.RawObservation, len(prices))
	for i, ts := range MonthEnds(FixtureStart, len(prices)) {
		series[i] = domain.RawObservation{
			Timestamp:         ts,
			RawPrice:          prices[i],
			ClosePrice:        prices[i],
			RawInflationIndex: 200.0,
		}
	}
	return series
}
