package backtest

import (
	"math"
	"time"

	"github.com/aristath/harvest/internal/domain"
	"github.com/shopspring/decimal"
)

// normalizationPlaces matches the precision the series has always been rounded to
const normalizationPlaces = 4

// Normalize drops observations before startDate (when set) and rescales price
// to 100 and the inflation index to 1 at the first remaining observation.
func Normalize(raw []domain.RawObservation, startDate *time.Time) ([]NormalizedObservation, error) {
	if len(raw) == 0 {
		return nil, &EmptySeriesError{StartDate: startDate}
	}

	filtered := raw
	if startDate != nil {
		first := len(raw)
		for i, obs := range raw {
			if !obs.Timestamp.Before(*startDate) {
				first = i
				break
			}
		}
		filtered = raw[first:]
	}
	if len(filtered) == 0 {
		return nil, &EmptySeriesError{StartDate: startDate}
	}

	basePrice := filtered[0].RawPrice
	if basePrice == 0 {
		return nil, &InvalidBaseValueError{Field: "raw_price", Index: 0, Value: basePrice}
	}
	baseCPI := filtered[0].RawInflationIndex
	if baseCPI == 0 {
		return nil, &InvalidBaseValueError{Field: "raw_cpi", Index: 0, Value: baseCPI}
	}

	out := make([]NormalizedObservation, len(filtered))
	for i, obs := range filtered {
		cpi := round(obs.RawInflationIndex / baseCPI)
		if cpi <= 0 {
			return nil, &InvalidBaseValueError{Field: "raw_cpi", Index: i, Value: obs.RawInflationIndex}
		}
		out[i] = NormalizedObservation{
			RawObservation: obs,
			Yield:          obs.DividendYield(),
			Price:          round(obs.RawPrice / basePrice * 100),
			InflationIndex: cpi,
		}
	}

	return out, nil
}

// round applies banker's rounding to normalizationPlaces decimals.
func round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).RoundBank(normalizationPlaces).InexactFloat64()
}
