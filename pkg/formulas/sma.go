package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateSMA returns the simple moving average over the last length values,
// or nil if there is not enough data.
func CalculateSMA(values []float64, length int) *float64 {
	if length < 1 || len(values) < length {
		return nil
	}

	sma := talib.Sma(values, length)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}
