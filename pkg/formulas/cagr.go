package formulas

import "math"

// CalculateCAGR calculates the compound annual growth rate between two values.
//
// Formula: CAGR = (End / Start)^(1/years) - 1
//
// Returns nil when either value is not positive or years is not positive.
func CalculateCAGR(start, end, years float64) *float64 {
	if start <= 0 || end <= 0 || years <= 0 {
		return nil
	}

	cagr := math.Pow(end/start, 1/years) - 1
	return &cagr
}
