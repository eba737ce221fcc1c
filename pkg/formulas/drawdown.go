package formulas

// MaxDrawdown returns the largest peak-to-trough decline of values as a
// fraction of the peak (0.25 = 25%). Non-positive peaks are ignored.
func MaxDrawdown(values []float64) float64 {
	maxDD := 0.0
	peak := 0.0

	for _, v := range values {
		if v > peak {
			peak = v
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}
