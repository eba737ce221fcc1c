package utils

import "strings"

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseTickers splits a comma-separated ticker list (SEED_TICKERS and
// friends), normalizes every entry and drops blanks and duplicates while
// keeping the first-seen order. Returns nil when nothing remains.
func ParseTickers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, v := range strings.Split(s, ",") {
		ticker := NormalizeTicker(v)
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		result = append(result, ticker)
	}

	return result
}
