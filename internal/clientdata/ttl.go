package clientdata

import "time"

// TTL constants for cached data.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Monthly series only gain a row per month; a week keeps the daily
	// AlphaVantage quota free for new tickers.
	TTLMonthlySeries = 7 * 24 * time.Hour
	TTLCPI           = 7 * 24 * time.Hour

	// Backtest results are also cleared whenever series data changes.
	TTLBacktestResult = 24 * time.Hour
)

// staleRetention is how long past expiry the cleanup job keeps a row.
// Expired series remain the fallback when AlphaVantage is unreachable or
// the daily quota is spent, so they outlive their TTL by a month.
var staleRetention = map[string]time.Duration{
	TableAlphaVantageSeries: 30 * 24 * time.Hour,
	TableBacktestResults:    0,
}
