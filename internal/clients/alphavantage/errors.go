package alphavantage

import "fmt"

// ErrRateLimitExceeded is returned when the daily budget is spent or the API
// answers with a throttling note.
type ErrRateLimitExceeded struct {
	ResetAt string
}

func (e ErrRateLimitExceeded) Error() string {
	if e.ResetAt != "" {
		return "alphavantage rate limit exceeded, resets at " + e.ResetAt
	}
	return "alphavantage rate limit exceeded"
}

// ErrInvalidAPIKey is returned when the API rejects the key.
type ErrInvalidAPIKey struct{}

func (e ErrInvalidAPIKey) Error() string {
	return "alphavantage api key is invalid or missing"
}

// ErrSymbolNotFound is returned when the API has no data for a symbol.
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("alphavantage has no data for symbol %s", e.Symbol)
}

// ErrInvalidCall wraps an "Error Message" answer that is not tied to a symbol.
type ErrInvalidCall struct {
	Message string
}

func (e ErrInvalidCall) Error() string {
	return "alphavantage rejected the call: " + e.Message
}

// APIError is returned for non-200 responses.
type APIError struct {
	StatusCode int
	Function   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alphavantage %s returned status %d", e.Function, e.StatusCode)
}
