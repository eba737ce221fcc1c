package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/harvest/internal/domain"
)

// EmptySeriesError is returned when there is nothing to simulate: the raw
// series was empty, or nothing is left after dropping months before the start date.
type EmptySeriesError struct {
	Ticker    string
	StartDate *time.Time
}

func (e *EmptySeriesError) Error() string {
	subject := "series"
	if e.Ticker != "" {
		subject = "series for " + e.Ticker
	}
	if e.StartDate != nil {
		return fmt.Sprintf("%s has no observations on or after %s", subject, e.StartDate.Format(domain.DateLayout))
	}
	return subject + " is empty"
}

// InvalidBaseValueError is returned when a value that normalization divides by
// is zero (the base price or base inflation index), or when the normalized
// inflation index is not positive.
type InvalidBaseValueError struct {
	Field string // "raw_price" or "raw_cpi"
	Index int
	Value float64
}

func (e *InvalidBaseValueError) Error() string {
	return fmt.Sprintf("invalid %s %g at index %d: cannot normalize", e.Field, e.Value, e.Index)
}

// ZeroPriceError is returned by the strategy engine when a month has a zero price.
type ZeroPriceError struct {
	Index     int
	Timestamp time.Time
}

func (e *ZeroPriceError) Error() string {
	return fmt.Sprintf("zero price at index %d (%s)", e.Index, e.Timestamp.Format(domain.DateLayout))
}

// ConfigError is returned when portfolio parameters are invalid.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Error kinds reported in results and error bodies
const (
	ErrorKindEmptySeries      = "empty_series"
	ErrorKindInvalidBaseValue = "invalid_base_value"
	ErrorKindZeroPrice        = "zero_price"
	ErrorKindDataUnavailable  = "data_unavailable"
	ErrorKindInvalidConfig    = "invalid_config"
	ErrorKindInternal         = "internal"
)

// ErrorKind classifies err for API consumers.
func ErrorKind(err error) string {
	var (
		emptyErr  *EmptySeriesError
		baseErr   *InvalidBaseValueError
		priceErr  *ZeroPriceError
		dataErr   *domain.DataUnavailableError
		configErr *ConfigError
	)
	switch {
	case errors.As(err, &emptyErr):
		return ErrorKindEmptySeries
	case errors.As(err, &baseErr):
		return ErrorKindInvalidBaseValue
	case errors.As(err, &priceErr):
		return ErrorKindZeroPrice
	case errors.As(err, &dataErr):
		return ErrorKindDataUnavailable
	case errors.As(err, &configErr):
		return ErrorKindInvalidConfig
	default:
		return ErrorKindInternal
	}
}
