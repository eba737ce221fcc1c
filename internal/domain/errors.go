package domain

import "fmt"

// DataUnavailableError is returned when a ticker (or the inflation series) has no
// stored or fetchable data.
type DataUnavailableError struct {
	Ticker string
	Reason string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("no data available for %s", e.Ticker)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}
