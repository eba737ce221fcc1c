package domain

import "context"

// SeriesProvider supplies the raw monthly series for a ticker with inflation already merged in.
// Observations are ascending by timestamp and unique per timestamp.
// Implementations return *DataUnavailableError when the ticker has no usable data.
type SeriesProvider interface {
	FetchSeries(ctx context.Context, ticker string) ([]RawObservation, error)
}

// SeriesProviderFunc adapts a function to SeriesProvider
type SeriesProviderFunc func(ctx context.Context, ticker string) ([]RawObservation, error)

// FetchSeries calls f(ctx, ticker)
func (f SeriesProviderFunc) FetchSeries(ctx context.Context, ticker string) ([]RawObservation, error) {
	return f(ctx, ticker)
}
