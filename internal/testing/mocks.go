package testing

import (
	"context"
	"sync"

	"github.com/aristath/harvest/internal/domain"
)

// MockSeriesProvider is an in-memory domain.SeriesProvider
type MockSeriesProvider struct {
	mu     sync.Mutex
	series map[string][]domain.RawObservation
	errs   map[string]error
	calls  map[string]int
}

// NewMockSeriesProvider creates an empty provider; unknown tickers yield DataUnavailableError.
func NewMockSeriesProvider() *MockSeriesProvider {
	return &MockSeriesProvider{
		series: make(map[string][]domain.RawObservation),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetSeries sets the series returned for ticker
func (m *MockSeriesProvider) SetSeries(ticker string, series []domain.RawObservation) *MockSeriesProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[ticker] = series
	return m
}

// SetError makes FetchSeries fail for ticker
func (m *MockSeriesProvider) SetError(ticker string, err error) *MockSeriesProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[ticker] = err
	return m
}

// Calls returns how many times ticker was fetched
func (m *MockSeriesProvider) Calls(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

// FetchSeries returns a copy of the configured series
func (m *MockSeriesProvider) FetchSeries(ctx context.Context, ticker string) ([]domain.RawObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[ticker]++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.errs[ticker]; ok {
		return nil, err
	}
	series, ok := m.series[ticker]
	if !ok {
		return nil, &domain.DataUnavailableError{Ticker: ticker, Reason: "no rows stored"}
	}

	out := make([]domain.RawObservation, len(series))
	copy(out, series)
	return out, nil
}
