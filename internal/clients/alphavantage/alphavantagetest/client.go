// Package alphavantagetest provides an in-memory AlphaVantage client for tests.
package alphavantagetest

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/harvest/internal/clients/alphavantage"
	testingpkg "github.com/aristath/harvest/internal/testing"
)

// Client is an in-memory alphavantage.ClientInterface.
// Unknown symbols yield alphavantage.ErrSymbolNotFound.
type Client struct {
	mu        sync.Mutex
	monthly   map[string]*alphavantage.MonthlyAdjustedSeries
	cpi       *alphavantage.EconomicData
	cpiErr    error
	errs      map[string]error
	calls     map[string]int
	remaining int
}

// NewClient creates a client with no data and a budget of 25.
func NewClient() *Client {
	return &Client{
		monthly:   make(map[string]*alphavantage.MonthlyAdjustedSeries),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
		remaining: alphavantage.DefaultDailyLimit,
	}
}

// SetMonthly sets n monthly bars for symbol at a constant price.
func (m *Client) SetMonthly(symbol string, n int, price float64) *Client {
	bars := make([]alphavantage.MonthlyBar, n)
	for i, ts := range testingpkg.MonthEnds(testingpkg.FixtureStart, n) {
		bars[i] = alphavantage.MonthlyBar{
			Date:          ts,
			Open:          price,
			High:          price,
			Low:           price,
			Close:         price,
			AdjustedClose: price,
			Volume:        1000,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.monthly[symbol] = &alphavantage.MonthlyAdjustedSeries{Symbol: symbol, Bars: bars}
	return m
}

// SetCPI sets n monthly CPI points starting at value, rising 0.2% a month.
func (m *Client) SetCPI(n int, value float64) *Client {
	points := make([]alphavantage.EconomicDataPoint, n)
	for i, ts := range testingpkg.MonthEnds(testingpkg.FixtureStart, n) {
		// CPI is published for the first of the month
		points[i] = alphavantage.EconomicDataPoint{
			Date:  time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC),
			Value: value,
		}
		value *= 1.002
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpi = &alphavantage.EconomicData{Name: "Consumer Price Index for all Urban Consumers", Interval: "monthly", Data: points}
	return m
}

// SetError makes GetMonthlyAdjusted fail for symbol.
func (m *Client) SetError(symbol string, err error) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
	return m
}

// SetCPIError makes GetCPI fail.
func (m *Client) SetCPIError(err error) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpiErr = err
	return m
}

// Calls returns how many upstream calls were made for symbol ("CPI" for GetCPI).
func (m *Client) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// GetMonthlyAdjusted returns the configured series for symbol
func (m *Client) GetMonthlyAdjusted(ctx context.Context, symbol string) (*alphavantage.MonthlyAdjustedSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[symbol]++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	series, ok := m.monthly[symbol]
	if !ok {
		return nil, alphavantage.ErrSymbolNotFound{Symbol: symbol}
	}
	m.remaining--
	return series, nil
}

// GetCPI returns the configured CPI series
func (m *Client) GetCPI(ctx context.Context) (*alphavantage.EconomicData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CPI"]++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.cpiErr != nil {
		return nil, m.cpiErr
	}
	if m.cpi == nil {
		return &alphavantage.EconomicData{Interval: "monthly"}, nil
	}
	m.remaining--
	return m.cpi, nil
}

// GetRemainingRequests returns the simulated daily budget
func (m *Client) GetRemainingRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}
