package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/harvest/internal/clientdata"
	testingpkg "github.com/aristath/harvest/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const monthlyAdjustedJSON = `{
	"Meta Data": {
		"1. Information": "Monthly Adjusted Prices and Volumes",
		"2. Symbol": "VTI",
		"3. Last Refreshed": "2024-02-16",
		"4. Time Zone": "US/Eastern"
	},
	"Monthly Adjusted Time Series": {
		"2024-02-16": {
			"1. open": "242.10",
			"2. high": "250.00",
			"3. low": "240.50",
			"4. close": "248.00",
			"5. adjusted close": "248.00",
			"6. volume": "30000000",
			"7. dividend amount": "0.0000"
		},
		"2024-01-31": {
			"1. open": "237.00",
			"2. high": "243.00",
			"3. low": "231.00",
			"4. close": "241.00",
			"5. adjusted close": "240.20",
			"6. volume": "45000000",
			"7. dividend amount": "0.8500"
		}
	}
}`

const cpiJSON = `{
	"name": "Consumer Price Index for all Urban Consumers",
	"interval": "monthly",
	"unit": "index 1982-1984=100",
	"data": [
		{"date": "2024-01-01", "value": "308.417"},
		{"date": "2023-12-01", "value": "306.746"},
		{"date": "2023-11-01", "value": "."}
	]
}`

// fakeAPI serves canned bodies per function and counts requests.
func fakeAPI(t *testing.T, bodies map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		body, ok := bodies[r.URL.Query().Get("function")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestClient(baseURL string) *Client {
	client := NewClient("test-key", zerolog.Nop())
	client.SetBaseURL(baseURL)
	client.SetRateLimit(rate.Inf, 1)
	return client
}

// TestNewClient tests client creation.
func TestNewClient(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "test-key", client.apiKey)
	assert.Equal(t, 25, client.GetRemainingRequests())
}

// TestRateLimiting tests the daily budget.
func TestRateLimiting(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	for i := 0; i < 25; i++ {
		remaining := client.GetRemainingRequests()
		assert.Equal(t, 25-i, remaining)
		err := client.checkRateLimit()
		require.NoError(t, err)
	}

	// 26th request should fail
	err := client.checkRateLimit()
	assert.Error(t, err)
	assert.IsType(t, ErrRateLimitExceeded{}, err)
	assert.Contains(t, err.Error(), "resets at")
}

// TestResetDailyCounter tests counter reset.
func TestResetDailyCounter(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	for i := 0; i < 10; i++ {
		_ = client.checkRateLimit()
	}
	assert.Equal(t, 15, client.GetRemainingRequests())

	client.ResetDailyCounter()
	assert.Equal(t, 25, client.GetRemainingRequests())
}

// TestCaching tests the memory cache.
func TestCaching(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	client.setCache("test-key", "test data", time.Hour)

	cached, ok := client.getFromCache("test-key")
	assert.True(t, ok)
	assert.Equal(t, "test data", cached)

	_, ok = client.getFromCache("non-existent")
	assert.False(t, ok)
}

// TestCacheExpiration tests cache expiration.
func TestCacheExpiration(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	client.setCache("test-key", "test data", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := client.getFromCache("test-key")
	assert.False(t, ok)
}

// TestClearCache tests cache clearing.
func TestClearCache(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	client.setCache("key1", "data1", time.Hour)
	client.setCache("key2", "data2", time.Hour)

	client.ClearCache()

	_, ok1 := client.getFromCache("key1")
	_, ok2 := client.getFromCache("key2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

// TestBuildCacheKey tests cache key generation.
func TestBuildCacheKey(t *testing.T) {
	key := buildCacheKey(functionMonthlyAdjusted, map[string]string{"symbol": "VTI", "apikey": "secret"})
	assert.Equal(t, "TIME_SERIES_MONTHLY_ADJUSTED|symbol=VTI", key)
	assert.NotContains(t, key, "secret")

	a := buildCacheKey("X", map[string]string{"b": "2", "a": "1"})
	b := buildCacheKey("X", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
	assert.Equal(t, "X|a=1|b=2", a)
}

// TestParseFloat64 tests float parsing.
func TestParseFloat64(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"123.45", 123.45},
		{"0", 0},
		{"None", 0},
		{"", 0},
		{"null", 0},
		{"-", 0},
		{".", 0},
		{"50.5%", 50.5},
		{"invalid", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseFloat64(tt.input))
		})
	}
}

// TestParseFloat64Ptr tests nullable float parsing.
func TestParseFloat64Ptr(t *testing.T) {
	tests := []struct {
		input    string
		isNil    bool
		expected float64
	}{
		{"123.45", false, 123.45},
		{"None", true, 0},
		{"", true, 0},
		{"null", true, 0},
		{".", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseFloat64Ptr(tt.input)
			if tt.isNil {
				assert.Nil(t, result)
			} else {
				require.NotNil(t, result)
				assert.Equal(t, tt.expected, *result)
			}
		})
	}
}

// TestParseInt64 tests integer parsing.
func TestParseInt64(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"12345", 12345},
		{"0", 0},
		{"None", 0},
		{"", 0},
		{"1.5E10", 15000000000},
		{"123.45", 123},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseInt64(tt.input))
		})
	}
}

// TestParseDateTime tests datetime parsing.
func TestParseDateTime(t *testing.T) {
	assert.False(t, parseDateTime("2024-01-15 14:30:00").IsZero())
	assert.False(t, parseDateTime("2024-01-15").IsZero())
	assert.True(t, parseDateTime("").IsZero())
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), parseDate("2024-01-15"))
}

// TestParseMonthlyAdjusted tests monthly series parsing.
func TestParseMonthlyAdjusted(t *testing.T) {
	series, err := parseMonthlyAdjusted([]byte(monthlyAdjustedJSON))
	require.NoError(t, err)

	assert.Equal(t, "VTI", series.Symbol)
	assert.Equal(t, time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC), series.LastRefreshed)
	require.Len(t, series.Bars, 2)

	// oldest first
	jan := series.Bars[0]
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), jan.Date)
	assert.Equal(t, 237.0, jan.Open)
	assert.Equal(t, 243.0, jan.High)
	assert.Equal(t, 231.0, jan.Low)
	assert.Equal(t, 241.0, jan.Close)
	assert.Equal(t, 240.2, jan.AdjustedClose)
	assert.Equal(t, int64(45000000), jan.Volume)
	assert.Equal(t, 0.85, jan.DividendAmount)

	_, err = parseMonthlyAdjusted([]byte(`{"Meta Data": {}}`))
	assert.ErrorContains(t, err, "Monthly Adjusted Time Series")
}

// TestParseEconomicData tests CPI parsing.
func TestParseEconomicData(t *testing.T) {
	data, err := parseEconomicData([]byte(cpiJSON))
	require.NoError(t, err)

	assert.Equal(t, "monthly", data.Interval)
	require.Len(t, data.Data, 2) // "." is skipped
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), data.Data[0].Date)
	assert.Equal(t, 306.746, data.Data[0].Value)
	assert.Equal(t, 308.417, data.Data[1].Value)

	_, err = parseEconomicData([]byte(`{"name": "CPI"}`))
	assert.Error(t, err)
}

// TestErrorTypes tests error type implementations.
func TestErrorTypes(t *testing.T) {
	assert.Contains(t, ErrRateLimitExceeded{}.Error(), "rate limit")
	assert.Contains(t, ErrInvalidAPIKey{}.Error(), "invalid")
	assert.Contains(t, ErrSymbolNotFound{Symbol: "XYZ"}.Error(), "XYZ")
	assert.Contains(t, (&APIError{StatusCode: 503, Function: "CPI"}).Error(), "503")
}

// TestDefaultCacheTTL tests default TTL values.
func TestDefaultCacheTTL(t *testing.T) {
	ttl := DefaultCacheTTL()

	assert.Equal(t, time.Hour, ttl.PriceData)
	assert.Equal(t, time.Hour, ttl.EconomicIndicators)
	assert.Equal(t, 7*24*time.Hour, ttl.Persistent)
}

// TestAPIErrorDetection tests detection of API error responses.
func TestAPIErrorDetection(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	tests := []struct {
		name      string
		body      string
		errorType error
	}{
		{"Rate limit note", `{"Note": "API call frequency is limited"}`, ErrRateLimitExceeded{}},
		{"Daily limit information", `{"Information": "Our standard API rate limit is 25 requests per day."}`, ErrRateLimitExceeded{}},
		{"Invalid key information", `{"Information": "Please provide a valid apikey."}`, ErrInvalidAPIKey{}},
		{"Invalid key error", `{"Error Message": "the parameter apikey is invalid or missing."}`, ErrInvalidAPIKey{}},
		{"Error message", `{"Error Message": "Invalid API call."}`, ErrInvalidCall{}},
		{"Thank you message", `Thank you for using Alpha Vantage!`, ErrRateLimitExceeded{}},
		{"Valid response", `{"data": "valid"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.checkAPIError([]byte(tt.body))
			if tt.errorType == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.IsType(t, tt.errorType, err)
		})
	}

	assert.Error(t, client.checkAPIError([]byte(`<html>down</html>`)))
}

// TestNextMidnightUTC tests the midnight calculation.
func TestNextMidnightUTC(t *testing.T) {
	midnight := nextMidnightUTC()

	assert.True(t, midnight.After(time.Now().UTC()))
	assert.Equal(t, 0, midnight.Hour())
	assert.Equal(t, 0, midnight.Minute())
	assert.Equal(t, 0, midnight.Second())
}

func TestGetMonthlyAdjusted(t *testing.T) {
	server, requests := fakeAPI(t, map[string]string{functionMonthlyAdjusted: monthlyAdjustedJSON})
	client := newTestClient(server.URL)

	series, err := client.GetMonthlyAdjusted(context.Background(), "VTI")
	require.NoError(t, err)
	assert.Len(t, series.Bars, 2)
	assert.Equal(t, 24, client.GetRemainingRequests())

	// second call is served from memory
	_, err = client.GetMonthlyAdjusted(context.Background(), "VTI")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(requests))
}

func TestGetMonthlyAdjusted_SymbolNotFound(t *testing.T) {
	server, _ := fakeAPI(t, map[string]string{
		functionMonthlyAdjusted: `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`,
	})
	client := newTestClient(server.URL)

	_, err := client.GetMonthlyAdjusted(context.Background(), "NOPE")
	var notFound ErrSymbolNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "NOPE", notFound.Symbol)
}

func TestGetMonthlyAdjusted_HTTPError(t *testing.T) {
	server, _ := fakeAPI(t, map[string]string{})
	client := newTestClient(server.URL)

	_, err := client.GetMonthlyAdjusted(context.Background(), "VTI")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.NotContains(t, err.Error(), "test-key")
}

func TestGetCPI(t *testing.T) {
	server, requests := fakeAPI(t, map[string]string{functionCPI: cpiJSON})
	client := newTestClient(server.URL)

	cpi, err := client.GetCPI(context.Background())
	require.NoError(t, err)
	assert.Len(t, cpi.Data, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(requests))
}

func TestStore_FreshAndStale(t *testing.T) {
	db, _ := testingpkg.NewTestDB(t, "cache")
	store := clientdata.NewRepository(db.Conn()).Table(clientdata.TableAlphaVantageSeries)

	server, requests := fakeAPI(t, map[string]string{functionMonthlyAdjusted: monthlyAdjustedJSON})
	client := newTestClient(server.URL)
	client.SetStore(store)

	_, err := client.GetMonthlyAdjusted(context.Background(), "VTI")
	require.NoError(t, err)

	// a new client with an empty memory cache reads the store
	fresh := newTestClient(server.URL)
	fresh.SetStore(store)
	series, err := fresh.GetMonthlyAdjusted(context.Background(), "VTI")
	require.NoError(t, err)
	require.Len(t, series.Bars, 2)
	assert.Equal(t, 240.2, series.Bars[0].AdjustedClose)
	assert.Equal(t, int32(1), atomic.LoadInt32(requests))

	// expired entries are used only when the API fails
	key := buildCacheKey(functionMonthlyAdjusted, map[string]string{"symbol": "VTI"})
	require.NoError(t, store.Save(key, series, -time.Hour))

	down, _ := fakeAPI(t, map[string]string{})
	stale := newTestClient(down.URL)
	stale.SetStore(store)
	series, err = stale.GetMonthlyAdjusted(context.Background(), "VTI")
	require.NoError(t, err)
	assert.Len(t, series.Bars, 2)
}

func TestDailyBudgetStopsRequests(t *testing.T) {
	server, requests := fakeAPI(t, map[string]string{functionCPI: cpiJSON})
	client := newTestClient(server.URL)
	client.dailyLimit = 0

	_, err := client.GetCPI(context.Background())
	assert.IsType(t, ErrRateLimitExceeded{}, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(requests))
}

// TestInterfaceImplementation verifies Client implements ClientInterface.
func TestInterfaceImplementation(t *testing.T) {
	var _ ClientInterface = (*Client)(nil)
	var _ Store = (*clientdata.TableCache)(nil)
}

// BenchmarkParseFloat64 benchmarks float parsing.
func BenchmarkParseFloat64(b *testing.B) {
	for i := 0; i < b.N; i++ {
		parseFloat64("123.456789")
	}
}
