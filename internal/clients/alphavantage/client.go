// Package alphavantage provides a client for the AlphaVantage market data API.
// Only the monthly adjusted price series and the monthly CPI indicator are used.
// The free tier allows 25 requests per day, so responses are cached in memory
// and, when a store is attached, persistently with stale fallback.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"

	// DefaultDailyLimit is the free tier request budget per UTC day
	DefaultDailyLimit = 25

	functionMonthlyAdjusted = "TIME_SERIES_MONTHLY_ADJUSTED"
	functionCPI             = "CPI"
)

// ClientInterface is the subset of the client used by the time-series store.
type ClientInterface interface {
	GetMonthlyAdjusted(ctx context.Context, symbol string) (*MonthlyAdjustedSeries, error)
	GetCPI(ctx context.Context) (*EconomicData, error)
	GetRemainingRequests() int
}

// Store persists responses between restarts. *clientdata.TableCache satisfies it.
type Store interface {
	Load(key string, dest interface{}) (bool, error)
	LoadStale(key string, dest interface{}) (bool, error)
	Save(key string, value interface{}, ttl time.Duration) error
}

// CacheTTL holds cache durations per data category.
type CacheTTL struct {
	PriceData          time.Duration // in memory
	EconomicIndicators time.Duration // in memory
	Persistent         time.Duration // store
}

// DefaultCacheTTL returns the default cache durations.
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{
		PriceData:          time.Hour,
		EconomicIndicators: time.Hour,
		Persistent:         7 * 24 * time.Hour,
	}
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// Client is the AlphaVantage API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	store      Store
	cacheTTL   CacheTTL
	log        zerolog.Logger

	mu         sync.Mutex
	dailyLimit int
	dailyCount int
	resetAt    time.Time

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

// NewClient creates a new AlphaVantage client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// the free tier also throttles bursts: 5 requests per minute
		limiter:    rate.NewLimiter(rate.Every(12*time.Second), 5),
		cacheTTL:   DefaultCacheTTL(),
		log:        log.With().Str("client", "alphavantage").Logger(),
		dailyLimit: DefaultDailyLimit,
		resetAt:    nextMidnightUTC(),
		cache:      make(map[string]cacheEntry),
	}
}

// SetBaseURL points the client at another endpoint.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetStore attaches a persistent response store.
func (c *Client) SetStore(store Store) {
	c.store = store
}

// SetCacheTTL overrides the cache durations.
func (c *Client) SetCacheTTL(ttl CacheTTL) {
	c.cacheTTL = ttl
}

// SetRateLimit overrides the per-minute limiter.
func (c *Client) SetRateLimit(limit rate.Limit, burst int) {
	c.limiter = rate.NewLimiter(limit, burst)
}

// GetMonthlyAdjusted returns the full monthly adjusted history of symbol.
func (c *Client) GetMonthlyAdjusted(ctx context.Context, symbol string) (*MonthlyAdjustedSeries, error) {
	params := map[string]string{"symbol": symbol}
	key := buildCacheKey(functionMonthlyAdjusted, params)

	var series MonthlyAdjustedSeries
	ok, err := c.cached(key, &series)
	if err != nil {
		return nil, err
	}
	if ok {
		return &series, nil
	}

	body, err := c.doRequest(ctx, functionMonthlyAdjusted, params)
	if err != nil {
		if _, invalid := err.(ErrInvalidCall); invalid {
			err = ErrSymbolNotFound{Symbol: symbol}
		}
		if c.loadStale(key, &series, err) {
			return &series, nil
		}
		return nil, err
	}

	parsed, err := parseMonthlyAdjusted(body)
	if err != nil {
		return nil, err
	}
	if len(parsed.Bars) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}
	if parsed.Symbol == "" {
		parsed.Symbol = symbol
	}

	c.remember(key, parsed, c.cacheTTL.PriceData)
	return parsed, nil
}

// GetCPI returns the monthly US consumer price index.
func (c *Client) GetCPI(ctx context.Context) (*EconomicData, error) {
	params := map[string]string{"interval": "monthly"}
	key := buildCacheKey(functionCPI, params)

	var cpi EconomicData
	ok, err := c.cached(key, &cpi)
	if err != nil {
		return nil, err
	}
	if ok {
		return &cpi, nil
	}

	body, err := c.doRequest(ctx, functionCPI, params)
	if err != nil {
		if c.loadStale(key, &cpi, err) {
			return &cpi, nil
		}
		return nil, err
	}

	parsed, err := parseEconomicData(body)
	if err != nil {
		return nil, err
	}

	c.remember(key, parsed, c.cacheTTL.EconomicIndicators)
	return parsed, nil
}

// cached fills dest from the memory cache or the fresh part of the store.
func (c *Client) cached(key string, dest interface{}) (bool, error) {
	if data, ok := c.getFromCache(key); ok {
		c.log.Debug().Str("key", key).Msg("AlphaVantage memory cache hit")
		return true, assign(dest, data)
	}

	if c.store == nil {
		return false, nil
	}
	ok, err := c.store.Load(key, dest)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to read AlphaVantage store")
		return false, nil
	}
	if ok {
		c.log.Debug().Str("key", key).Msg("AlphaVantage store hit")
	}
	return ok, nil
}

// loadStale fills dest with expired stored data after a failed request.
func (c *Client) loadStale(key string, dest interface{}, cause error) bool {
	if c.store == nil {
		return false
	}
	if _, notFound := cause.(ErrSymbolNotFound); notFound {
		return false
	}
	ok, err := c.store.LoadStale(key, dest)
	if err != nil || !ok {
		return false
	}
	c.log.Warn().Err(cause).Str("key", key).Msg("API failed, using stale cached data")
	return true
}

func (c *Client) remember(key string, value interface{}, ttl time.Duration) {
	c.setCache(key, value, ttl)
	if c.store == nil {
		return
	}
	if err := c.store.Save(key, value, c.cacheTTL.Persistent); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to persist AlphaVantage response")
	}
}

// doRequest performs one API call and returns the checked body.
func (c *Client) doRequest(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("function", function)
	for k, v := range params {
		query.Set(k, v)
	}

	c.log.Info().
		Str("function", function).
		Interface("params", params).
		Int("remaining", c.GetRemainingRequests()).
		Msg("Fetching from AlphaVantage")

	query.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the full URL including the key
		return nil, fmt.Errorf("alphavantage %s request failed: %s", function, redact(err.Error(), c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Function: function}
	}

	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkAPIError detects error payloads, which AlphaVantage sends with status 200.
func (c *Client) checkAPIError(body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		if strings.Contains(trimmed, "Thank you") {
			return ErrRateLimitExceeded{}
		}
		return fmt.Errorf("unexpected non-JSON response from alphavantage")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	message := func(field string) (string, bool) {
		raw, ok := envelope[field]
		if !ok {
			return "", false
		}
		var s string
		_ = json.Unmarshal(raw, &s)
		return s, true
	}

	if msg, ok := message("Error Message"); ok {
		if mentionsAPIKey(msg) {
			return ErrInvalidAPIKey{}
		}
		return ErrInvalidCall{Message: msg}
	}
	if msg, ok := message("Information"); ok {
		if mentionsAPIKey(msg) && !strings.Contains(strings.ToLower(msg), "rate limit") {
			return ErrInvalidAPIKey{}
		}
		return ErrRateLimitExceeded{}
	}
	if _, ok := message("Note"); ok {
		return ErrRateLimitExceeded{}
	}

	return nil
}

func mentionsAPIKey(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "apikey") || strings.Contains(lower, "api key")
}

// checkRateLimit consumes one request of the daily budget.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().After(c.resetAt) {
		c.dailyCount = 0
		c.resetAt = nextMidnightUTC()
	}

	if c.dailyCount >= c.dailyLimit {
		return ErrRateLimitExceeded{ResetAt: c.resetAt.Format(time.RFC3339)}
	}

	c.dailyCount++
	return nil
}

// GetRemainingRequests returns the requests left in today's budget.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().After(c.resetAt) {
		return c.dailyLimit
	}
	return c.dailyLimit - c.dailyCount
}

// ResetDailyCounter restores the full daily budget.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dailyCount = 0
	c.resetAt = nextMidnightUTC()
}

func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	c.cache[key] = cacheEntry{data: data, expiresAt: time.Now().Add(ttl)}
}

// ClearCache drops the in-memory cache.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	c.cache = make(map[string]cacheEntry)
}

// buildCacheKey builds a deterministic key from the function and its params.
// The api key is never part of it.
func buildCacheKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(function)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	return b.String()
}

// assign copies a memory cache value into dest.
func assign(dest, data interface{}) error {
	switch d := dest.(type) {
	case *MonthlyAdjustedSeries:
		if v, ok := data.(*MonthlyAdjustedSeries); ok {
			*d = *v
			return nil
		}
	case *EconomicData:
		if v, ok := data.(*EconomicData); ok {
			*d = *v
			return nil
		}
	}
	return fmt.Errorf("cached value has type %T, want %T", data, dest)
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}

func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
