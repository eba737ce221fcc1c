package alphavantage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const monthlyAdjustedKey = "Monthly Adjusted Time Series"

// parseFloat64 parses an AlphaVantage number. Placeholders parse as 0.
func parseFloat64(s string) float64 {
	if v := parseFloat64Ptr(s); v != nil {
		return *v
	}
	return 0
}

// parseFloat64Ptr parses an AlphaVantage number, nil for placeholders.
func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	switch s {
	case "", "None", "null", "-", ".":
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	return int64(parseFloat64(s))
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDateTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseMonthlyAdjusted(data []byte) (*MonthlyAdjustedSeries, error) {
	var raw struct {
		MetaData map[string]string            `json:"Meta Data"`
		Series   map[string]map[string]string `json:"Monthly Adjusted Time Series"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse monthly adjusted series: %w", err)
	}
	if raw.Series == nil {
		return nil, fmt.Errorf("unexpected data format: missing %q", monthlyAdjustedKey)
	}

	series := &MonthlyAdjustedSeries{
		Symbol:        raw.MetaData["2. Symbol"],
		LastRefreshed: parseDateTime(raw.MetaData["3. Last Refreshed"]),
		Bars:          make([]MonthlyBar, 0, len(raw.Series)),
	}

	for dateStr, values := range raw.Series {
		date := parseDate(dateStr)
		if date.IsZero() {
			continue
		}
		series.Bars = append(series.Bars, MonthlyBar{
			Date:           date,
			Open:           parseFloat64(values["1. open"]),
			High:           parseFloat64(values["2. high"]),
			Low:            parseFloat64(values["3. low"]),
			Close:          parseFloat64(values["4. close"]),
			AdjustedClose:  parseFloat64(values["5. adjusted close"]),
			Volume:         parseInt64(values["6. volume"]),
			DividendAmount: parseFloat64(values["7. dividend amount"]),
		})
	}

	sort.Slice(series.Bars, func(i, j int) bool {
		return series.Bars[i].Date.Before(series.Bars[j].Date)
	})

	return series, nil
}

// parseEconomicData parses indicator responses. Points without a value (".") are skipped.
func parseEconomicData(data []byte) (*EconomicData, error) {
	var raw struct {
		Name     string `json:"name"`
		Interval string `json:"interval"`
		Unit     string `json:"unit"`
		Data     []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse economic data: %w", err)
	}
	if raw.Data == nil {
		return nil, fmt.Errorf("unexpected data format: missing %q", "data")
	}

	result := &EconomicData{
		Name:     raw.Name,
		Interval: raw.Interval,
		Unit:     raw.Unit,
		Data:     make([]EconomicDataPoint, 0, len(raw.Data)),
	}
	for _, point := range raw.Data {
		value := parseFloat64Ptr(point.Value)
		date := parseDate(point.Date)
		if value == nil || date.IsZero() {
			continue
		}
		result.Data = append(result.Data, EconomicDataPoint{Date: date, Value: *value})
	}

	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].Date.Before(result.Data[j].Date)
	})

	return result, nil
}
