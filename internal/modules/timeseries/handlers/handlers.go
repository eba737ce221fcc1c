// Package handlers provides HTTP handlers for the time-series store.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/harvest/internal/clients/alphavantage"
	"github.com/aristath/harvest/internal/domain"
	"github.com/aristath/harvest/internal/modules/timeseries"
	"github.com/aristath/harvest/internal/utils"
	"github.com/rs/zerolog"
)

// Handler handles time-series HTTP requests
type Handler struct {
	service *timeseries.Service
	log     zerolog.Logger
}

// NewHandler creates a new time-series handler
func NewHandler(service *timeseries.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "timeseries").Logger(),
	}
}

// HandleListTickers handles GET /api/tickers
func (h *Handler) HandleListTickers(w http.ResponseWriter, r *http.Request) {
	infos, err := h.service.ListTickerInfo()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tickers")
		http.Error(w, "Failed to list tickers", http.StatusInternalServerError)
		return
	}

	tickers := make([]string, len(infos))
	for i, info := range infos {
		tickers[i] = info.Ticker
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"tickers": tickers,
			"details": infos,
			"count":   len(tickers),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSeries handles GET /api/tickers/{ticker}/series
func (h *Handler) HandleGetSeries(w http.ResponseWriter, r *http.Request, ticker string) {
	ticker = utils.NormalizeTicker(ticker)
	series, err := h.service.FetchSeries(r.Context(), ticker)
	if err != nil {
		h.writeUpstreamError(w, err, ticker, "Failed to load series")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker": ticker,
			"series": series,
			"count":  len(series),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRefreshTicker handles POST /api/admin/tickers/{ticker}/refresh
func (h *Handler) HandleRefreshTicker(w http.ResponseWriter, r *http.Request, ticker string) {
	ticker = utils.NormalizeTicker(ticker)
	rows, err := h.service.RefreshAsset(r.Context(), ticker)
	if err != nil {
		h.writeUpstreamError(w, err, ticker, "Failed to refresh ticker")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":             ticker,
			"rows":               rows,
			"remaining_requests": h.service.RemainingRequests(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleEraseTicker handles DELETE /api/admin/tickers/{ticker}
func (h *Handler) HandleEraseTicker(w http.ResponseWriter, r *http.Request, ticker string) {
	ticker = utils.NormalizeTicker(ticker)
	deleted, err := h.service.Erase(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to erase ticker")
		http.Error(w, "Failed to erase ticker", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticker not found: " + ticker})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":  ticker,
			"deleted": deleted,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRefreshCPI handles POST /api/admin/cpi/refresh
func (h *Handler) HandleRefreshCPI(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.RefreshCPI(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err, domain.CPITicker, "Failed to refresh CPI")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"rows":               rows,
			"remaining_requests": h.service.RemainingRequests(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeUpstreamError maps store and AlphaVantage errors to status codes.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error, ticker, msg string) {
	var (
		unavailable *domain.DataUnavailableError
		rateLimited alphavantage.ErrRateLimitExceeded
		badKey      alphavantage.ErrInvalidAPIKey
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &unavailable):
		status = http.StatusNotFound
	case errors.As(err, &rateLimited):
		status = http.StatusTooManyRequests
	case errors.As(err, &badKey):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("ticker", ticker).Msg(msg)
	} else {
		h.log.Warn().Err(err).Str("ticker", ticker).Msg(msg)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
