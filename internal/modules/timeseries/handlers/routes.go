package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the public time-series routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tickers", func(r chi.Router) {
		r.Get("/", h.HandleListTickers)
		r.Get("/{ticker}/series", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetSeries(w, r, chi.URLParam(r, "ticker"))
		})
	})
}

// RegisterAdminRoutes registers the routes that change stored data.
// The caller is responsible for authentication.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/tickers/{ticker}/refresh", func(w http.ResponseWriter, r *http.Request) {
		h.HandleRefreshTicker(w, r, chi.URLParam(r, "ticker"))
	})
	r.Delete("/tickers/{ticker}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleEraseTicker(w, r, chi.URLParam(r, "ticker"))
	})
	r.Post("/cpi/refresh", h.HandleRefreshCPI)
}
