package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/harvest/internal/database"
)

// healthPingTimeout bounds each database ping of the liveness check
const healthPingTimeout = 2 * time.Second

// handleHealth reports whether both databases answer a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	databases := make(map[string]string, 2)
	status, code := "healthy", http.StatusOK

	for _, db := range []*database.DB{s.container.HarvestDB, s.container.CacheDB} {
		if db == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		err := db.Conn().PingContext(ctx)
		cancel()

		if err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check ping failed")
			databases[db.Name()] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "ok"
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "harvest",
		"databases": databases,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
