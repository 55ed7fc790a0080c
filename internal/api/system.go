package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/domo-bridge/internal/audit"
)

// auditTailLimit is how many recent commands the system endpoint
// includes.
const auditTailLimit = 10

// handleSystem returns a diagnostic snapshot: version, uptime, the
// poll loop's status, the bridge's counters and the most recent
// commands.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	recent, err := s.audit.List(r.Context(), audit.Filter{Limit: auditTailLimit})
	if err != nil {
		s.logger.Warn("audit tail query failed", "error", err)
		recent = &audit.ListResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":           s.version,
		"uptime_s":          int(time.Since(s.startedAt).Seconds()),
		"poll":              s.cycle.Status(),
		"bridge":            s.stats.GetMetrics(),
		"websocket_clients": s.hub.ClientCount(),
		"recent_commands":   recent.Logs,
	})
}

// handleRefresh schedules an immediate poll cycle. Concurrent requests
// coalesce into at most one pending cycle.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.refresher.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "refresh scheduled",
	})
}
