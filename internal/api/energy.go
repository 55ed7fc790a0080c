package api

import (
	"net/http"
	"sort"
)

// handleEnergy returns the accumulated energy totals per metered
// element.
func (s *Server) handleEnergy(w http.ResponseWriter, _ *http.Request) {
	totals := s.meter.Snapshot()

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].ElementID != totals[j].ElementID {
			return totals[i].ElementID < totals[j].ElementID
		}
		return totals[i].Metric < totals[j].Metric
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"totals": totals,
		"count":  len(totals),
	})
}
