package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/domo-bridge/internal/element"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/mqtt"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// elementView is the catalog representation served by the API. The
// encoded id is the path- and topic-safe form of the element id.
type elementView struct {
	element.Element
	EncodedID  string             `json:"encoded_id"`
	ClassLabel string             `json:"class_label"`
	Platforms  []element.Platform `json:"platforms"`
}

func newElementView(el element.Element) elementView {
	return elementView{
		Element:    el,
		EncodedID:  mqtt.EncodeElementID(el.ID),
		ClassLabel: el.Class.Label(),
		Platforms:  el.Class.Platforms(),
	}
}

// handleListElements returns the element catalog, optionally filtered
// by panel class or scene. The scene filter matches the scene id or,
// case-insensitively, the scene name.
func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classFilter := strings.TrimSpace(r.URL.Query().Get("class"))
	sceneFilter := strings.TrimSpace(r.URL.Query().Get("scene"))

	elements, err := s.elements.List(ctx)
	if err != nil {
		s.logger.Error("element list failed", "error", err)
		writeInternalError(w, "failed to list elements")
		return
	}

	views := make([]elementView, 0, len(elements))
	for _, el := range elements {
		if classFilter != "" && string(el.Class) != classFilter {
			continue
		}
		if sceneFilter != "" && el.SceneID != sceneFilter && !strings.EqualFold(el.SceneName, sceneFilter) {
			continue
		}
		views = append(views, newElementView(el))
	}

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{
		"elements": views,
		"count":    len(views),
	})
}

// handleGetElement returns one element with its current state and the
// store's freshness. The state is nil until the first successful poll.
func (s *Server) handleGetElement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	elementID, ok := s.elementID(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "element not found")
		return
	}

	el, err := s.elements.GetByID(ctx, elementID)
	if err != nil {
		if !errors.Is(err, element.ErrNotFound) {
			s.logger.Error("element load failed", "element_id", elementID, "error", err)
			writeInternalError(w, "failed to load element")
			return
		}
		// Catalogued but not yet persisted; serve the in-memory record.
		record := s.catalog[elementID]
		el = &record
	}

	state, _ := s.states.CurrentState(elementID)

	writeJSON(w, http.StatusOK, map[string]any{
		"element":    newElementView(*el),
		"state":      state,
		"stale":      s.store.Stale(),
		"updated_at": s.store.UpdatedAt(),
	})
}

// handleGetHistory returns recent state history entries for an element.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	elementID, ok := s.elementID(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "element not found")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	entries, err := s.history.GetHistory(ctx, elementID, limit)
	if err != nil {
		s.logger.Error("history query failed", "element_id", elementID, "error", err)
		writeInternalError(w, "failed to load element history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.RecordedAt.After(since) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"element_id": elementID,
		"history":    entries,
		"count":      len(entries),
	})
}

// parseHistoryLimit validates the limit query parameter.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return min(n, maxHistoryLimit), nil
}

// parseSinceParam parses the optional RFC3339 since parameter.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
