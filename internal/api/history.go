package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleListEvents returns recently fired print triggers, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event log not configured")
		return
	}
	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	events, err := s.events.ListEvents(r.Context(), s.printer.ID(), limit)
	if err != nil {
		s.logger.Error("listing print events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.printer.ID(),
		"events":    events,
		"count":     len(events),
	})
}

// handleListHistory returns state snapshots recorded at transitions.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "state history not configured")
		return
	}
	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.GetHistory(r.Context(), s.printer.ID(), limit)
	if err != nil {
		s.logger.Error("listing state history failed", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.printer.ID(),
		"history":   entries,
		"count":     len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter.
// Empty means the default; values above the maximum are capped.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}
