package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/printlink-core/internal/audit"
)

// recordCommand appends a command to the audit trail. Audit failures are
// logged and never fail the request.
func (s *Server) recordCommand(r *http.Request, command string, params map[string]any, cmdErr error) {
	if s.audit == nil {
		return
	}
	entry := &audit.Entry{
		DeviceID: s.printer.ID(),
		Command:  command,
		Params:   params,
		Outcome:  audit.OutcomeSent,
		Source:   "api",
	}
	if id, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
		entry.RequestID = id
	}
	if cmdErr != nil {
		entry.Outcome = audit.OutcomeFailed
		entry.Error = cmdErr.Error()
	}
	if err := s.audit.Create(r.Context(), entry); err != nil {
		s.logger.Warn("recording command audit failed", "command", command, "error", err)
	}
}

// handleListAudit returns audited commands, newest first.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command audit not configured")
		return
	}

	q := r.URL.Query()
	limit, err := parseHistoryLimit(q.Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
	}

	result, err := s.audit.List(r.Context(), audit.Filter{
		DeviceID: s.printer.ID(),
		Command:  q.Get("command"),
		Outcome:  q.Get("outcome"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.logger.Error("listing command audit failed", "error", err)
		writeInternalError(w, "failed to list command audit")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
