package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/printlink-core/internal/printer"
)

// Print control actions.
const (
	actionPause  = "pause"
	actionResume = "resume"
	actionStop   = "stop"
)

// Light nodes addressable through the API.
const (
	lightChamber = "chamber"
	lightWork    = "work"
)

// ImageResponse carries the cover image as a data URL.
type ImageResponse struct {
	JobID string `json:"job_id,omitempty"`
	Image string `json:"image"`
}

// LightRequest is the body of PUT /lights/{node}.
type LightRequest struct {
	On *bool `json:"on"`
}

// SpeedRequest is the body of PUT /speed. Speed may be a string or number.
type SpeedRequest struct {
	Speed json.RawMessage `json:"speed"`
}

// handleStatus returns the printer status summary.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.printer.Status())
}

// handleImage returns the current job's cover as a data URL.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.printer.CoverImage(r.Context())
	if err != nil {
		if errors.Is(err, printer.ErrNoCoverImage) {
			writeNotFound(w, "no cover image for the current job")
			return
		}
		s.logger.Warn("cover image unavailable", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeInternal, "cover image download failed")
		return
	}

	mime := http.DetectContentType(data)
	writeJSON(w, http.StatusOK, ImageResponse{
		JobID: s.printer.Status().JobID,
		Image: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	})
}

// handlePrintCommand returns a handler for one print control action.
func (s *Server) handlePrintCommand(action string) http.HandlerFunc {
	var send func(ctx context.Context) error
	switch action {
	case actionPause:
		send = s.printer.PausePrint
	case actionResume:
		send = s.printer.ResumePrint
	default:
		send = s.printer.StopPrint
	}

	return func(w http.ResponseWriter, r *http.Request) {
		err := send(r.Context())
		s.recordCommand(r, action, nil, err)
		if err != nil {
			s.logger.Warn("print command failed", "action", action, "error", err)
			writePrinterError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent", "action": action})
	}
}

// handleLight returns a handler switching one light node.
func (s *Server) handleLight(node string) http.HandlerFunc {
	set := s.printer.SetChamberLight
	if node == lightWork {
		set = s.printer.SetWorkLight
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req LightRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.On == nil {
			writeBadRequest(w, `body must be {"on": true|false}`)
			return
		}
		err := set(r.Context(), *req.On)
		s.recordCommand(r, "light."+node, map[string]any{"on": *req.On}, err)
		if err != nil {
			s.logger.Warn("light command failed", "node", node, "error", err)
			writePrinterError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent", "light": node, "on": *req.On})
	}
}

// handleSpeed sets the print speed level (1 silent .. 4 ludicrous).
func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req SpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Speed) == 0 {
		writeBadRequest(w, `body must be {"speed": "1"-"4"}`)
		return
	}

	level, err := printer.ParseSpeedLevel(speedString(req.Speed))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	err = s.printer.SetPrintSpeed(r.Context(), level)
	s.recordCommand(r, "speed", map[string]any{"level": string(level)}, err)
	if err != nil {
		s.logger.Warn("speed command failed", "level", level, "error", err)
		writePrinterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent", "speed": string(level)})
}

// speedString accepts "3" or 3.
func speedString(raw json.RawMessage) string {
	var str string
	if json.Unmarshal(raw, &str) == nil {
		return str
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return string(raw)
}

// handleCapabilities lists provisioned capabilities with their values.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if s.capabilities == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "capability store not configured")
		return
	}
	caps, err := s.capabilities.List(r.Context())
	if err != nil {
		s.logger.Error("listing capabilities failed", "error", err)
		writeInternalError(w, "failed to list capabilities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"capabilities": caps,
		"count":        len(caps),
	})
}

// handleListAMS lists the AMS units in the last known state.
func (s *Server) handleListAMS(w http.ResponseWriter, _ *http.Request) {
	units := s.printer.AMSUnits()
	writeJSON(w, http.StatusOK, map[string]any{
		"units": units,
		"count": len(units),
	})
}

// handleGetAMS returns one AMS unit by index.
func (s *Server) handleGetAMS(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || index < 0 {
		writeBadRequest(w, "invalid AMS id")
		return
	}
	unit, err := s.printer.AMSUnit(index)
	if err != nil {
		writePrinterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}
