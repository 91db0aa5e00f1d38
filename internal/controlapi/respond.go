package controlapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"drip/internal/logging"
	"drip/internal/services"
)

const enableParamHelp = "Please specify 'enable' parameter as true or false"

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, response{Status: "error", Message: message})
}

// writeServiceError maps an appliance error to an HTTP status and the
// operator message for it.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrDevice):
		code = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrAlreadyRecording),
		errors.Is(err, services.ErrAlreadyProcessing),
		errors.Is(err, services.ErrNotRecording),
		errors.Is(err, services.ErrExportWhileRecording):
		code = http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		code = http.StatusBadRequest
	}
	s.writeError(w, code, services.StatusText(err))
}

func (s *Server) unavailable(w http.ResponseWriter, what string) {
	s.writeError(w, http.StatusServiceUnavailable, what+" unavailable")
}

// parseEnable accepts true/1/on/yes and false/0/off/no, case-insensitively.
func parseEnable(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "on", "yes":
		return true, true
	case "false", "0", "off", "no":
		return false, true
	default:
		return false, false
	}
}

// formatMultiplier renders whole numbers with one decimal ("2.0") and keeps
// every other value's shortest form ("2.25").
func formatMultiplier(m float64) string {
	if m == math.Trunc(m) && !math.IsInf(m, 0) {
		return strconv.FormatFloat(m, 'f', 1, 64)
	}
	return strconv.FormatFloat(m, 'f', -1, 64)
}

func onOff(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}
