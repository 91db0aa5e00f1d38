package controlapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"drip/internal/ptz"
)

type zoomResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	ZoomLevel  int     `json:"zoom_level"`
	Multiplier float64 `json:"zoom_multiplier"`
}

type icrResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Enabled bool   `json:"icr_enabled"`
}

type irCorrectionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Enabled bool   `json:"ir_correction_enabled"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, response{Status: "ok", Message: "Camera Control API"})
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	if s.deps.Camera == nil {
		s.unavailable(w, "camera")
		return
	}
	query := r.URL.Query()
	if !query.Has("multiplier") {
		s.writeError(w, http.StatusBadRequest, "Please specify 'multiplier' parameter")
		return
	}
	multiplier, err := strconv.ParseFloat(strings.TrimSpace(query.Get("multiplier")), 64)
	if err != nil || math.IsNaN(multiplier) {
		s.writeError(w, http.StatusBadRequest, "Zoom multiplier must be a number")
		return
	}
	if !ptz.ValidMultiplier(multiplier) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Zoom multiplier must be between %sx and %sx",
			formatMultiplier(ptz.MinMultiplier), formatMultiplier(ptz.MaxMultiplier)))
		return
	}

	level := ptz.MultiplierToLevel(multiplier)
	if err := s.deps.Camera.SetZoom(r.Context(), level); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, zoomResponse{
		Status:     "success",
		Message:    fmt.Sprintf("Zoom set to %sx", formatMultiplier(multiplier)),
		ZoomLevel:  level,
		Multiplier: multiplier,
	})
}

// handleZoomPress starts repeating a zoom step until /zoom/release. The hold
// outlives the request.
func (s *Server) handleZoomPress(w http.ResponseWriter, r *http.Request) {
	if s.deps.Camera == nil || s.deps.Repeater == nil {
		s.unavailable(w, "camera")
		return
	}
	var action func(context.Context) error
	switch chi.URLParam(r, "direction") {
	case "in":
		action = s.deps.Camera.ZoomIn
	case "out":
		action = s.deps.Camera.ZoomOut
	default:
		s.writeError(w, http.StatusNotFound, "zoom direction must be in or out")
		return
	}
	if err := s.deps.Repeater.Press(context.WithoutCancel(r.Context()), action); err != nil {
		s.writeServiceError(w, err)
		return
	}
	state := s.deps.Camera.State()
	s.writeJSON(w, http.StatusOK, zoomResponse{
		Status:     "success",
		Message:    "Zoom " + chi.URLParam(r, "direction") + " held",
		ZoomLevel:  state.ZoomLevel,
		Multiplier: state.Multiplier,
	})
}

func (s *Server) handleZoomRelease(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Camera == nil || s.deps.Repeater == nil {
		s.unavailable(w, "camera")
		return
	}
	s.deps.Repeater.Release()
	state := s.deps.Camera.State()
	s.writeJSON(w, http.StatusOK, zoomResponse{
		Status:     "success",
		Message:    fmt.Sprintf("Zoom set to %sx", formatMultiplier(state.Multiplier)),
		ZoomLevel:  state.ZoomLevel,
		Multiplier: state.Multiplier,
	})
}

func (s *Server) handleICR(w http.ResponseWriter, r *http.Request) {
	if s.deps.Camera == nil {
		s.unavailable(w, "camera")
		return
	}
	enable, ok := parseEnable(r.URL.Query().Get("enable"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, enableParamHelp)
		return
	}
	if err := s.deps.Camera.SetICR(r.Context(), enable); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, icrResponse{
		Status:  "success",
		Message: "ICR Mode: " + onOff(enable),
		Enabled: enable,
	})
}

func (s *Server) handleIRCorrection(w http.ResponseWriter, r *http.Request) {
	if s.deps.Camera == nil {
		s.unavailable(w, "camera")
		return
	}
	enable, ok := parseEnable(r.URL.Query().Get("enable"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, enableParamHelp)
		return
	}
	if err := s.deps.Camera.SetIRCorrection(r.Context(), enable); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, irCorrectionResponse{
		Status:  "success",
		Message: "IR Correction: " + onOff(enable),
		Enabled: enable,
	})
}
