package controlapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"drip/internal/catalog"
	"drip/internal/export"
	"drip/internal/ptz"
	"drip/internal/recording"
	"drip/internal/status"
	"drip/internal/transcode"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status    string              `json:"status"`
	Message   string              `json:"message"`
	Progress  int                 `json:"progress"`
	Board     status.Snapshot     `json:"board"`
	Recording *recording.Info     `json:"recording,omitempty"`
	Job       *transcode.Snapshot `json:"job,omitempty"`
	Camera    *ptz.State          `json:"camera,omitempty"`
}

type recordingResponse struct {
	Status    string              `json:"status"`
	Message   string              `json:"message"`
	SessionID string              `json:"session_id,omitempty"`
	Job       *transcode.Snapshot `json:"job,omitempty"`
}

type recordingsResponse struct {
	Status     string             `json:"status"`
	Recordings []export.Recording `json:"recordings"`
}

type exportRequest struct {
	Files         []string `json:"files"`
	Dest          string   `json:"dest"`
	KeepOriginals *bool    `json:"keep_originals"`
}

type exportResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Result  export.Result `json:"result"`
}

type jobsResponse struct {
	Status string        `json:"status"`
	Jobs   []catalog.Job `json:"jobs"`
}

type exportsResponse struct {
	Status  string                 `json:"status"`
	Exports []catalog.ExportRecord `json:"exports"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	board := s.deps.Board.Snapshot()
	resp := StatusResponse{
		Status:   "ok",
		Message:  board.Message,
		Progress: board.Progress,
		Board:    board,
	}
	if s.deps.Session != nil {
		info := s.deps.Session.Info()
		resp.Recording = &info
	}
	if s.deps.Jobs != nil {
		if job, ok := s.deps.Jobs.Current(); ok {
			snap := job.Snapshot()
			resp.Job = &snap
		}
	}
	if s.deps.Camera != nil {
		state := s.deps.Camera.State()
		resp.Camera = &state
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		s.unavailable(w, "recording")
		return
	}
	id, err := s.deps.Session.Start(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recordingResponse{Status: "success", Message: status.RecStarted, SessionID: id})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		s.unavailable(w, "recording")
		return
	}
	job, err := s.deps.Session.Stop(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := recordingResponse{Status: "success", Message: status.RecStopped}
	if job != nil {
		snap := job.Snapshot()
		resp.SessionID = snap.SessionID
		resp.Job = &snap
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordings(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Exporter == nil {
		s.unavailable(w, "export")
		return
	}
	list, err := s.deps.Exporter.Recordings()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []export.Recording{}
	}
	s.writeJSON(w, http.StatusOK, recordingsResponse{Status: "ok", Recordings: list})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		s.unavailable(w, "export")
		return
	}
	var req exportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := s.deps.Exporter.Export(r.Context(), export.Request{
		Files: req.Files,
		Dest:  req.Dest,
		Keep:  req.KeepOriginals,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	message := status.NothingSelected
	if res.Exported > 0 {
		message = status.Exported(res.Exported)
	}
	s.writeJSON(w, http.StatusOK, exportResponse{Status: "success", Message: message, Result: res})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.unavailable(w, "catalog")
		return
	}
	jobs, err := s.deps.History.ListJobs(r.Context(), limitParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []catalog.Job{}
	}
	s.writeJSON(w, http.StatusOK, jobsResponse{Status: "ok", Jobs: jobs})
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.unavailable(w, "catalog")
		return
	}
	records, err := s.deps.History.ListExports(r.Context(), limitParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []catalog.ExportRecord{}
	}
	s.writeJSON(w, http.StatusOK, exportsResponse{Status: "ok", Exports: records})
}

func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 50
	}
	return limit
}
