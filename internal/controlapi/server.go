package controlapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"drip/internal/catalog"
	"drip/internal/config"
	"drip/internal/export"
	"drip/internal/logging"
	"drip/internal/ptz"
	"drip/internal/recording"
	"drip/internal/status"
	"drip/internal/transcode"
)

// Camera drives the PTZ head. *ptz.Controller satisfies it.
type Camera interface {
	SetZoom(ctx context.Context, level int) error
	ZoomIn(ctx context.Context) error
	ZoomOut(ctx context.Context) error
	SetICR(ctx context.Context, enabled bool) error
	SetIRCorrection(ctx context.Context, enabled bool) error
	State() ptz.State
}

// Recorder starts and stops captures. *recording.Session satisfies it.
type Recorder interface {
	Start(ctx context.Context) (string, error)
	Stop(ctx context.Context) (*transcode.Job, error)
	Info() recording.Info
}

// Exporter lists and exports finished recordings. *export.Exporter satisfies it.
type Exporter interface {
	Recordings() ([]export.Recording, error)
	Export(ctx context.Context, req export.Request) (export.Result, error)
}

// JobSource reports the running transcode. *transcode.Runner satisfies it.
type JobSource interface {
	Current() (*transcode.Job, bool)
}

// History reads past jobs and exports. *catalog.Store satisfies it.
type History interface {
	ListJobs(ctx context.Context, limit int) ([]catalog.Job, error)
	ListExports(ctx context.Context, limit int) ([]catalog.ExportRecord, error)
}

// Deps wires the server to the appliance. Nil collaborators make their
// routes answer 503.
type Deps struct {
	Camera   Camera
	Repeater *ptz.Repeater
	Session  Recorder
	Exporter Exporter
	Jobs     JobSource
	History  History
	Board    *status.Board
}

// Server serves the control API.
type Server struct {
	bind   string
	token  string
	deps   Deps
	logger *slog.Logger
	router chi.Router

	listener net.Listener
	server   *http.Server
}

// New builds the server and its routes.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "control-api"),
	}
	if cfg != nil {
		s.bind = strings.TrimSpace(cfg.APIBind)
		s.token = strings.TrimSpace(cfg.APIToken)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.authenticate)

	r.Get("/", s.handleIndex)

	r.Get("/zoom", s.handleZoom)
	r.Post("/zoom/{direction}/press", s.handleZoomPress)
	r.Post("/zoom/release", s.handleZoomRelease)
	r.Get("/icr/toggle", s.handleICR)
	r.Get("/ir_correction", s.handleIRCorrection)

	r.Get("/status", s.handleStatus)
	r.Post("/recording/start", s.handleRecordingStart)
	r.Post("/recording/stop", s.handleRecordingStop)
	r.Get("/recordings", s.handleRecordings)
	r.Post("/export", s.handleExport)
	r.Get("/jobs", s.handleJobs)
	r.Get("/exports", s.handleExports)
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down and releases any held zoom.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.deps.Repeater != nil {
		s.deps.Repeater.Release()
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
			logging.String(logging.FieldCorrelationID, middleware.GetReqID(r.Context())),
		)
	})
}

// authenticate requires "Authorization: Bearer <token>" when a token is
// configured.
func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
