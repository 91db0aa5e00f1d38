package recording

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"drip/internal/config"
	"drip/internal/logging"
	"drip/internal/services"
	"drip/internal/status"
	"drip/internal/transcode"
)

// State is the session's lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
)

const tempNameLayout = "20060102_150405"

// Finalizer accepts finished captures. *transcode.Runner satisfies it.
type Finalizer interface {
	Busy() bool
	Submit(ctx context.Context, req transcode.Request) (*transcode.Job, error)
}

// Info is a snapshot of the session.
type Info struct {
	State           State     `json:"state"`
	SessionID       string    `json:"session_id,omitempty"`
	TempPath        string    `json:"temp_path,omitempty"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	FrameSize       *Size     `json:"frame_size,omitempty"`
	Frames          int64     `json:"frames"`
}

// Option configures a session.
type Option func(*Session)

// WithSinkFactory injects the sink implementation (primarily for tests).
func WithSinkFactory(f SinkFactory) Option {
	return func(s *Session) {
		if f != nil {
			s.sinks = f
		}
	}
}

// WithStatusBoard routes operator messages to board.
func WithStatusBoard(board *status.Board) Option {
	return func(s *Session) {
		s.board = board
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logging.NewComponentLogger(logger, "recording")
	}
}

// WithClock overrides time.Now (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session is the recording state machine. All methods are safe for
// concurrent use; SubmitFrame is expected from a single capture loop.
type Session struct {
	mu sync.Mutex

	state     State
	id        string
	tempPath  string
	startedAt time.Time
	duration  float64
	frameSize *Size
	frames    int64
	sink      Sink
	handoff   bool

	tempDir   string
	fps       float64
	sinks     SinkFactory
	finalizer Finalizer
	board     *status.Board
	logger    *slog.Logger
	now       func() time.Time
}

// NewSession constructs an idle session that hands captures to finalizer.
func NewSession(cfg *config.Config, finalizer Finalizer, opts ...Option) *Session {
	s := &Session{
		state:     StateIdle,
		tempDir:   "/tmp",
		fps:       transcode.DefaultFPS,
		finalizer: finalizer,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	if cfg != nil {
		s.tempDir = cfg.TempDir
		s.fps = cfg.RecordingFPS
		s.sinks = FFmpegSinkFactory{Binary: cfg.FFmpegBinary, OverlayTimestamp: cfg.OverlayTimestamp}
	} else {
		s.sinks = FFmpegSinkFactory{}
	}
	for _, opt := range opts {
		opt(s)
	}
	if f, ok := s.sinks.(FFmpegSinkFactory); ok && f.Logger == nil {
		f.Logger = s.logger
		s.sinks = f
	}
	return s
}

// refreshLocked applies the external Finalizing → Idle observation.
func (s *Session) refreshLocked() {
	if s.state == StateFinalizing && !s.handoff && (s.finalizer == nil || !s.finalizer.Busy()) {
		s.state = StateIdle
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return s.state
}

// Recording reports whether frames are being accepted.
func (s *Session) Recording() bool {
	return s.State() == StateRecording
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	info := Info{
		State:     s.state,
		SessionID: s.id,
		TempPath:  s.tempPath,
		StartedAt: s.startedAt,
		Frames:    s.frames,
	}
	if s.state == StateFinalizing {
		info.DurationSeconds = s.duration
	}
	if s.frameSize != nil {
		size := *s.frameSize
		info.FrameSize = &size
	}
	return info
}

// Start begins a new recording. It fails while a previous capture is still
// being processed or a recording is already running.
func (s *Session) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	if s.state == StateRecording {
		return "", services.Wrap(services.ErrAlreadyRecording, "recording", "start", s.tempPath, nil)
	}
	if s.state != StateIdle || (s.finalizer != nil && s.finalizer.Busy()) {
		s.board.Set(status.Processing)
		return "", services.Wrap(services.ErrAlreadyProcessing, "recording", "start", "", nil)
	}

	now := s.now()
	s.id = uuid.NewString()
	s.tempPath = filepath.Join(s.tempDir, now.Format(tempNameLayout)+"_temp.avi")
	s.startedAt = now
	s.duration = 0
	s.frameSize = nil
	s.frames = 0
	s.sink = nil
	s.state = StateRecording

	s.board.Update(status.RecStarted, 0)
	logging.WithContext(services.WithSessionID(ctx, s.id), s.logger).Info("recording started",
		logging.String("temp_path", s.tempPath),
		logging.String(logging.FieldEventType, "recording_started"),
	)
	return s.tempPath, nil
}

// SubmitFrame writes one frame. The first frame fixes the frame size and
// opens the sink. Sink failures abort the session back to Idle without a
// transcode job.
func (s *Session) SubmitFrame(ctx context.Context, frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return services.ErrNotRecording
	}

	size := frame.Size()
	if s.frameSize == nil {
		if !size.Valid() {
			return s.abortLocked(ctx, services.Wrap(services.ErrSinkOpen, "recording", "open sink", "invalid frame size "+size.String(), nil))
		}
		sink, err := s.sinks.Open(ctx, s.tempPath, size, s.fps)
		if err != nil {
			return s.abortLocked(ctx, services.Wrap(services.ErrSinkOpen, "recording", "open sink", s.tempPath, err))
		}
		s.frameSize = &size
		s.sink = sink
		s.board.Set(status.Recording)
	} else if size != *s.frameSize {
		return s.abortLocked(ctx, services.Wrap(services.ErrSinkWrite, "recording", "write frame",
			fmt.Sprintf("frame size changed from %s to %s", *s.frameSize, size), nil))
	}

	if err := s.sink.WriteFrame(frame); err != nil {
		return s.abortLocked(ctx, services.Wrap(services.ErrSinkWrite, "recording", "write frame", s.tempPath, err))
	}
	s.frames++
	return nil
}

func (s *Session) abortLocked(ctx context.Context, cause error) error {
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			s.logger.Debug("sink close after failure", logging.Error(err))
		}
		s.sink = nil
	}
	s.state = StateIdle
	s.board.Set(services.StatusText(cause))
	logging.ErrorWithContext(logging.WithContext(services.WithSessionID(ctx, s.id), s.logger),
		"recording aborted", "recording_aborted",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check camera output and temp_dir free space"),
	)
	return cause
}

// Stop ends the recording, releases the sink and hands the capture to the
// finalizer. It returns once the job is registered, not when it completes.
func (s *Session) Stop(ctx context.Context) (*transcode.Job, error) {
	s.mu.Lock()
	s.refreshLocked()
	if s.state != StateRecording {
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrNotRecording, "recording", "stop", "", nil)
	}
	s.duration = s.now().Sub(s.startedAt).Seconds()
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			logging.WarnWithContext(s.logger, "sink close reported an error", "sink_close_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "capture may be truncated; transcode validation decides"),
			)
		}
		s.sink = nil
	}
	s.state = StateFinalizing
	s.handoff = true
	req := transcode.Request{SessionID: s.id, SourcePath: s.tempPath, DurationSeconds: s.duration}
	frames := s.frames
	s.board.Set(status.RecStopped)
	s.mu.Unlock()

	ctx = services.WithSessionID(ctx, req.SessionID)
	logging.WithContext(ctx, s.logger).Info("recording stopped",
		logging.String("temp_path", req.SourcePath),
		logging.Float64("duration_seconds", req.DurationSeconds),
		logging.Int64("frames", frames),
		logging.String(logging.FieldEventType, "recording_stopped"),
	)

	var (
		job *transcode.Job
		err error
	)
	if s.finalizer != nil {
		job, err = s.finalizer.Submit(ctx, req)
	}
	s.mu.Lock()
	s.handoff = false
	if err != nil {
		s.state = StateIdle
	}
	s.mu.Unlock()
	return job, err
}

// Close releases an open sink at shutdown. A running recording is dropped
// rather than handed off.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.sink != nil {
		err = s.sink.Close()
		s.sink = nil
	}
	if s.state == StateRecording {
		s.state = StateIdle
	}
	return err
}
