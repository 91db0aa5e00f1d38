package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"drip/internal/catalog"
	"drip/internal/config"
	"drip/internal/logging"
	"drip/internal/media/ffprobe"
	"drip/internal/notifications"
	"drip/internal/services"
	"drip/internal/status"
)

// Prober counts source frames and validates deliverables.
type Prober interface {
	CountFrames(ctx context.Context, path string) (int64, error)
	Validate(ctx context.Context, path string) error
}

type ffprobeProber struct {
	binary string
}

func (p ffprobeProber) CountFrames(ctx context.Context, path string) (int64, error) {
	return ffprobe.CountFrames(ctx, p.binary, path)
}

func (p ffprobeProber) Validate(ctx context.Context, path string) error {
	return ffprobe.Validate(ctx, p.binary, path)
}

// JobStore persists job transitions. *catalog.Store satisfies it.
type JobStore interface {
	InsertJob(ctx context.Context, job catalog.Job) error
	UpdateJobProbe(ctx context.Context, id string, totalFrames int64, fps float64) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	FinishJob(ctx context.Context, id string, status catalog.JobStatus, progress int, errText string) error
	GetJob(ctx context.Context, id string) (catalog.Job, error)
}

// Option configures the runner.
type Option func(*Runner)

// WithLauncher injects a process launcher (primarily for tests).
func WithLauncher(l Launcher) Option {
	return func(r *Runner) {
		if l != nil {
			r.launcher = l
		}
	}
}

// WithProber injects a frame counter and validator (primarily for tests).
func WithProber(p Prober) Option {
	return func(r *Runner) {
		if p != nil {
			r.prober = p
		}
	}
}

// WithJobStore records every job in store.
func WithJobStore(store JobStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithStatusBoard routes operator messages and progress to board.
func WithStatusBoard(board *status.Board) Option {
	return func(r *Runner) {
		r.board = board
	}
}

// WithNotifier publishes saved and failed recordings.
func WithNotifier(n notifications.Service) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logging.NewComponentLogger(logger, "transcode")
	}
}

// Runner executes at most one Job at a time.
type Runner struct {
	ffmpeg        string
	recordingsDir string
	progressFile  string
	pollInterval  time.Duration
	killOnCancel  bool

	launcher Launcher
	prober   Prober
	store    JobStore
	board    *status.Board
	notifier notifications.Service
	logger   *slog.Logger

	submitMu sync.Mutex
	mu       sync.Mutex
	current  *Job
}

// New constructs a runner from configuration.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		ffmpeg:        "ffmpeg",
		recordingsDir: "recordings",
		progressFile:  filepath.Join(os.TempDir(), "ffmpeg_progress.txt"),
		pollInterval:  200 * time.Millisecond,
		launcher:      execLauncher{},
		prober:        ffprobeProber{binary: "ffprobe"},
		logger:        logging.NewNop(),
	}
	if cfg != nil {
		r.ffmpeg = cfg.FFmpegBinary
		r.recordingsDir = cfg.RecordingsDir
		r.progressFile = cfg.ProgressFile
		r.pollInterval = cfg.TranscodePollInterval()
		r.killOnCancel = cfg.TranscodeKillOnCancel
		r.prober = ffprobeProber{binary: cfg.FFprobeBinary}
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pollInterval <= 0 {
		r.pollInterval = 200 * time.Millisecond
	}
	return r
}

// Busy reports whether a job is running.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	job := r.current
	r.mu.Unlock()
	return job != nil && job.Running()
}

// Current returns the most recent job, if any.
func (r *Runner) Current() (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

// ActiveOutput returns the deliverable path of the running job, or "".
func (r *Runner) ActiveOutput() string {
	r.mu.Lock()
	job := r.current
	r.mu.Unlock()
	if job == nil || !job.Running() {
		return ""
	}
	return job.dest
}

// Cancel requests cancellation of the running job, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	job := r.current
	r.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// Wait blocks until the current job is terminal or ctx ends.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	job := r.current
	r.mu.Unlock()
	if job == nil {
		return nil
	}
	select {
	case <-job.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the running job and joins it.
func (r *Runner) Close(ctx context.Context) error {
	r.Cancel()
	return r.Wait(ctx)
}

// Submit joins any previous job and then starts a new one for req. The job
// runs in the background; Submit returns once it is registered.
func (r *Runner) Submit(ctx context.Context, req Request) (*Job, error) {
	r.submitMu.Lock()
	defer r.submitMu.Unlock()

	if err := r.Wait(ctx); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	job := newJob(id, req, DestPath(r.recordingsDir, req.SourcePath))

	r.mu.Lock()
	r.current = job
	r.mu.Unlock()

	jobCtx := services.WithJobID(context.WithoutCancel(ctx), id)
	jobCtx = services.WithSessionID(jobCtx, req.SessionID)
	go r.run(jobCtx, job)
	return job, nil
}

// Retry re-runs a failed job whose source file is still present.
func (r *Runner) Retry(ctx context.Context, jobID string) (*Job, error) {
	if r.store == nil {
		return nil, errors.New("retry requires a job catalog")
	}
	prev, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if prev.Status != catalog.JobFailed {
		return nil, fmt.Errorf("job %s is %s; only failed jobs can be retried", jobID, prev.Status)
	}
	if _, err := os.Stat(prev.SourcePath); err != nil {
		return nil, services.Wrap(services.ErrSourceMissing, "transcode", "retry", prev.SourcePath, err)
	}
	return r.Submit(ctx, Request{
		SessionID:       prev.SessionID,
		SourcePath:      prev.SourcePath,
		DurationSeconds: prev.DurationSeconds,
		RetryOf:         prev.ID,
	})
}

func (r *Runner) run(ctx context.Context, job *Job) {
	defer close(job.done)
	logger := logging.WithContext(ctx, r.logger)

	r.recordStart(ctx, logger, job)
	err := r.execute(ctx, logger, job)
	if err != nil {
		job.fail(err)
		r.board.Set(services.StatusText(err))
		r.recordFinish(ctx, logger, job, catalog.JobFailed, err)
		attrs := []logging.Attr{
			logging.String("source", job.req.SourcePath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "raw capture kept for retry"),
			logging.String(logging.FieldErrorHint, "run `drip jobs` and `drip transcode retry <id>`"),
		}
		if errors.Is(err, services.ErrCancelled) {
			logger.Info("transcode cancelled", logging.Args(attrs...)...)
			return
		}
		logging.ErrorWithContext(logger, "transcode failed", "transcode_failed", attrs...)
		r.notify(ctx, logger, notifications.EventTranscodeFailed, notifications.Payload{
			"file":  job.req.SourcePath,
			"error": err.Error(),
		})
		return
	}

	job.succeed()
	r.board.Update(status.Saved, 100)
	r.recordFinish(ctx, logger, job, catalog.JobSucceeded, nil)
	r.cleanup(logger, job.req.SourcePath)
	logger.Info("transcode complete",
		logging.String("output", job.dest),
		logging.String(logging.FieldEventType, "transcode_complete"),
	)
	r.notify(ctx, logger, notifications.EventRecordingSaved, notifications.Payload{
		"file":            job.dest,
		"durationSeconds": job.req.DurationSeconds,
	})
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
		)
	}
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, job *Job) error {
	src := job.req.SourcePath
	if _, err := os.Stat(src); err != nil {
		return services.Wrap(services.ErrSourceMissing, "transcode", "stat source", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(job.dest), 0o755); err != nil {
		return services.Wrap(services.ErrTranscode, "transcode", "create recordings dir", filepath.Dir(job.dest), err)
	}

	frames, err := r.prober.CountFrames(ctx, src)
	if err != nil {
		logging.WarnWithContext(logger, "frame count unavailable; using default rate", "frame_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "progress unknown and playback rate assumed 30 fps"),
			logging.String(logging.FieldErrorHint, "check ffprobe_binary and the raw capture"),
		)
		frames = 0
	}
	fps := ComputeFPS(frames, job.req.DurationSeconds)
	job.setProbe(frames, fps)
	if r.store != nil {
		if err := r.store.UpdateJobProbe(ctx, job.id, frames, fps); err != nil {
			logger.Warn("catalog probe update failed", logging.Error(err))
		}
	}
	logger.Info("transcode starting",
		logging.String("source", src),
		logging.String("output", job.dest),
		logging.Int64("total_frames", frames),
		logging.Float64("fps", fps),
		logging.Float64("duration_seconds", job.req.DurationSeconds),
	)

	r.board.Update(status.Processing, 0)
	if err := os.Remove(r.progressFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debug("stale progress file not removed", logging.Error(err))
	}

	args := []string{
		"-i", src,
		"-c", "copy",
		"-r", fmt.Sprintf("%.6f", fps),
		"-progress", r.progressFile,
		"-hide_banner",
		"-loglevel", "error",
		job.dest,
		"-y",
	}
	proc, err := r.launcher.Start(ctx, r.ffmpeg, args)
	if err != nil {
		return services.Wrap(services.ErrTranscodeStart, "transcode", "start ffmpeg", r.ffmpeg, err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- proc.Wait()
	}()

	sampler := logging.NewProgressSampler(5)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var waitErr error
poll:
	for {
		select {
		case <-job.cancelCh:
			if r.killOnCancel {
				if err := proc.Terminate(); err != nil {
					logger.Warn("ffmpeg terminate failed", logging.Error(err))
				}
			}
			r.removeInvalid(logger, job.dest)
			return services.Wrap(services.ErrCancelled, "transcode", "poll", "cancel requested", nil)
		case waitErr = <-exited:
			break poll
		case <-ticker.C:
			r.pollProgress(ctx, logger, job, sampler)
		}
	}
	r.pollProgress(ctx, logger, job, sampler)
	if waitErr != nil {
		logger.Debug("ffmpeg exited with error; validating output anyway", logging.Error(waitErr))
	}

	if err := r.prober.Validate(ctx, job.dest); err != nil {
		r.removeInvalid(logger, job.dest)
		return services.Wrap(services.ErrOutputInvalid, "transcode", "validate", job.dest, err)
	}

	return nil
}

// cleanup removes the raw capture and progress artifact of a succeeded job.
func (r *Runner) cleanup(logger *slog.Logger, src string) {
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "raw capture not removed", "source_cleanup_failed",
			logging.String("source", src),
			logging.Error(err),
			logging.String(logging.FieldImpact, "temp directory keeps a duplicate capture"),
		)
	}
	if err := os.Remove(r.progressFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debug("progress file not removed", logging.Error(err))
	}
}

func (r *Runner) pollProgress(ctx context.Context, logger *slog.Logger, job *Job, sampler *logging.ProgressSampler) {
	frame, ok := ReadProgressFile(r.progressFile)
	if !ok {
		return
	}
	percent, known := job.observeFrame(frame)
	if !known {
		return
	}
	r.board.SetProgress(percent)
	if !sampler.ShouldLog(percent) {
		return
	}
	logger.Debug("transcode progress", logging.Int("percent", percent), logging.Int64("frame", frame))
	if r.store != nil {
		if err := r.store.UpdateJobProgress(ctx, job.id, percent); err != nil {
			logger.Debug("catalog progress update failed", logging.Error(err))
		}
	}
}

// removeInvalid deletes a partial or invalid deliverable so exports never see it.
func (r *Runner) removeInvalid(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("invalid deliverable not removed", logging.String("output", path), logging.Error(err))
	}
}

func (r *Runner) recordStart(ctx context.Context, logger *slog.Logger, job *Job) {
	if r.store == nil {
		return
	}
	snap := job.Snapshot()
	err := r.store.InsertJob(ctx, catalog.Job{
		ID:              snap.ID,
		SessionID:       snap.SessionID,
		SourcePath:      snap.SourcePath,
		DestPath:        snap.DestPath,
		DurationSeconds: snap.DurationSeconds,
		Status:          catalog.JobRunning,
		RetryOf:         job.req.RetryOf,
		CreatedAt:       snap.StartedAt,
	})
	if err != nil {
		logger.Warn("catalog insert failed", logging.Error(err))
	}
}

func (r *Runner) recordFinish(ctx context.Context, logger *slog.Logger, job *Job, st catalog.JobStatus, err error) {
	if r.store == nil {
		return
	}
	errText := ""
	if err != nil {
		errText = strings.TrimSpace(err.Error())
	}
	if ferr := r.store.FinishJob(ctx, job.id, st, job.Snapshot().Progress, errText); ferr != nil {
		logger.Warn("catalog finish failed", logging.Error(ferr))
	}
}
