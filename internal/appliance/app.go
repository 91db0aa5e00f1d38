package appliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"drip/internal/capture"
	"drip/internal/catalog"
	"drip/internal/config"
	"drip/internal/controlapi"
	"drip/internal/export"
	"drip/internal/logging"
	"drip/internal/notifications"
	"drip/internal/preflight"
	"drip/internal/ptz"
	"drip/internal/recording"
	"drip/internal/status"
	"drip/internal/storagemon"
	"drip/internal/transcode"
)

// ErrAlreadyRunning is returned by Start when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another drip instance is already running")

// SourceOpener starts the camera frame source.
type SourceOpener func(ctx context.Context) (capture.Source, error)

// Option customizes App construction.
type Option func(*options)

type options struct {
	openSource SourceOpener
	serial     ptz.Opener
	sinks      recording.SinkFactory
	launcher   transcode.Launcher
	prober     transcode.Prober
	notifier   notifications.Service
}

// WithSourceOpener replaces the ffmpeg camera source.
func WithSourceOpener(open SourceOpener) Option {
	return func(o *options) { o.openSource = open }
}

// WithSerialOpener replaces the serial port opener.
func WithSerialOpener(open ptz.Opener) Option {
	return func(o *options) { o.serial = open }
}

// WithSinkFactory replaces the recording sink.
func WithSinkFactory(f recording.SinkFactory) Option {
	return func(o *options) { o.sinks = f }
}

// WithTranscoder replaces the remux process launcher and prober.
func WithTranscoder(l transcode.Launcher, p transcode.Prober) Option {
	return func(o *options) {
		o.launcher = l
		o.prober = p
	}
}

// WithNotifier replaces the ntfy service built from configuration.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// App is the appliance context object.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Board      *status.Board
	Catalog    *catalog.Store
	Controller *ptz.Controller
	Repeater   *ptz.Repeater
	Runner     *transcode.Runner
	Session    *recording.Session
	Exporter   *export.Exporter
	Monitor    *storagemon.Monitor
	API        *controlapi.Server

	openSource SourceOpener
	lock       *flock.Flock
	started    atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

// New builds every component. No device, socket or lock is touched until
// Start and Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("appliance: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	board := status.NewBoard()
	app := &App{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "appliance"),
		Board:  board,
		lock:   flock.New(cfg.LockPath()),
	}
	app.Catalog = store

	ctrlOpts := []ptz.Option{ptz.WithStatusBoard(board), ptz.WithLogger(logger)}
	if o.serial != nil {
		ctrlOpts = append(ctrlOpts, ptz.WithOpener(o.serial))
	}
	app.Controller = ptz.New(cfg, ctrlOpts...)
	app.Repeater = ptz.NewRepeater(cfg.ZoomRepeatInterval())

	runnerOpts := []transcode.Option{
		transcode.WithJobStore(store),
		transcode.WithStatusBoard(board),
		transcode.WithNotifier(notifier),
		transcode.WithLogger(logger),
	}
	if o.launcher != nil {
		runnerOpts = append(runnerOpts, transcode.WithLauncher(o.launcher))
	}
	if o.prober != nil {
		runnerOpts = append(runnerOpts, transcode.WithProber(o.prober))
	}
	app.Runner = transcode.New(cfg, runnerOpts...)

	sessionOpts := []recording.Option{recording.WithStatusBoard(board), recording.WithLogger(logger)}
	if o.sinks != nil {
		sessionOpts = append(sessionOpts, recording.WithSinkFactory(o.sinks))
	}
	app.Session = recording.NewSession(cfg, app.Runner, sessionOpts...)

	app.Exporter = export.New(cfg,
		export.WithRecorder(store),
		export.WithStatusBoard(board),
		export.WithRecordingGuard(app.Session.Recording),
		export.WithActiveOutput(app.Runner.ActiveOutput),
		export.WithNotifier(notifier),
		export.WithLogger(logger),
	)

	if cfg.StorageMonitor {
		app.Monitor = storagemon.New(logger, board, app.Controller)
		app.Monitor.SetNotifier(notifier)
	}
	if cfg.APIEnabled {
		app.API = controlapi.New(cfg, controlapi.Deps{
			Camera:   app.Controller,
			Repeater: app.Repeater,
			Session:  app.Session,
			Exporter: app.Exporter,
			Jobs:     app.Runner,
			History:  store,
			Board:    board,
		}, logger)
	}

	app.openSource = o.openSource
	if app.openSource == nil {
		app.openSource = func(ctx context.Context) (capture.Source, error) {
			return capture.OpenFFmpeg(ctx, cfg, logger)
		}
	}
	return app, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Start takes the single-instance lock, clears stale catalog rows and logs
// the preflight summary.
func (a *App) Start(ctx context.Context) error {
	if a.started.Load() {
		return errors.New("appliance already started")
	}
	ok, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	a.started.Store(true)

	if n, err := a.Catalog.MarkInterrupted(ctx); err != nil {
		a.logger.Warn("failed to mark interrupted jobs", logging.Error(err))
	} else if n > 0 {
		a.logger.Info("marked interrupted jobs failed", logging.Int64("count", n))
	}

	for _, result := range preflight.RunAll(ctx, a.cfg) {
		if result.Passed {
			a.logger.Debug("preflight passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(a.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.Bool("optional", result.Optional),
		)
	}

	a.logger.Info("drip appliance started",
		logging.String(logging.FieldEventType, "appliance_started"),
		logging.String("lock", a.cfg.LockPath()),
	)
	return nil
}

// Run serves the control API, storage monitor and capture loop until ctx
// ends.
func (a *App) Run(ctx context.Context) error {
	if !a.started.Load() {
		if err := a.Start(ctx); err != nil {
			return err
		}
	}

	if err := a.Monitor.Start(ctx); err != nil {
		a.logger.Warn("storage monitor start failed", logging.Error(err))
	}
	defer a.Monitor.Stop()

	if a.API != nil {
		if err := a.API.Start(ctx); err != nil {
			return err
		}
		defer a.API.Stop()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.captureLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	a.logger.Info("drip appliance shutting down")
	return nil
}

// captureLoop keeps a camera source open, reopening it after it ends.
func (a *App) captureLoop(ctx context.Context) {
	const retryDelay = 2 * time.Second
	for ctx.Err() == nil {
		source, err := a.openSource(ctx)
		if err != nil {
			logging.WarnWithContext(a.logger, "camera source unavailable", "capture_open_failed",
				logging.String(logging.FieldErrorHint, "check camera_device and ffmpeg"),
				logging.String(logging.FieldImpact, "recordings receive no frames"),
				logging.Error(err),
			)
		} else {
			stats, runErr := capture.Run(ctx, source, a.Session, a.logger)
			_ = source.Close()
			if runErr != nil {
				a.logger.Warn("capture loop ended", logging.Error(runErr), logging.Int64("frames_read", stats.Read))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

// Close shuts components down in dependency order: the recording sink, the
// post-processing job, the serial handle, the catalog and finally the lock.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if err := a.Session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}

		joinCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.Runner.Close(joinCtx); err != nil {
			errs = append(errs, fmt.Errorf("join transcode: %w", err))
		}
		cancel()

		a.Repeater.Release()
		if err := a.Controller.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close controller: %w", err))
		}
		if err := a.Catalog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close catalog: %w", err))
		}
		if a.started.Load() {
			if err := a.lock.Unlock(); err != nil {
				errs = append(errs, fmt.Errorf("release lock: %w", err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// Locked reports whether another process holds the appliance lock at path.
func Locked(path string) (bool, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, err
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
