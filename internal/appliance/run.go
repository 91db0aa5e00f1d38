package appliance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"drip/internal/config"
	"drip/internal/deps"
	"drip/internal/logging"
	"drip/internal/logs"
)

// RunOptions configures the foreground appliance process.
type RunOptions struct {
	LogLevel    string
	Development bool
}

// RunProcess runs the appliance until SIGINT or SIGTERM. Each run writes its
// own log file under the state directory; drip.log points at the newest.
func RunProcess(cmdCtx context.Context, cfg *config.Config, opts RunOptions) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logDir := cfg.LogDir()
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(logDir, fmt.Sprintf("drip-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.LogFormat,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(logDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update drip.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, logDir, cfg.LogRetentionDays, logPath)

	pidPath := filepath.Join(cfg.StateDir, "drip.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	app, err := New(cfg, logger)
	if err != nil {
		logger.Error("appliance init failed", logging.Error(err))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("appliance shutdown incomplete", logging.Error(err))
		}
	}()

	if err := app.Start(signalCtx); err != nil {
		return err
	}
	return app.Run(signalCtx)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.Current(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, st := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(st.Command+"_available", st.Available),
			logging.String(st.Command+"_binary", st.Command),
		)
	}
	attrs = append(attrs,
		logging.String("camera_device", cfg.CameraDevice),
		logging.Any("serial_ports", cfg.SerialPorts),
		logging.Bool("keep_original_files", cfg.KeepOriginalFiles),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
