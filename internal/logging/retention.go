package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RunLogPattern matches the per-run log files the appliance writes.
const RunLogPattern = "drip-*.log"

// PruneRunLogs deletes run logs in dir last modified more than keepDays ago.
// The log named current is never removed. keepDays of zero disables pruning.
func PruneRunLogs(logger *slog.Logger, dir string, keepDays int, current string) int {
	if keepDays <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, RunLogPattern))
	if err != nil {
		return 0
	}
	if current != "" {
		if abs, err := filepath.Abs(current); err == nil {
			current = abs
		}
	}

	cutoff := time.Now().AddDate(0, 0, -keepDays)
	removed := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if path == current {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old run log not removed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on state_dir/logs"),
				String(FieldImpact, "the log stays on disk until the next run"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("run log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
