package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"drip/internal/logging"
	"drip/internal/services"
)

func TestNewDefaultsToConsole(t *testing.T) {
	logger, err := logging.New(logging.Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(data)
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "transcode")
	component.Info("job finished", logging.String("output", "/srv/rec/a b.avi"), logging.Int("frames", 300))

	content := readLog(t, logPath)
	if !strings.Contains(content, "INFO  transcode: job finished") {
		t.Fatalf("expected level and component prefix, got %q", content)
	}
	if !strings.Contains(content, `output="/srv/rec/a b.avi"`) {
		t.Fatalf("expected quoted value with space, got %q", content)
	}
	if !strings.Contains(content, "frames=300") {
		t.Fatalf("expected integer field, got %q", content)
	}
	if strings.Contains(content, "component=") {
		t.Fatalf("component should be rendered as prefix only, got %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no source location at info level, got %q", content)
	}
}

func TestConsoleLoggerFoldsJobIntoPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-job.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "3f2a1b2c-0000-4000-8000-000000000001")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "transcode")).Info("job started")

	content := readLog(t, logPath)
	if !strings.Contains(content, "transcode[3f2a1b2c]: job started") {
		t.Fatalf("expected job prefix, got %q", content)
	}
	if strings.Contains(content, "job_id=") {
		t.Fatalf("job id should only appear in the prefix, got %q", content)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with source")

	content := readLog(t, logPath)
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected source location in debug logs, got %q", content)
	}
}

func TestLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	content := readLog(t, logPath)
	if strings.Contains(content, "hidden") {
		t.Fatalf("info record should be filtered at warn level, got %q", content)
	}
	if !strings.Contains(content, "WARN  shown") {
		t.Fatalf("expected warn record, got %q", content)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithSessionID(context.Background(), "sess-1")
	ctx = services.WithJobID(ctx, "job-7")
	logging.WithContext(ctx, logger).Info("context message")

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace([]byte(readLog(t, logPath))), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload[logging.FieldSessionID] != "sess-1" || payload[logging.FieldJobID] != "job-7" {
		t.Fatalf("expected session and job fields, got %v", payload)
	}
}

type captureHandler struct {
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func recordAttrs(r slog.Record) map[string]string {
	out := map[string]string{}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	handler := &captureHandler{}
	logger := slog.New(handler)

	logging.WarnWithContext(logger, "export skipped", "export_item_failed",
		logging.String(logging.FieldImpact, "file stays on device"),
		logging.Error(errors.New("boom")),
	)

	if len(handler.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(handler.records))
	}
	attrs := recordAttrs(handler.records[0])
	if attrs[logging.FieldEventType] != "export_item_failed" {
		t.Fatalf("unexpected event_type: %q", attrs[logging.FieldEventType])
	}
	if attrs[logging.FieldImpact] != "file stays on device" {
		t.Fatalf("caller impact should be preserved, got %q", attrs[logging.FieldImpact])
	}
	if attrs[logging.FieldErrorHint] == "" {
		t.Fatal("expected default error_hint")
	}
}

func TestNilLoggerHelpersAreSafe(t *testing.T) {
	logging.WarnWithContext(nil, "msg", "evt")
	logging.ErrorWithContext(nil, "msg", "evt")
	if logging.NewComponentLogger(nil, "x") == nil {
		t.Fatal("expected no-op component logger")
	}
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected no-op logger from WithContext")
	}
}

func TestPruneRunLogs(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "drip-old.log")
	newLog := filepath.Join(dir, "drip-new.log")
	current := filepath.Join(dir, "drip-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{oldLog, newLog, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{oldLog, current, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if removed := logging.PruneRunLogs(logging.NewNop(), dir, 7, current); removed != 1 {
		t.Fatalf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{newLog, current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}

func TestPruneRunLogsDisabled(t *testing.T) {
	if removed := logging.PruneRunLogs(nil, t.TempDir(), 0, ""); removed != 0 {
		t.Fatalf("expected no removal when disabled, got %d", removed)
	}
}
