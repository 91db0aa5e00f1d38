package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"drip/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose directories all live under one temp dir.
// Serial candidates are cleared so no test touches real hardware.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TempDir = filepath.Join(base, "tmp")
	cfgVal.RecordingsDir = filepath.Join(base, "recordings")
	cfgVal.ExportDestDir = filepath.Join(base, "export")
	cfgVal.StateDir = filepath.Join(base, "state")
	cfgVal.ProgressFile = filepath.Join(cfgVal.TempDir, "ffmpeg_progress.txt")
	cfgVal.TranscodePollMS = 10
	cfgVal.APIBind = "127.0.0.1:0"
	cfgVal.StorageMonitor = false
	cfgVal.SerialPorts = []string{filepath.Join(base, "ttyNONE")}

	for _, dir := range []string{cfgVal.TempDir, cfgVal.RecordingsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithKeepOriginals sets the export keep-originals policy.
func WithKeepOriginals(keep bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.KeepOriginalFiles = keep
	}
}

// WithStubbedBinaries installs no-op ffmpeg and ffprobe (or the named tools)
// in a bin dir on PATH and points the config at them.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			stub := filepath.Join(binDir, name)
			if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "ffmpeg":
				b.cfg.FFmpegBinary = stub
			case "ffprobe":
				b.cfg.FFprobeBinary = stub
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.StateDir)
}
