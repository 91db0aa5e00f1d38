package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"drip/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "drip")
	if cfg.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.StateDir, wantState)
	}
	if !filepath.IsAbs(cfg.RecordingsDir) {
		t.Fatalf("expected absolute recordings dir, got %q", cfg.RecordingsDir)
	}
	if cfg.CameraWidth != 1280 || cfg.CameraHeight != 720 {
		t.Fatalf("unexpected camera size %dx%d", cfg.CameraWidth, cfg.CameraHeight)
	}
	if !cfg.KeepOriginalFiles {
		t.Fatal("expected originals to be kept by default")
	}
	if cfg.ZoomStep != 512 {
		t.Fatalf("unexpected zoom step %d", cfg.ZoomStep)
	}
	if got := strings.Join(cfg.SerialPorts, ","); got != "/dev/ttyUSB0,/dev/ttyACM0,/dev/ttyS0" {
		t.Fatalf("unexpected serial ports %q", got)
	}
	if cfg.SerialBaud != 9600 {
		t.Fatalf("unexpected baud %d", cfg.SerialBaud)
	}
	if cfg.ProgressFile != "/tmp/ffmpeg_progress.txt" {
		t.Fatalf("unexpected progress file %q", cfg.ProgressFile)
	}
	if cfg.TranscodePollInterval().Milliseconds() != 200 {
		t.Fatalf("unexpected poll interval %v", cfg.TranscodePollInterval())
	}
	if cfg.APIBind != "0.0.0.0:5000" {
		t.Fatalf("unexpected api bind %q", cfg.APIBind)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "drip.toml")
	content := `
recordings_dir = "~/clips"
export_dest_dir = "/media/usb"
keep_original_files = false
zoom_step = 64
serial_ports = [" /dev/ttyUSB1 ", "", "/dev/ttyUSB1", "/dev/ttyAMA0"]
log_format = "JSON"
log_level = "Debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.RecordingsDir != filepath.Join(tempHome, "clips") {
		t.Fatalf("unexpected recordings dir %q", cfg.RecordingsDir)
	}
	if cfg.ExportDestDir != "/media/usb" {
		t.Fatalf("unexpected export dir %q", cfg.ExportDestDir)
	}
	if cfg.KeepOriginalFiles {
		t.Fatal("expected keep_original_files=false")
	}
	if cfg.ZoomStep != 64 {
		t.Fatalf("unexpected zoom step %d", cfg.ZoomStep)
	}
	if !reflect.DeepEqual(cfg.SerialPorts, []string{"/dev/ttyUSB1", "/dev/ttyAMA0"}) {
		t.Fatalf("unexpected serial ports %v", cfg.SerialPorts)
	}
	if cfg.LogFormat != "json" || cfg.LogLevel != "debug" {
		t.Fatalf("expected lowercased logging settings, got %q/%q", cfg.LogFormat, cfg.LogLevel)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "drip.toml")
	if err := os.WriteFile(configPath, []byte("ZOOM_LEVEL = 64\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zoom step", func(c *config.Config) { c.ZoomStep = 0 }, "zoom_step"},
		{"zoom step too big", func(c *config.Config) { c.ZoomStep = 20000 }, "zoom_step"},
		{"camera size", func(c *config.Config) { c.CameraWidth = 0 }, "camera_width"},
		{"poll interval", func(c *config.Config) { c.TranscodePollMS = 1 }, "transcode_poll_ms"},
		{"api bind", func(c *config.Config) { c.APIBind = "nonsense" }, "api_bind"},
		{"log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
		{"fps", func(c *config.Config) { c.RecordingFPS = 0 }, "recording_fps"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestAPIBindIgnoredWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.APIEnabled = false
	cfg.APIBind = "nonsense"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled api to skip bind validation, got %v", err)
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if !reflect.DeepEqual(decoded, config.Default()) {
		t.Fatalf("sample config drifted from defaults:\n got %+v\nwant %+v", decoded, config.Default())
	}
}

func TestEnsureDirectoriesCreatesStateLayout(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.StateDir = filepath.Join(base, "state")
	cfg.RecordingsDir = filepath.Join(base, "recordings")
	cfg.TempDir = filepath.Join(base, "tmp")
	cfg.ExportDestDir = filepath.Join(base, "usb")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.StateDir, cfg.LogDir(), cfg.RecordingsDir, cfg.TempDir, cfg.ExportDestDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if filepath.Dir(cfg.CatalogPath()) != cfg.StateDir || filepath.Dir(cfg.LockPath()) != cfg.StateDir {
		t.Fatal("expected catalog and lock inside state dir")
	}
}
