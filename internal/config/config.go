package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Config encapsulates every knob the appliance and CLI read. Keys are flat;
// no tables are recognized.
type Config struct {
	// Presentation collaborator settings, passed through untouched.
	DisplayWidth  int  `toml:"display_width"`
	DisplayHeight int  `toml:"display_height"`
	FullScreen    bool `toml:"full_screen"`
	ShowNavBar    bool `toml:"show_nav_bar"`
	ShowFPS       bool `toml:"show_fps"`

	// Camera source.
	CameraWidth  int    `toml:"camera_width"`
	CameraHeight int    `toml:"camera_height"`
	CameraDevice string `toml:"camera_device"`
	CameraFormat string `toml:"camera_format"`

	// Recording.
	RecordingFPS     float64 `toml:"recording_fps"`
	OverlayTimestamp bool    `toml:"overlay_timestamp"`
	TempDir          string  `toml:"temp_dir"`
	RecordingsDir    string  `toml:"recordings_dir"`

	// Transcoding.
	ProgressFile          string `toml:"progress_file"`
	TranscodePollMS       int    `toml:"transcode_poll_ms"`
	TranscodeKillOnCancel bool   `toml:"transcode_kill_on_cancel"`
	FFmpegBinary          string `toml:"ffmpeg_binary"`
	FFprobeBinary         string `toml:"ffprobe_binary"`

	// Camera head.
	ZoomStep             int      `toml:"zoom_step"`
	ZoomRepeatMS         int      `toml:"zoom_repeat_ms"`
	SerialPorts          []string `toml:"serial_ports"`
	SerialBaud           int      `toml:"serial_baud"`
	SerialReadReplies    bool     `toml:"serial_read_replies"`
	SerialReplyTimeoutMS int      `toml:"serial_reply_timeout_ms"`

	// Export.
	ExportDestDir        string `toml:"export_dest_dir"`
	KeepOriginalFiles    bool   `toml:"keep_original_files"`
	ExportVerifyChecksum bool   `toml:"export_verify_checksum"`
	ExportManifest       bool   `toml:"export_manifest"`

	// Notifications.
	NtfyTopic          string `toml:"ntfy_topic"`
	NtfyRequestTimeout int    `toml:"ntfy_request_timeout"`

	// Daemon.
	APIEnabled     bool   `toml:"api_enabled"`
	APIBind        string `toml:"api_bind"`
	APIToken       string `toml:"api_token"`
	StorageMonitor bool   `toml:"storage_monitor"`
	StateDir       string `toml:"state_dir"`

	// Logging.
	LogFormat        string `toml:"log_format"`
	LogLevel         string `toml:"log_level"`
	LogRetentionDays int    `toml:"log_retention_days"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("drip.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for appliance operation.
// The export destination is created on a best-effort basis so the appliance
// can run while removable storage is unplugged.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.RecordingsDir, c.TempDir, c.StateDir, c.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.ExportDestDir) != "" {
		_ = os.MkdirAll(c.ExportDestDir, 0o755)
	}
	return nil
}

// LogDir returns the directory holding daemon run logs.
func (c *Config) LogDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// CatalogPath returns the SQLite catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.StateDir, "catalog.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "drip.lock")
}

// TranscodePollInterval returns the progress polling interval.
func (c *Config) TranscodePollInterval() time.Duration {
	return time.Duration(c.TranscodePollMS) * time.Millisecond
}

// ZoomRepeatInterval returns the held-button zoom repeat interval.
func (c *Config) ZoomRepeatInterval() time.Duration {
	return time.Duration(c.ZoomRepeatMS) * time.Millisecond
}

// SerialReplyTimeout returns how long to wait for a device reply.
func (c *Config) SerialReplyTimeout() time.Duration {
	return time.Duration(c.SerialReplyTimeoutMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
