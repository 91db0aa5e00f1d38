package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBinaries()
	c.normalizeSerial()
	c.normalizeLogging()
	c.CameraFormat = strings.ToLower(strings.TrimSpace(c.CameraFormat))
	if c.CameraFormat == "" {
		c.CameraFormat = defaultCameraFormat
	}
	c.NtfyTopic = strings.TrimSpace(c.NtfyTopic)
	c.APIBind = strings.TrimSpace(c.APIBind)
	if c.APIBind == "" {
		c.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"temp_dir", &c.TempDir, defaultTempDir},
		{"recordings_dir", &c.RecordingsDir, defaultRecordingsDir},
		{"progress_file", &c.ProgressFile, defaultProgressFile},
		{"export_dest_dir", &c.ExportDestDir, defaultExportDestDir},
		{"state_dir", &c.StateDir, defaultStateDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	c.CameraDevice = strings.TrimSpace(c.CameraDevice)
	return nil
}

func (c *Config) normalizeBinaries() {
	c.FFmpegBinary = strings.TrimSpace(c.FFmpegBinary)
	if c.FFmpegBinary == "" {
		c.FFmpegBinary = defaultFFmpegBinary
	}
	c.FFprobeBinary = strings.TrimSpace(c.FFprobeBinary)
	if c.FFprobeBinary == "" {
		c.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeSerial() {
	ports := make([]string, 0, len(c.SerialPorts))
	seen := make(map[string]struct{}, len(c.SerialPorts))
	for _, port := range c.SerialPorts {
		port = strings.TrimSpace(port)
		if port == "" {
			continue
		}
		if _, ok := seen[port]; ok {
			continue
		}
		seen[port] = struct{}{}
		ports = append(ports, port)
	}
	if len(ports) == 0 {
		ports = append(ports, DefaultSerialPorts...)
	}
	c.SerialPorts = ports
	if c.SerialBaud == 0 {
		c.SerialBaud = defaultSerialBaud
	}
	if c.SerialReplyTimeoutMS == 0 {
		c.SerialReplyTimeoutMS = defaultSerialReplyTimeoutMS
	}
}

func (c *Config) normalizeLogging() {
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}
