package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateSerial(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if c.NtfyRequestTimeout < 0 {
		return errors.New("ntfy_request_timeout must not be negative")
	}
	return c.validateLogging()
}

func (c *Config) validateCamera() error {
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		return fmt.Errorf("camera_width and camera_height must be positive (got %dx%d)", c.CameraWidth, c.CameraHeight)
	}
	if c.DisplayWidth < 0 || c.DisplayHeight < 0 {
		return errors.New("display_width and display_height must not be negative")
	}
	if c.RecordingFPS <= 0 {
		return errors.New("recording_fps must be positive")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.TranscodePollMS < minTranscodePollMS {
		return fmt.Errorf("transcode_poll_ms must be at least %d", minTranscodePollMS)
	}
	return nil
}

func (c *Config) validateSerial() error {
	if c.ZoomStep <= 0 || c.ZoomStep > maxZoomStep {
		return fmt.Errorf("zoom_step must be between 1 and %d", maxZoomStep)
	}
	if c.ZoomRepeatMS <= 0 {
		return errors.New("zoom_repeat_ms must be positive")
	}
	if c.SerialBaud <= 0 {
		return errors.New("serial_baud must be positive")
	}
	if c.SerialReplyTimeoutMS < 0 || c.SerialReplyTimeoutMS > maxSerialReplyTimeoutSeconds*1000 {
		return fmt.Errorf("serial_reply_timeout_ms must be between 0 and %d", maxSerialReplyTimeoutSeconds*1000)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.APIEnabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.APIBind); err != nil {
		return fmt.Errorf("api_bind %q: %w", c.APIBind, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json (got %q)", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error (got %q)", c.LogLevel)
	}
	if c.LogRetentionDays < 0 {
		return errors.New("log_retention_days must not be negative")
	}
	return nil
}
