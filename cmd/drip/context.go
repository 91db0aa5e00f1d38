package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"drip/internal/appliance"
	"drip/internal/config"
	"drip/internal/controlapi"
	"drip/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logger returns a stderr logger for commands that drive the appliance
// packages directly. Only warnings and errors are shown.
func (c *commandContext) logger() *slog.Logger {
	format := "console"
	if cfg := c.configValue(); cfg != nil {
		format = cfg.LogFormat
	}
	logger, err := logging.New(logging.Options{Level: "warn", Format: format, OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// applianceClient reports whether `drip run` holds the appliance lock and, if
// so, returns a control API client for it.
func (c *commandContext) applianceClient() (*controlapi.Client, bool, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, false, err
	}
	running, err := appliance.Locked(cfg.LockPath())
	if err != nil {
		return nil, false, fmt.Errorf("check appliance lock: %w", err)
	}
	if !running {
		return nil, false, nil
	}
	if !cfg.APIEnabled {
		return nil, true, errors.New("the appliance is running with api_enabled = false; stop it or enable the control API")
	}
	client, err := controlapi.NewClient(cfg.APIBind, cfg.APIToken)
	if err != nil {
		return nil, true, err
	}
	return client, true, nil
}

// requireAppliance is applianceClient for commands that only make sense
// against a running appliance.
func (c *commandContext) requireAppliance() (*controlapi.Client, error) {
	client, running, err := c.applianceClient()
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, errors.New("the appliance is not running; start it with `drip run`")
	}
	return client, nil
}

func wrapClientError(err error, bind string) error {
	if err == nil {
		return nil
	}
	if controlapi.IsUnavailable(err) {
		return fmt.Errorf("connect to appliance at %s: %w; verify `drip run` is serving the control API", bind, err)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
