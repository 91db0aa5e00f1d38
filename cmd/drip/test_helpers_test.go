package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drip/internal/config"
	"drip/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.CameraDevice = filepath.Join(base, "video0")
	cfg.APIEnabled = false

	configPath := filepath.Join(base, "drip.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	ports := make([]string, 0, len(cfg.SerialPorts))
	for _, p := range cfg.SerialPorts {
		ports = append(ports, fmt.Sprintf("%q", p))
	}
	content := fmt.Sprintf(
		"temp_dir = %q\nrecordings_dir = %q\nexport_dest_dir = %q\nstate_dir = %q\nprogress_file = %q\n"+
			"camera_device = %q\nserial_ports = [%s]\nstorage_monitor = false\napi_enabled = %t\napi_bind = %q\napi_token = %q\n",
		cfg.TempDir,
		cfg.RecordingsDir,
		cfg.ExportDestDir,
		cfg.StateDir,
		cfg.ProgressFile,
		cfg.CameraDevice,
		strings.Join(ports, ", "),
		cfg.APIEnabled,
		cfg.APIBind,
		cfg.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeRecording(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x5a}, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
