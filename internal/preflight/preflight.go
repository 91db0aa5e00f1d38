package preflight

import (
	"context"
	"strings"

	"drip/internal/config"
)

// minRecordingSpace is the free space below which recording is flagged.
const minRecordingSpace uint64 = 512 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
	// Optional checks cover hardware that may legitimately be absent.
	Optional bool `json:"optional,omitempty"`
}

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results,
		CheckDirectoryAccess("Temp directory", cfg.TempDir),
		CheckDirectoryAccess("Recordings directory", cfg.RecordingsDir),
		CheckDirectoryAccess("State directory", cfg.StateDir),
		CheckFreeSpace("Recording space", cfg.RecordingsDir, minRecordingSpace),
	)

	if dest := strings.TrimSpace(cfg.ExportDestDir); dest != "" {
		export := CheckDirectoryAccess("Export destination", dest)
		export.Optional = true
		results = append(results, export)
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			result.Detail = status.Path
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	results = append(results,
		CheckCameraDevice(cfg.CameraDevice),
		CheckSerialPorts(cfg.SerialPorts),
	)
	return results
}

// Failed returns the failing required checks.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
