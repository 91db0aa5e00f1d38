package export

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Recording is a finished file available for export.
type Recording struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

var recordingExts = map[string]struct{}{
	".avi": {},
	".mp4": {},
}

// IsRecording reports whether name has a recording extension.
func IsRecording(name string) bool {
	_, ok := recordingExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// List returns the recordings in dir sorted by name. Paths in exclude (the
// output of a still-running transcode) are skipped. A missing dir is empty.
func List(dir string, exclude ...string) ([]Recording, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, path := range exclude {
		if path = strings.TrimSpace(path); path != "" {
			skip[filepath.Clean(path)] = struct{}{}
		}
	}

	out := make([]Recording, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsRecording(entry.Name()) {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if _, ok := skip[filepath.Clean(full)]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Recording{Name: entry.Name(), Path: full, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
