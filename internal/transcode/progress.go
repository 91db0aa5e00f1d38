package transcode

import (
	"bufio"
	"bytes"
	"math"
	"os"
	"strconv"
	"strings"
)

const frameMarker = "frame="

// DefaultFPS is used when the real capture rate cannot be derived.
const DefaultFPS = 30.0

// maxRunningPercent is the ceiling while a job has not been validated.
const maxRunningPercent = 99

// ComputeFPS returns frames/duration when both are positive and finite,
// otherwise DefaultFPS.
func ComputeFPS(totalFrames int64, durationSeconds float64) float64 {
	if totalFrames <= 0 || durationSeconds <= 0 || math.IsInf(durationSeconds, 0) || math.IsNaN(durationSeconds) {
		return DefaultFPS
	}
	fps := float64(totalFrames) / durationSeconds
	if math.IsInf(fps, 0) || math.IsNaN(fps) || fps <= 0 {
		return DefaultFPS
	}
	return fps
}

// ParseProgress returns the frame counter from the last frame= line in data.
func ParseProgress(data []byte) (int64, bool) {
	var (
		frame int64
		found bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		value, ok := strings.CutPrefix(line, frameMarker)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			continue
		}
		frame = n
		found = true
	}
	return frame, found
}

// ReadProgressFile reads the progress artifact at path. A missing or empty
// file reports false.
func ReadProgressFile(path string) (int64, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return 0, false
	}
	return ParseProgress(data)
}

// Percent converts a frame counter into a running percentage capped at 99.
// It reports false when the total is unknown.
func Percent(current, total int64) (int, bool) {
	if total <= 0 {
		return 0, false
	}
	if current < 0 {
		current = 0
	}
	p := int(math.Round(100 * float64(current) / float64(total)))
	if p > maxRunningPercent {
		p = maxRunningPercent
	}
	return p, true
}
