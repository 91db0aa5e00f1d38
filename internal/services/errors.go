package services

import (
	"errors"
	"fmt"
	"strings"
)

// Category markers. Every error surfaced by the appliance core wraps exactly
// one of these so callers can classify it with errors.Is.
var (
	ErrDevice        = errors.New("device error")
	ErrRecording     = errors.New("recording error")
	ErrTranscode     = errors.New("transcode error")
	ErrExport        = errors.New("export error")
	ErrConfiguration = errors.New("configuration error")
)

// Device errors.
var (
	ErrNoDeviceFound = fmt.Errorf("%w: no serial device found", ErrDevice)
	ErrDeviceWrite   = fmt.Errorf("%w: serial write failed", ErrDevice)
	ErrDeviceReply   = fmt.Errorf("%w: device rejected command", ErrDevice)
)

// Recording errors.
var (
	ErrAlreadyProcessing = fmt.Errorf("%w: previous recording is still processing", ErrRecording)
	ErrAlreadyRecording  = fmt.Errorf("%w: recording already in progress", ErrRecording)
	ErrNotRecording      = fmt.Errorf("%w: no recording in progress", ErrRecording)
	ErrSinkOpen          = fmt.Errorf("%w: sink open failed", ErrRecording)
	ErrSinkWrite         = fmt.Errorf("%w: sink write failed", ErrRecording)
)

// Transcode errors.
var (
	ErrSourceMissing  = fmt.Errorf("%w: source file missing", ErrTranscode)
	ErrProbe          = fmt.Errorf("%w: probe failed", ErrTranscode)
	ErrTranscodeStart = fmt.Errorf("%w: transcoder start failed", ErrTranscode)
	ErrOutputInvalid  = fmt.Errorf("%w: output validation failed", ErrTranscode)
	ErrCancelled      = fmt.Errorf("%w: cancelled", ErrTranscode)
)

// Export errors.
var (
	ErrCopy                 = fmt.Errorf("%w: copy failed", ErrExport)
	ErrSizeMismatch         = fmt.Errorf("%w: size mismatch after copy", ErrExport)
	ErrInsufficientSpace    = fmt.Errorf("%w: insufficient space at destination", ErrExport)
	ErrExportWhileRecording = fmt.Errorf("%w: recording in progress", ErrExport)
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the sentinels above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrConfiguration
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// StatusText maps an error to the short message shown on the operator status
// line. Unknown errors map to "Error".
func StatusText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDevice):
		return "Serial error"
	case errors.Is(err, ErrAlreadyProcessing):
		return "Processing..."
	case errors.Is(err, ErrSourceMissing):
		return "Error: File not found"
	case errors.Is(err, ErrTranscodeStart):
		return "Error starting process"
	case errors.Is(err, ErrTranscode):
		return "Error processing video"
	case errors.Is(err, ErrExportWhileRecording):
		return "Stop rec before exporting"
	default:
		return "Error"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
