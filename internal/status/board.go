// Package status holds the operator-facing status line and progress value.
//
// Every component that reports to the operator writes through one Board. The
// presentation layer (CLI, control API) only reads snapshots.
package status

import (
	"fmt"
	"sync"
	"time"
)

// Operator status strings.
const (
	RecStarted         = "Rec started..."
	Recording          = "Recording..."
	RecStopped         = "Rec stopped"
	Processing         = "Processing..."
	Saved              = "Saved to file"
	NothingSelected    = "No files selected for export"
	StopBeforeExport   = "Stop rec before exporting"
	SerialError        = "Serial error"
	GenericError       = "Error"
	ProcessingFailed   = "Error processing video"
	exportedFmt        = "Exported %d files"
	zoomFmt            = "Zoom: %.1fx"
	storageAttachedFmt = "Storage attached: %s"
	storageRemovedFmt  = "Storage removed: %s"
)

// Snapshot is a consistent copy of the board.
type Snapshot struct {
	Message  string    `json:"message"`
	Progress int       `json:"progress"`
	Updated  time.Time `json:"updated"`
}

// Board is safe for concurrent use. The zero value is ready to use.
type Board struct {
	mu       sync.Mutex
	message  string
	progress int
	updated  time.Time
	now      func() time.Time
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

func (b *Board) stamp() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// Set replaces the status message.
func (b *Board) Set(message string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.message = message
	b.updated = b.stamp()
	b.mu.Unlock()
}

// SetProgress stores progress clamped to [0,100].
func (b *Board) SetProgress(percent int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.progress = clamp(percent)
	b.updated = b.stamp()
	b.mu.Unlock()
}

// Update sets message and progress together so readers never observe one
// without the other.
func (b *Board) Update(message string, percent int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.message = message
	b.progress = clamp(percent)
	b.updated = b.stamp()
	b.mu.Unlock()
}

// Snapshot returns the current message and progress.
func (b *Board) Snapshot() Snapshot {
	if b == nil {
		return Snapshot{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{Message: b.message, Progress: b.progress, Updated: b.updated}
}

// Message returns the current status message.
func (b *Board) Message() string {
	return b.Snapshot().Message
}

// Progress returns the current progress value.
func (b *Board) Progress() int {
	return b.Snapshot().Progress
}

func clamp(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

// Exported formats the aggregate export result.
func Exported(count int) string { return fmt.Sprintf(exportedFmt, count) }

// Zoom formats the zoom multiplier line.
func Zoom(multiplier float64) string { return fmt.Sprintf(zoomFmt, multiplier) }

// ICR formats the IR-cut filter mode line.
func ICR(enabled bool) string { return "ICR Mode: " + onOff(enabled) }

// IRCorrection formats the IR correction line.
func IRCorrection(enabled bool) string { return "IR Correction: " + onOff(enabled) }

// StorageAttached formats a removable storage arrival.
func StorageAttached(device string) string { return fmt.Sprintf(storageAttachedFmt, device) }

// StorageRemoved formats a removable storage removal.
func StorageRemoved(device string) string { return fmt.Sprintf(storageRemovedFmt, device) }

func onOff(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}
