package transcode

import (
	"path/filepath"
	"strings"
)

// DeliverableExt is the extension of transcoded recordings.
const DeliverableExt = ".avi"

// stampWidth covers the YYYYmmdd_HHMMSS prefix of a capture name.
const stampWidth = len("20060102_150405")

// DestPath derives the deliverable path for a raw capture. Capture names
// begin with a fixed-width timestamp; names shorter than that keep their
// stem. The stem keeps the full seconds field (15 characters). The earlier
// appliance kept 14 and dropped the last seconds digit, so two captures
// started within ten seconds overwrote each other.
func DestPath(recordingsDir, sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if len(stem) >= stampWidth {
		stem = stem[:stampWidth]
	}
	return filepath.Join(recordingsDir, stem+DeliverableExt)
}
