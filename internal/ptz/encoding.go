package ptz

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// MaxZoomLevel is the lens's widest telephoto position.
const MaxZoomLevel = 16384

// MaxMultiplier is the optical zoom factor at MaxZoomLevel.
const MaxMultiplier = 30.0

// MinMultiplier is the lowest multiplier accepted from operators.
const MinMultiplier = 1.0

const (
	zoomPrefix = "81010447"
	terminator = "FF"

	initFrameHex       = "8101044700000000FF"
	icrOnHex           = "8101040102FF"
	icrOffHex          = "8101040103FF"
	irCorrectionOnHex  = "8101041101FF"
	irCorrectionOffHex = "8101041100FF"
	zoomFieldWidth     = 8
)

const terminatorByte byte = 0xFF

// ClampLevel bounds a zoom level to [0, MaxZoomLevel].
func ClampLevel(level int) int {
	switch {
	case level < 0:
		return 0
	case level > MaxZoomLevel:
		return MaxZoomLevel
	default:
		return level
	}
}

// EncodeZoomField renders a zoom level into the 8 character parameter field.
// Each hex digit of the level is preceded by a literal zero nibble and the
// result is left-padded with zeros, so level 4 becomes "00000004" and level
// 1000 (0x3e8) becomes "00030e08". The layout must match the head firmware
// byte for byte.
func EncodeZoomField(level int) string {
	digits := fmt.Sprintf("%02x", ClampLevel(level))
	var b strings.Builder
	b.Grow(len(digits) * 2)
	for _, d := range digits {
		b.WriteByte('0')
		b.WriteRune(d)
	}
	field := b.String()
	if len(field) < zoomFieldWidth {
		field = strings.Repeat("0", zoomFieldWidth-len(field)) + field
	}
	return field
}

// ZoomFrame returns the raw bytes of a zoom-direct command for level.
func ZoomFrame(level int) []byte {
	return mustDecode(zoomPrefix + EncodeZoomField(level) + terminator)
}

// InitFrame is sent once after a port opens.
func InitFrame() []byte { return mustDecode(initFrameHex) }

// ICRFrame selects the IR-cut filter mode.
func ICRFrame(enabled bool) []byte {
	if enabled {
		return mustDecode(icrOnHex)
	}
	return mustDecode(icrOffHex)
}

// IRCorrectionFrame toggles IR focus correction.
func IRCorrectionFrame(enabled bool) []byte {
	if enabled {
		return mustDecode(irCorrectionOnHex)
	}
	return mustDecode(irCorrectionOffHex)
}

// DecodeFrame converts a hex representation into wire bytes. The input must
// have even length and end with the terminator.
func DecodeFrame(frame string) ([]byte, error) {
	frame = strings.TrimSpace(frame)
	if len(frame)%2 != 0 {
		return nil, fmt.Errorf("frame %q: odd length", frame)
	}
	raw, err := hex.DecodeString(frame)
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", frame, err)
	}
	if len(raw) == 0 || raw[len(raw)-1] != terminatorByte {
		return nil, fmt.Errorf("frame %q: missing terminator", frame)
	}
	return raw, nil
}

func mustDecode(frame string) []byte {
	raw, err := DecodeFrame(frame)
	if err != nil {
		panic(err)
	}
	return raw
}

// Multiplier converts a level into the displayed zoom factor without rounding.
func Multiplier(level int) float64 {
	return float64(level) / MaxZoomLevel * MaxMultiplier
}

// LevelToMultiplier reports the zoom factor for level, never below 1.0 and
// rounded to one decimal place.
func LevelToMultiplier(level int) float64 {
	m := math.Max(MinMultiplier, Multiplier(level))
	return math.Round(m*10) / 10
}

// MultiplierToLevel converts a zoom factor into a lens position. The factor
// is clamped to [MinMultiplier, MaxMultiplier].
func MultiplierToLevel(multiplier float64) int {
	m := math.Min(MaxMultiplier, math.Max(MinMultiplier, multiplier))
	return ClampLevel(int(m / MaxMultiplier * MaxZoomLevel))
}

// ValidMultiplier reports whether m lies within the accepted operator range.
func ValidMultiplier(m float64) bool {
	return !math.IsNaN(m) && m >= MinMultiplier && m <= MaxMultiplier
}
