package recording

import (
	"fmt"
	"time"
)

// Size is a frame's pixel dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// FrameBytes is the byte length of one packed BGR24 frame of this size.
func (s Size) FrameBytes() int {
	return s.Width * s.Height * 3
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Frame is one packed BGR24 image from the camera.
type Frame struct {
	Data     []byte
	Width    int
	Height   int
	Captured time.Time
}

// Size returns the frame's dimensions.
func (f Frame) Size() Size {
	return Size{Width: f.Width, Height: f.Height}
}
