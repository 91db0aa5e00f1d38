package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"

	"drip/internal/config"
	"drip/internal/recording"
	"drip/internal/services"
)

type recordingSink struct {
	mu        sync.Mutex
	recording bool
	frames    []recording.Frame
	err       error
}

func (s *recordingSink) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *recordingSink) SubmitFrame(_ context.Context, frame recording.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}

func TestReaderSourceFramesStream(t *testing.T) {
	size := recording.Size{Width: 2, Height: 2}
	data := bytes.Repeat([]byte{1}, size.FrameBytes()*2)
	data = append(data, 9, 9, 9) // trailing partial frame
	src := NewReaderSource(bytes.NewReader(data), size)

	for i := 0; i < 2; i++ {
		frame, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if len(frame.Data) != 12 || frame.Width != 2 || frame.Height != 2 {
			t.Fatalf("unexpected frame %+v", frame)
		}
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestRunForwardsOnlyWhileRecording(t *testing.T) {
	size := recording.Size{Width: 1, Height: 1}
	src := NewReaderSource(bytes.NewReader(make([]byte, size.FrameBytes()*3)), size)

	sink := &recordingSink{}
	stats, err := Run(context.Background(), src, sink, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Read != 3 || stats.Forwarded != 0 || len(sink.frames) != 0 {
		t.Fatalf("idle run stats %+v", stats)
	}

	src = NewReaderSource(bytes.NewReader(make([]byte, size.FrameBytes()*3)), size)
	sink.recording = true
	stats, err = Run(context.Background(), src, sink, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Forwarded != 3 || len(sink.frames) != 3 {
		t.Fatalf("recording run stats %+v", stats)
	}
}

func TestRunCountsRejectedFrames(t *testing.T) {
	size := recording.Size{Width: 1, Height: 1}
	src := NewReaderSource(bytes.NewReader(make([]byte, size.FrameBytes()*2)), size)
	sink := &recordingSink{recording: true, err: services.ErrSinkWrite}

	stats, err := Run(context.Background(), src, sink, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Rejected != 2 || stats.Forwarded != 0 {
		t.Fatalf("stats %+v", stats)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	size := recording.Size{Width: 1, Height: 1}
	src := NewReaderSource(bytes.NewReader(make([]byte, 30)), size)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := Run(ctx, src, nil, nil)
	if err != nil || stats.Read != 0 {
		t.Fatalf("Run = %+v, %v", stats, err)
	}
}

func TestArgs(t *testing.T) {
	cfg := config.Default()
	cfg.CameraDevice = "/dev/video2"
	cfg.CameraWidth = 1280
	cfg.CameraHeight = 720
	cfg.CameraFormat = "mjpeg"

	want := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2", "-input_format", "mjpeg",
		"-video_size", "1280x720", "-i", "/dev/video2",
		"-f", "rawvideo", "-pix_fmt", "bgr24", "-",
	}
	if got := Args(&cfg); !slices.Equal(got, want) {
		t.Fatalf("Args = %v", got)
	}
}
