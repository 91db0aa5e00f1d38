package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"drip/internal/logging"
)

// Sink receives frames for one recording.
type Sink interface {
	WriteFrame(frame Frame) error
	Close() error
}

// SinkFactory opens a sink writing to path.
type SinkFactory interface {
	Open(ctx context.Context, path string, size Size, fps float64) (Sink, error)
}

// timestampFilter burns local wall-clock time into the top-left corner.
const timestampFilter = "drawtext=text='%{localtime\\:%F %T}':x=10:y=10:fontsize=24:fontcolor=white:box=1:boxcolor=black@0.5"

// FFmpegSinkFactory pipes raw BGR24 frames into an ffmpeg child that writes an
// MJPEG AVI.
type FFmpegSinkFactory struct {
	Binary           string
	OverlayTimestamp bool
	Logger           *slog.Logger
}

// Args returns the ffmpeg arguments used for a sink.
func (f FFmpegSinkFactory) Args(path string, size Size, fps float64) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", size.String(),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
	}
	if f.OverlayTimestamp {
		args = append(args, "-vf", timestampFilter)
	}
	return append(args, "-c:v", "mjpeg", "-q:v", "3", "-y", path)
}

// Open starts ffmpeg. The child is not tied to ctx: a recording outlives the
// request that started it and ends only through Close.
func (f FFmpegSinkFactory) Open(_ context.Context, path string, size Size, fps float64) (Sink, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("invalid frame size %s", size)
	}
	binary := strings.TrimSpace(f.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.Command(binary, f.Args(path, size, fps)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sink stdin: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &lockedWriter{w: &stderr}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	logger := f.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Debug("recording sink started", logging.String("path", path), logging.String("size", size.String()))
	return &ffmpegSink{cmd: cmd, stdin: stdin, size: size, stderr: &stderr}, nil
}

type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	size   Size
	stderr *strings.Builder
	closed bool
}

func (s *ffmpegSink) WriteFrame(frame Frame) error {
	if s.closed {
		return errors.New("sink closed")
	}
	if len(frame.Data) != s.size.FrameBytes() {
		return fmt.Errorf("frame has %d bytes, want %d", len(frame.Data), s.size.FrameBytes())
	}
	_, err := s.stdin.Write(frame.Data)
	return err
}

func (s *ffmpegSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	closeErr := s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
			return fmt.Errorf("sink encoder: %w: %s", err, detail)
		}
		return fmt.Errorf("sink encoder: %w", err)
	}
	return closeErr
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
