// Package capture reads camera frames and hands them to the recording session.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"drip/internal/config"
	"drip/internal/logging"
	"drip/internal/recording"
)

// Source yields camera frames until it is closed or the stream ends.
type Source interface {
	Next(ctx context.Context) (recording.Frame, error)
	Size() recording.Size
	Close() error
}

// readerSource frames a raw BGR24 byte stream.
type readerSource struct {
	r    *bufio.Reader
	size recording.Size
	now  func() time.Time
}

// NewReaderSource reads fixed-size frames of size from r.
func NewReaderSource(r io.Reader, size recording.Size) Source {
	return &readerSource{r: bufio.NewReaderSize(r, size.FrameBytes()), size: size, now: time.Now}
}

func (s *readerSource) Size() recording.Size { return s.size }

// Next returns io.EOF once the stream ends, including on a trailing
// partial frame.
func (s *readerSource) Next(ctx context.Context) (recording.Frame, error) {
	if err := ctx.Err(); err != nil {
		return recording.Frame{}, err
	}
	buf := make([]byte, s.size.FrameBytes())
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return recording.Frame{}, io.EOF
		}
		return recording.Frame{}, err
	}
	return recording.Frame{Data: buf, Width: s.size.Width, Height: s.size.Height, Captured: s.now()}, nil
}

func (s *readerSource) Close() error { return nil }

// Args returns the ffmpeg arguments that decode the camera into raw BGR24
// frames on stdout.
func Args(cfg *config.Config) []string {
	size := recording.Size{Width: cfg.CameraWidth, Height: cfg.CameraHeight}
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if format := strings.TrimSpace(cfg.CameraFormat); format != "" {
		args = append(args, "-input_format", format)
	}
	return append(args,
		"-video_size", size.String(),
		"-i", cfg.CameraDevice,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-",
	)
}

// FFmpegSource decodes the configured V4L2 device through an ffmpeg child.
type FFmpegSource struct {
	Source
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
	err    error
}

// OpenFFmpeg starts the camera decoder. The child exits when ctx ends or the
// source is closed.
func OpenFFmpeg(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*FFmpegSource, error) {
	if cfg == nil {
		return nil, errors.New("capture: nil config")
	}
	size := recording.Size{Width: cfg.CameraWidth, Height: cfg.CameraHeight}
	if !size.Valid() {
		return nil, fmt.Errorf("capture: invalid camera size %s", size)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cmd := exec.CommandContext(ctx, cfg.FFmpegBinary, Args(cfg)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start camera decoder: %w", err)
	}
	logger.Info("camera capture started",
		logging.String("device", cfg.CameraDevice),
		logging.String("size", size.String()),
	)
	return &FFmpegSource{Source: NewReaderSource(stdout, size), cmd: cmd, stdout: stdout}, nil
}

// Close stops the decoder and reaps it.
func (s *FFmpegSource) Close() error {
	s.once.Do(func() {
		_ = s.stdout.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		s.err = s.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(s.err, &exitErr) {
			s.err = nil
		}
	})
	return s.err
}
