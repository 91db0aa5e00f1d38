package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"drip/internal/logging"
	"drip/internal/recording"
	"drip/internal/services"
)

// FrameSink accepts frames while a recording is active. *recording.Session
// satisfies it.
type FrameSink interface {
	Recording() bool
	SubmitFrame(ctx context.Context, frame recording.Frame) error
}

// Stats counts what a Run call did with the frames it read.
type Stats struct {
	Read      int64
	Forwarded int64
	Rejected  int64
}

// Run pulls frames from source until ctx ends or the stream closes and
// forwards them to sink while it is recording. A rejected frame does not stop
// the loop; the session has already reported the failure.
func Run(ctx context.Context, source Source, sink FrameSink, logger *slog.Logger) (Stats, error) {
	logger = logging.NewComponentLogger(logger, "capture")
	var stats Stats
	for {
		frame, err := source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info("capture stopped",
					logging.Int64("frames_read", stats.Read),
					logging.Int64("frames_forwarded", stats.Forwarded),
				)
				return stats, nil
			}
			return stats, err
		}
		stats.Read++
		if sink == nil || !sink.Recording() {
			continue
		}
		if err := sink.SubmitFrame(ctx, frame); err != nil {
			if errors.Is(err, services.ErrNotRecording) {
				continue
			}
			stats.Rejected++
			logging.WarnWithContext(logger, "frame rejected by recording session", "frame_rejected",
				logging.String(logging.FieldImpact, "recording stopped"),
				logging.Error(err),
			)
			continue
		}
		stats.Forwarded++
	}
}
