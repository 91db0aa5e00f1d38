package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"drip/internal/catalog"
	"drip/internal/config"
	"drip/internal/fileutil"
	"drip/internal/logging"
	"drip/internal/notifications"
	"drip/internal/services"
	"drip/internal/status"
)

// Outcome is the per-item result of a batch.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeCopied   Outcome = "copied"
	OutcomeVerified Outcome = "verified"
	OutcomeDeleted  Outcome = "deleted"
	OutcomeFailed   Outcome = "failed"
)

// Exported reports whether the item reached the destination intact.
func (o Outcome) Exported() bool {
	return o == OutcomeVerified || o == OutcomeDeleted
}

// Item is one file in a batch.
type Item struct {
	SourcePath string  `json:"source_path"`
	DestPath   string  `json:"dest_path"`
	Outcome    Outcome `json:"outcome"`
	Bytes      int64   `json:"bytes"`
	Error      string  `json:"error,omitempty"`
	err        error
}

// Err returns the failure cause for a failed item.
func (i Item) Err() error { return i.err }

// Request selects the files of one batch. Empty Dest falls back to the
// configured destination; nil Keep falls back to the configured policy.
type Request struct {
	Files []string
	Dest  string
	Keep  *bool
}

// Result summarizes a batch.
type Result struct {
	BatchID      string      `json:"batch_id"`
	Dest         string      `json:"dest"`
	Items        []Item      `json:"items"`
	Exported     int         `json:"exported"`
	Deleted      int         `json:"deleted"`
	ManifestPath string      `json:"manifest_path,omitempty"`
	Remaining    []Recording `json:"remaining,omitempty"`
}

// Copier writes src to dst and returns the bytes written.
type Copier func(ctx context.Context, src, dst string) (int64, error)

// Recorder persists item outcomes. *catalog.Store satisfies it.
type Recorder interface {
	RecordExport(ctx context.Context, rec catalog.ExportRecord) error
}

// Option configures the exporter.
type Option func(*Exporter)

// WithCopier replaces the chunked copy (primarily for tests).
func WithCopier(c Copier) Option {
	return func(e *Exporter) {
		if c != nil {
			e.copier = c
		}
	}
}

// WithRecorder records every item outcome.
func WithRecorder(r Recorder) Option {
	return func(e *Exporter) { e.recorder = r }
}

// WithStatusBoard routes the batch summary to board.
func WithStatusBoard(board *status.Board) Option {
	return func(e *Exporter) { e.board = board }
}

// WithRecordingGuard refuses batches while recording reports true.
func WithRecordingGuard(recording func() bool) Option {
	return func(e *Exporter) { e.recording = recording }
}

// WithActiveOutput excludes the path returned by fn from listings.
func WithActiveOutput(fn func() string) Option {
	return func(e *Exporter) { e.active = fn }
}

// WithNotifier publishes a summary after each batch.
func WithNotifier(n notifications.Service) Option {
	return func(e *Exporter) {
		e.notifier = n
	}
}

// WithLogger sets the exporter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logging.NewComponentLogger(logger, "export")
	}
}

// Exporter runs export batches.
type Exporter struct {
	recordingsDir string
	destDir       string
	keepOriginals bool
	verify        bool
	manifest      bool

	copier    Copier
	recorder  Recorder
	board     *status.Board
	recording func() bool
	active    func() string
	notifier  notifications.Service
	logger    *slog.Logger
}

// New constructs an exporter from configuration.
func New(cfg *config.Config, opts ...Option) *Exporter {
	e := &Exporter{
		recordingsDir: "recordings",
		keepOriginals: true,
		logger:        logging.NewNop(),
	}
	if cfg != nil {
		e.recordingsDir = cfg.RecordingsDir
		e.destDir = cfg.ExportDestDir
		e.keepOriginals = cfg.KeepOriginalFiles
		e.verify = cfg.ExportVerifyChecksum
		e.manifest = cfg.ExportManifest
	}
	e.copier = e.defaultCopier
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) defaultCopier(ctx context.Context, src, dst string) (int64, error) {
	if e.verify {
		return fileutil.CopyVerified(ctx, src, dst, fileutil.DefaultChunkSize)
	}
	return fileutil.CopyChunked(ctx, src, dst, fileutil.DefaultChunkSize)
}

// Recordings lists exportable files, skipping a transcode still in flight.
func (e *Exporter) Recordings() ([]Recording, error) {
	var exclude []string
	if e.active != nil {
		exclude = append(exclude, e.active())
	}
	return List(e.recordingsDir, exclude...)
}

// Resolve maps bare file names onto the recordings directory.
func (e *Exporter) Resolve(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(e.recordingsDir, name)
}

// Export copies every selected file. Per-item failures are reported in the
// result; the returned error covers conditions that stop the whole batch.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	if e.recording != nil && e.recording() {
		err := services.Wrap(services.ErrExportWhileRecording, "export", "start", "stop recording first", nil)
		e.board.Set(status.StopBeforeExport)
		return Result{}, err
	}

	dest := strings.TrimSpace(req.Dest)
	if dest == "" {
		dest = e.destDir
	}
	if dest == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "export", "start", "no destination configured", nil)
	}
	keep := e.keepOriginals
	if req.Keep != nil {
		keep = *req.Keep
	}

	res := Result{BatchID: uuid.NewString(), Dest: dest}
	logger := e.logger.With(logging.String("batch_id", res.BatchID))

	if len(req.Files) == 0 {
		e.board.Set(status.NothingSelected)
		return res, nil
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return res, services.Wrap(services.ErrCopy, "export", "prepare", "create destination", err)
	}

	logger.Info("export started",
		logging.String(logging.FieldEventType, "export_start"),
		logging.Int("files", len(req.Files)),
		logging.String("dest", dest),
		logging.Bool("keep_originals", keep),
	)

	for _, name := range req.Files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		item := e.exportOne(ctx, e.Resolve(name), dest, keep, logger)
		if item.Outcome.Exported() {
			res.Exported++
		}
		if item.Outcome == OutcomeDeleted {
			res.Deleted++
		}
		e.record(ctx, res.BatchID, item, logger)
		res.Items = append(res.Items, item)
	}

	if res.Exported > 0 {
		e.board.Set(status.Exported(res.Exported))
	} else {
		e.board.Set(status.NothingSelected)
	}

	if e.manifest && res.Exported > 0 {
		path, err := writeManifest(dest, res)
		if err != nil {
			logging.WarnWithContext(logger, "export manifest not written", "manifest_write",
				logging.String(logging.FieldErrorHint, "check destination permissions"),
				logging.Error(err),
			)
		} else {
			res.ManifestPath = path
		}
	}

	if res.Deleted > 0 {
		remaining, err := e.Recordings()
		if err != nil {
			logger.Debug("refresh listing failed", logging.Error(err))
		}
		res.Remaining = remaining
	}

	logger.Info("export finished",
		logging.String(logging.FieldEventType, "export_complete"),
		logging.Int("exported", res.Exported),
		logging.Int("deleted", res.Deleted),
		logging.Int("failed", len(res.Items)-res.Exported),
	)
	if e.notifier != nil {
		payload := notifications.Payload{"exported": res.Exported, "failed": len(res.Items) - res.Exported, "dest": dest}
		if err := e.notifier.Publish(ctx, notifications.EventExportCompleted, payload); err != nil {
			logger.Warn("notification failed", logging.Error(err), logging.String(logging.FieldEventType, "notification_failed"))
		}
	}
	return res, nil
}

func (e *Exporter) exportOne(ctx context.Context, src, dest string, keep bool, logger *slog.Logger) Item {
	item := Item{SourcePath: src, DestPath: filepath.Join(dest, filepath.Base(src)), Outcome: OutcomePending}
	fail := func(err error) Item {
		item.Outcome = OutcomeFailed
		item.err = err
		item.Error = err.Error()
		logging.WarnWithContext(logger, "export item failed", "export_item_failed",
			logging.String("source", src),
			logging.String(logging.FieldImpact, "file left in recordings directory"),
			logging.Error(err),
		)
		return item
	}

	info, err := os.Stat(src)
	if err != nil {
		return fail(services.Wrap(services.ErrCopy, "export", "stat source", src, err))
	}
	if samePath(src, item.DestPath) {
		return fail(services.Wrap(services.ErrCopy, "export", "resolve destination",
			"destination is the source file", nil))
	}
	if free, err := freeBytes(dest); err == nil && uint64(info.Size()) > free {
		return fail(services.Wrap(services.ErrInsufficientSpace, "export", "space check",
			fmt.Sprintf("need %d bytes, %d available", info.Size(), free), nil))
	}

	written, err := e.copier(ctx, src, item.DestPath)
	if err != nil {
		return fail(services.Wrap(services.ErrCopy, "export", "copy", src, err))
	}
	item.Outcome = OutcomeCopied
	item.Bytes = written

	srcSize, dstSize, err := fileutil.Sizes(src, item.DestPath)
	if err != nil {
		return fail(services.Wrap(services.ErrSizeMismatch, "export", "verify", src, err))
	}
	if srcSize != dstSize || dstSize <= 0 {
		return fail(services.Wrap(services.ErrSizeMismatch, "export", "verify",
			fmt.Sprintf("source %d bytes, copy %d bytes", srcSize, dstSize), nil))
	}
	item.Outcome = OutcomeVerified
	item.Bytes = dstSize

	if !keep {
		if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "original not deleted after export", "export_delete_failed",
				logging.String("source", src),
				logging.String(logging.FieldImpact, "original remains alongside the exported copy"),
				logging.Error(err),
			)
		} else {
			item.Outcome = OutcomeDeleted
		}
	}
	logger.Debug("export item done",
		logging.String("source", src),
		logging.String("outcome", string(item.Outcome)),
		logging.Int64("bytes", item.Bytes),
	)
	return item
}

// samePath reports whether dst names src, either by path or because both
// resolve to the same file.
func samePath(src, dst string) bool {
	a, errA := filepath.Abs(src)
	b, errB := filepath.Abs(dst)
	if errA == nil && errB == nil && a == b {
		return true
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return os.SameFile(srcInfo, dstInfo)
}

func (e *Exporter) record(ctx context.Context, batch string, item Item, logger *slog.Logger) {
	if e.recorder == nil {
		return
	}
	rec := catalog.ExportRecord{
		BatchID:    batch,
		SourcePath: item.SourcePath,
		DestPath:   item.DestPath,
		Outcome:    string(item.Outcome),
		Bytes:      item.Bytes,
		Deleted:    item.Outcome == OutcomeDeleted,
		Error:      item.Error,
	}
	if err := e.recorder.RecordExport(context.WithoutCancel(ctx), rec); err != nil {
		logger.Debug("catalog export record failed", logging.Error(err))
	}
}
