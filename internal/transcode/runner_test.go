package transcode_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"drip/internal/catalog"
	"drip/internal/config"
	"drip/internal/notifications"
	"drip/internal/services"
	"drip/internal/status"
	"drip/internal/testsupport"
	"drip/internal/transcode"
)

type stubProber struct {
	frames   int64
	countErr error
	validErr error

	mu        sync.Mutex
	validated []string
}

func (p *stubProber) CountFrames(context.Context, string) (int64, error) {
	return p.frames, p.countErr
}

func (p *stubProber) Validate(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validated = append(p.validated, path)
	return p.validErr
}

// stubProcess writes progress lines and exits when release is closed.
type stubProcess struct {
	release    chan struct{}
	terminated chan struct{}
	once       sync.Once
	waitErr    error
}

func (p *stubProcess) Wait() error {
	select {
	case <-p.release:
	case <-p.terminated:
	}
	return p.waitErr
}

func (p *stubProcess) Terminate() error {
	p.once.Do(func() { close(p.terminated) })
	return nil
}

type stubLauncher struct {
	mu       sync.Mutex
	args     [][]string
	startErr error
	procs    []*stubProcess
	// onStart runs after the process is registered, e.g. to write output.
	onStart func(args []string)
}

func (l *stubLauncher) Start(_ context.Context, binary string, args []string) (transcode.Process, error) {
	l.mu.Lock()
	l.args = append(l.args, append([]string{binary}, args...))
	if l.startErr != nil {
		l.mu.Unlock()
		return nil, l.startErr
	}
	proc := &stubProcess{release: make(chan struct{}), terminated: make(chan struct{})}
	l.procs = append(l.procs, proc)
	hook := l.onStart
	l.mu.Unlock()
	if hook != nil {
		hook(args)
	}
	return proc, nil
}

func (l *stubLauncher) proc(i int) *stubProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[i]
}

func (l *stubLauncher) started() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

// outputArg returns the deliverable path from ffmpeg args.
func outputArg(args []string) string {
	return args[len(args)-2]
}

func writeOutputOnStart(t *testing.T) func([]string) {
	return func(args []string) {
		if err := os.WriteFile(outputArg(args), []byte("remuxed"), 0o644); err != nil {
			t.Errorf("write output: %v", err)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitDone(t *testing.T, job *transcode.Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("job did not finish")
	}
}

type fixture struct {
	cfg      *config.Config
	board    *status.Board
	store    *catalog.Store
	launcher *stubLauncher
	prober   *stubProber
	notifier *testsupport.Notifier
	runner   *transcode.Runner
	source   string
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	f := &fixture{
		cfg:      cfg,
		board:    status.NewBoard(),
		store:    testsupport.MustOpenCatalog(t, cfg),
		launcher: &stubLauncher{},
		prober:   &stubProber{frames: 300},
		notifier: &testsupport.Notifier{},
	}
	f.launcher.onStart = writeOutputOnStart(t)
	f.runner = transcode.New(cfg,
		transcode.WithLauncher(f.launcher),
		transcode.WithProber(f.prober),
		transcode.WithJobStore(f.store),
		transcode.WithStatusBoard(f.board),
		transcode.WithNotifier(f.notifier),
	)
	f.source = testsupport.WriteFile(t, filepath.Join(cfg.TempDir, "20260301_101500_temp.avi"), 512)
	return f
}

func TestSuccessfulJobRemovesSourceAndProgress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	job, err := f.runner.Submit(ctx, transcode.Request{SessionID: "s1", SourcePath: f.source, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return f.launcher.started() == 1 })

	args := f.launcher.args[0]
	joined := strings.Join(args, " ")
	wantDest := filepath.Join(f.cfg.RecordingsDir, "20260301_101500.avi")
	want := "ffmpeg -i " + f.source + " -c copy -r 30.000000 -progress " + f.cfg.ProgressFile +
		" -hide_banner -loglevel error " + wantDest + " -y"
	if joined != want {
		t.Fatalf("unexpected ffmpeg args:\n got %s\nwant %s", joined, want)
	}
	if !f.runner.Busy() || f.runner.ActiveOutput() != wantDest {
		t.Fatalf("expected busy runner with active output %s", wantDest)
	}

	if err := os.WriteFile(f.cfg.ProgressFile, []byte("frame=60\nprogress=continue\nframe=150\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return job.Snapshot().Progress == 50 })
	if f.board.Progress() != 50 || f.board.Message() != status.Processing {
		t.Fatalf("unexpected board %+v", f.board.Snapshot())
	}

	close(f.launcher.proc(0).release)
	waitDone(t, job)

	snap := job.Snapshot()
	if snap.State != transcode.StateSucceeded || snap.Progress != 100 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if testsupport.FileExists(t, f.source) {
		t.Fatal("source must be deleted after success")
	}
	if testsupport.FileExists(t, f.cfg.ProgressFile) {
		t.Fatal("progress file must be deleted after success")
	}
	if !testsupport.FileExists(t, wantDest) {
		t.Fatal("deliverable missing")
	}
	f.prober.mu.Lock()
	validated := append([]string(nil), f.prober.validated...)
	f.prober.mu.Unlock()
	if len(validated) != 1 || validated[0] != wantDest {
		t.Fatalf("expected deliverable validation, got %v", validated)
	}
	if got := f.board.Snapshot(); got.Message != status.Saved || got.Progress != 100 {
		t.Fatalf("unexpected board %+v", got)
	}

	rec, err := f.store.GetJob(ctx, job.ID())
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if rec.Status != catalog.JobSucceeded || rec.TotalFrames != 300 || rec.FPS != 30 || rec.SessionID != "s1" {
		t.Fatalf("unexpected catalog row %+v", rec)
	}
	if f.runner.Busy() || f.runner.ActiveOutput() != "" {
		t.Fatal("runner should be idle after success")
	}
	if events := f.notifier.Events(); len(events) != 1 || events[0] != notifications.EventRecordingSaved {
		t.Fatalf("expected one saved notification, got %v", events)
	}
	if got := f.notifier.Last()["file"]; got != wantDest {
		t.Fatalf("notification file = %v, want %s", got, wantDest)
	}
}

// finishSpy records what the job looked like when the catalog saw it finish.
type finishSpy struct {
	*catalog.Store
	source string
	job    *transcode.Job

	mu            sync.Mutex
	sourcePresent bool
	state         transcode.State
}

func (s *finishSpy) FinishJob(ctx context.Context, id string, st catalog.JobStatus, progress int, errText string) error {
	s.mu.Lock()
	_, err := os.Stat(s.source)
	s.sourcePresent = err == nil
	s.state = s.job.Snapshot().State
	s.mu.Unlock()
	return s.Store.FinishJob(ctx, id, st, progress, errText)
}

func TestSourceRemovedOnlyAfterJobSucceeds(t *testing.T) {
	f := newFixture(t, nil)
	spy := &finishSpy{Store: f.store, source: f.source}
	runner := transcode.New(f.cfg,
		transcode.WithLauncher(f.launcher),
		transcode.WithProber(f.prober),
		transcode.WithJobStore(spy),
	)

	job, err := runner.Submit(context.Background(), transcode.Request{SourcePath: f.source, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	spy.job = job
	waitFor(t, func() bool { return f.launcher.started() == 1 })
	close(f.launcher.proc(0).release)
	waitDone(t, job)

	spy.mu.Lock()
	defer spy.mu.Unlock()
	if spy.state != transcode.StateSucceeded {
		t.Fatalf("job state at finish = %s, want %s", spy.state, transcode.StateSucceeded)
	}
	if !spy.sourcePresent {
		t.Fatal("raw capture was removed before the job reached a terminal state")
	}
	if testsupport.FileExists(t, f.source) {
		t.Fatal("source must be deleted after success")
	}
}

func TestValidationFailureKeepsSource(t *testing.T) {
	f := newFixture(t, nil)
	f.prober.validErr = errors.New("invalid data found")

	job, err := f.runner.Submit(context.Background(), transcode.Request{SourcePath: f.source, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return f.launcher.started() == 1 })
	close(f.launcher.proc(0).release)
	waitDone(t, job)

	if !errors.Is(job.Err(), services.ErrOutputInvalid) {
		t.Fatalf("expected output invalid error, got %v", job.Err())
	}
	snap := job.Snapshot()
	if snap.State != transcode.StateFailed || snap.Progress == 100 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !testsupport.FileExists(t, f.source) {
		t.Fatal("failed job must keep its source")
	}
	if testsupport.FileExists(t, snap.DestPath) {
		t.Fatal("invalid deliverable must be removed")
	}
	if f.board.Message() != "Error processing video" {
		t.Fatalf("unexpected status %q", f.board.Message())
	}
	if events := f.notifier.Events(); len(events) != 1 || events[0] != notifications.EventTranscodeFailed {
		t.Fatalf("expected one failure notification, got %v", events)
	}
}

func TestMissingSourceFailsImmediately(t *testing.T) {
	f := newFixture(t, nil)
	job, err := f.runner.Submit(context.Background(), transcode.Request{SourcePath: filepath.Join(f.cfg.TempDir, "gone.avi"), DurationSeconds: 5})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitDone(t, job)
	if !errors.Is(job.Err(), services.ErrSourceMissing) {
		t.Fatalf("expected missing source error, got %v", job.Err())
	}
	if f.launcher.started() != 0 {
		t.Fatal("ffmpeg must not start without a source")
	}
	if f.board.Message() != "Error: File not found" {
		t.Fatalf("unexpected status %q", f.board.Message())
	}
}

func TestStartFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.launcher.startErr = errors.New("exec: not found")
	job, err := f.runner.Submit(context.Background(), transcode.Request{SourcePath: f.source, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitDone(t, job)
	if !errors.Is(job.Err(), services.ErrTranscodeStart) {
		t.Fatalf("expected start error, got %v", job.Err())
	}
	if f.board.Message() != "Error starting process" {
		t.Fatalf("unexpected status %q", f.board.Message())
	}
	if !testsupport.FileExists(t, f.source) {
		t.Fatal("source must survive a start failure")
	}
}

func TestProbeFailureFallsBackToDefaultRate(t *testing.T) {
	f := newFixture(t, nil)
	f.prober.countErr = errors.New("N/A")
	job, err := f.runner.Submit(context.Background(), transcode.Request{SourcePath: f.source, DurationSeconds: 12})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return f.launcher.started() == 1 })
	if got := f.launcher.args[0][6]; got != "30.000000" {
		t.Fatalf("expected default rate, got %s", got)
	}
	if err := os.WriteFile(f.cfg.ProgressFile, []byte("frame=200\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if p := job.Snapshot().Progress; p != 0 {
		t.Fatalf("progress must stay unknown without a frame count, got %d", p)
	}
	close(f.launcher.proc(0).release)
	waitDone(t, job)
	if job.Snapshot().State != transcode.StateSucceeded {
		t.Fatalf("job should still succeed, got %+v", job.Snapshot())
	}
}

func TestCancelLeavesProcessRunningByDefault(t *testing.T) {
	f := newFixture(t, nil)
	job, err := f.runner.Submit(context.Background(), transcode.Request{SourcePath: f.source, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return f.launcher.started() == 1 })

	f.runner.Cancel()
	waitDone(t, job)
	if !errors.Is(job.Err(), services.ErrCancelled) {
		t.Fatalf("expected cancelled error, got %v", job.Err())
	}
	if !job.Snapshot().CancelRequested {
		t.Fatal("expected cancel flag in snapshot")
	}
	select {
	case <-f.launcher.proc(0).terminated:
		t.Fatal("process must not be terminated without transcode_kill_on_cancel")
	default:
	}
	if !testsupport.FileExists(t, f.source) {
		t.Fatal("cancelled job must keep its source")
	}
	close(f.launcher.proc(0).release)
}

func TestCancelTerminatesWhenConfigured(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.TranscodeKillOnCancel = true })
	job, err := f.runner.Submit(context.Background(), transcode.Request{SourcePath: f.source, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return f.launcher.started() == 1 })
	if err := f.runner.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitDone(t, job)
	select {
	case <-f.launcher.proc(0).terminated:
	default:
		t.Fatal("expected process group termination")
	}
}

func TestSubmitJoinsPreviousJob(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.runner.Submit(ctx, transcode.Request{SourcePath: f.source, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return f.launcher.started() == 1 })

	second := testsupport.WriteFile(t, filepath.Join(f.cfg.TempDir, "20260301_102000_temp.avi"), 64)
	submitted := make(chan *transcode.Job, 1)
	go func() {
		job, err := f.runner.Submit(ctx, transcode.Request{SourcePath: second, DurationSeconds: 10})
		if err != nil {
			t.Errorf("second Submit: %v", err)
		}
		submitted <- job
	}()

	select {
	case <-submitted:
		t.Fatal("second submit must wait for the first job")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.launcher.proc(0).release)
	waitDone(t, first)
	var next *transcode.Job
	select {
	case next = <-submitted:
	case <-time.After(3 * time.Second):
		t.Fatal("second submit never returned")
	}
	waitFor(t, func() bool { return f.launcher.started() == 2 })
	close(f.launcher.proc(1).release)
	waitDone(t, next)
	if next.Snapshot().State != transcode.StateSucceeded {
		t.Fatalf("second job failed: %+v", next.Snapshot())
	}
}

func TestRetryRerunsFailedJob(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.prober.validErr = errors.New("broken")

	first, err := f.runner.Submit(ctx, transcode.Request{SourcePath: f.source, DurationSeconds: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return f.launcher.started() == 1 })
	close(f.launcher.proc(0).release)
	waitDone(t, first)

	f.prober.mu.Lock()
	f.prober.validErr = nil
	f.prober.mu.Unlock()

	retry, err := f.runner.Retry(ctx, first.ID())
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	waitFor(t, func() bool { return f.launcher.started() == 2 })
	close(f.launcher.proc(1).release)
	waitDone(t, retry)
	if retry.Snapshot().State != transcode.StateSucceeded {
		t.Fatalf("retry failed: %+v", retry.Snapshot())
	}
	rec, err := f.store.GetJob(ctx, retry.ID())
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if rec.RetryOf != first.ID() {
		t.Fatalf("expected retry_of %s, got %q", first.ID(), rec.RetryOf)
	}

	if _, err := f.runner.Retry(ctx, retry.ID()); err == nil {
		t.Fatal("succeeded jobs must not be retried")
	}
}
