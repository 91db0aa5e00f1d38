package transcode

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Process is a started transcoder.
type Process interface {
	// Wait blocks until the process exits.
	Wait() error
	// Terminate signals the process group to stop.
	Terminate() error
}

// Launcher starts transcoder processes.
type Launcher interface {
	Start(ctx context.Context, binary string, args []string) (Process, error)
}

// execLauncher runs ffmpeg in its own process group, detached from any
// request context so a cancelled job can leave it running.
type execLauncher struct{}

func (execLauncher) Start(_ context.Context, binary string, args []string) (Process, error) {
	cmd := exec.Command(binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	tail := &tailWriter{limit: 2048}
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stderr: tail}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr *tailWriter
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	if err != nil {
		if detail := p.stderr.String(); detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
	}
	return err
}

func (p *execProcess) Terminate() error {
	if p.cmd.Process == nil {
		return errors.New("process not started")
	}
	if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = w.buf[over:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}
