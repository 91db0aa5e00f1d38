package ptz

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"drip/internal/config"
	"drip/internal/services"
	"drip/internal/status"
)

type fakePort struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	replies  []byte
	flushed  bool
	closed   bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(b, p.replies)
	p.replies = p.replies[n:]
	return n, nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.flushed = true
	return nil
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) frames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.writes...)
}

type openerStub struct {
	ports    map[string]*fakePort
	attempts []string
}

func (o *openerStub) open(path string, baud int) (Port, error) {
	o.attempts = append(o.attempts, path)
	if p, ok := o.ports[path]; ok {
		return p, nil
	}
	return nil, errors.New("no such device")
}

func newTestController(t *testing.T, opener *openerStub, mutate func(*config.Config)) (*Controller, *status.Board) {
	t.Helper()
	cfg := config.Default()
	cfg.SerialPorts = []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyS0"}
	if mutate != nil {
		mutate(&cfg)
	}
	board := status.NewBoard()
	return New(&cfg, WithOpener(opener.open), WithStatusBoard(board)), board
}

func TestEnsureConnectedTriesCandidatesInOrder(t *testing.T) {
	port := &fakePort{}
	opener := &openerStub{ports: map[string]*fakePort{"/dev/ttyS0": port}}
	ctrl, _ := newTestController(t, opener, nil)

	if err := ctrl.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected returned error: %v", err)
	}
	want := []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyS0"}
	if len(opener.attempts) != len(want) {
		t.Fatalf("attempts = %v", opener.attempts)
	}
	for i := range want {
		if opener.attempts[i] != want[i] {
			t.Fatalf("attempts = %v, want %v", opener.attempts, want)
		}
	}
	if !port.flushed {
		t.Fatal("expected stale input flush")
	}
	frames := port.frames()
	if len(frames) != 1 || !bytes.Equal(frames[0], InitFrame()) {
		t.Fatalf("expected init frame, got % X", frames)
	}

	if err := ctrl.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("second EnsureConnected returned error: %v", err)
	}
	if len(opener.attempts) != 3 {
		t.Fatalf("expected connection reuse, attempts = %v", opener.attempts)
	}
	if state := ctrl.State(); !state.Connected || state.Port != "/dev/ttyS0" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestNoDeviceFound(t *testing.T) {
	ctrl, board := newTestController(t, &openerStub{}, nil)
	err := ctrl.SetZoom(context.Background(), 100)
	if !errors.Is(err, services.ErrNoDeviceFound) || !errors.Is(err, services.ErrDevice) {
		t.Fatalf("expected no device error, got %v", err)
	}
	if board.Message() != status.SerialError {
		t.Fatalf("expected serial error status, got %q", board.Message())
	}
	if ctrl.State().ZoomLevel != 0 {
		t.Fatal("zoom level must not change when the write fails")
	}
}

func TestSetZoomClampsAndEncodes(t *testing.T) {
	port := &fakePort{}
	ctrl, board := newTestController(t, &openerStub{ports: map[string]*fakePort{"/dev/ttyUSB0": port}}, nil)

	if err := ctrl.SetZoom(context.Background(), 4); err != nil {
		t.Fatalf("SetZoom returned error: %v", err)
	}
	if err := ctrl.SetZoom(context.Background(), MaxZoomLevel+5000); err != nil {
		t.Fatalf("SetZoom returned error: %v", err)
	}
	if err := ctrl.SetZoom(context.Background(), -3); err != nil {
		t.Fatalf("SetZoom returned error: %v", err)
	}

	frames := port.frames()
	if len(frames) != 4 {
		t.Fatalf("expected init + 3 zoom frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[1], ZoomFrame(4)) {
		t.Fatalf("frame 1 = % X", frames[1])
	}
	if !bytes.Equal(frames[2], ZoomFrame(MaxZoomLevel)) {
		t.Fatalf("frame 2 = % X", frames[2])
	}
	if !bytes.Equal(frames[3], ZoomFrame(0)) {
		t.Fatalf("frame 3 = % X", frames[3])
	}
	if board.Message() != "Zoom: 0.0x" {
		t.Fatalf("unexpected status %q", board.Message())
	}
}

func TestZoomInOutRespectBounds(t *testing.T) {
	port := &fakePort{}
	ctrl, _ := newTestController(t, &openerStub{ports: map[string]*fakePort{"/dev/ttyUSB0": port}}, func(cfg *config.Config) {
		cfg.ZoomStep = 10000
	})
	ctx := context.Background()

	if err := ctrl.ZoomOut(ctx); err != nil {
		t.Fatalf("ZoomOut at zero returned error: %v", err)
	}
	if len(port.frames()) != 0 {
		t.Fatal("ZoomOut at zero must not send a frame")
	}

	for range 3 {
		if err := ctrl.ZoomIn(ctx); err != nil {
			t.Fatalf("ZoomIn returned error: %v", err)
		}
	}
	if got := ctrl.State().ZoomLevel; got != MaxZoomLevel {
		t.Fatalf("expected clamp at max, got %d", got)
	}
	// init + 2 zoom frames; the third press is a no-op at max
	if got := len(port.frames()); got != 3 {
		t.Fatalf("expected 3 frames, got %d", got)
	}

	if err := ctrl.ZoomOut(ctx); err != nil {
		t.Fatalf("ZoomOut returned error: %v", err)
	}
	if got := ctrl.State().ZoomLevel; got != MaxZoomLevel-10000 {
		t.Fatalf("unexpected level %d", got)
	}
	if err := ctrl.ZoomOut(ctx); err != nil {
		t.Fatalf("ZoomOut returned error: %v", err)
	}
	if got := ctrl.State().ZoomLevel; got != 0 {
		t.Fatalf("expected clamp at zero, got %d", got)
	}
}

func TestWriteFailureDropsConnection(t *testing.T) {
	port := &fakePort{}
	opener := &openerStub{ports: map[string]*fakePort{"/dev/ttyUSB0": port}}
	ctrl, board := newTestController(t, opener, nil)
	ctx := context.Background()

	if err := ctrl.SetICR(ctx, true); err != nil {
		t.Fatalf("SetICR returned error: %v", err)
	}
	if board.Message() != "ICR Mode: ON" {
		t.Fatalf("unexpected status %q", board.Message())
	}

	port.writeErr = errors.New("unplugged")
	err := ctrl.SetIRCorrection(ctx, true)
	if !errors.Is(err, services.ErrDeviceWrite) {
		t.Fatalf("expected write error, got %v", err)
	}
	if !port.closed {
		t.Fatal("expected failed port to be closed")
	}
	if ctrl.State().Connected {
		t.Fatal("expected handle to be dropped")
	}
	if ctrl.State().IRCorrection {
		t.Fatal("IR correction flag must not change on failure")
	}

	port.writeErr = nil
	port.closed = false
	if err := ctrl.SetIRCorrection(ctx, false); err != nil {
		t.Fatalf("reconnect + SetIRCorrection returned error: %v", err)
	}
	if len(opener.attempts) != 2 {
		t.Fatalf("expected reconnection attempt, attempts = %v", opener.attempts)
	}
	if board.Message() != "IR Correction: OFF" {
		t.Fatalf("unexpected status %q", board.Message())
	}
}

func TestReplyReading(t *testing.T) {
	port := &fakePort{}
	ctrl, _ := newTestController(t, &openerStub{ports: map[string]*fakePort{"/dev/ttyUSB0": port}}, func(cfg *config.Config) {
		cfg.SerialReadReplies = true
	})
	ctx := context.Background()
	if err := ctrl.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected returned error: %v", err)
	}

	port.replies = []byte{0x90, 0x41, 0xFF, 0x90, 0x51, 0xFF}
	if err := ctrl.SetICR(ctx, false); err != nil {
		t.Fatalf("ack and completion must be accepted, got %v", err)
	}

	port.replies = []byte{0x90, 0x41, 0xFF, 0x90, 0x61, 0x02, 0xFF}
	err := ctrl.SetICR(ctx, true)
	if !errors.Is(err, services.ErrDeviceReply) {
		t.Fatalf("expected device reply error, got %v", err)
	}
	if !ctrl.State().Connected {
		t.Fatal("error replies must not drop the connection")
	}
}

func TestDisconnectForcesReconnect(t *testing.T) {
	port := &fakePort{}
	opener := &openerStub{ports: map[string]*fakePort{"/dev/ttyUSB0": port}}
	ctrl, _ := newTestController(t, opener, nil)
	ctx := context.Background()

	if err := ctrl.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected returned error: %v", err)
	}
	ctrl.Disconnect()
	if !port.closed {
		t.Fatal("expected port closed")
	}
	if err := ctrl.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected returned error: %v", err)
	}
	if len(opener.attempts) != 2 {
		t.Fatalf("expected two open attempts, got %v", opener.attempts)
	}
}

func TestConcurrentCommandsAreSerialized(t *testing.T) {
	port := &fakePort{}
	ctrl, _ := newTestController(t, &openerStub{ports: map[string]*fakePort{"/dev/ttyUSB0": port}}, func(cfg *config.Config) {
		cfg.ZoomStep = 1
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() { defer wg.Done(); _ = ctrl.ZoomIn(ctx) }()
		go func() { defer wg.Done(); _ = ctrl.SetICR(ctx, true) }()
	}
	wg.Wait()

	if got := ctrl.State().ZoomLevel; got != 20 {
		t.Fatalf("expected 20 serialized zoom steps, got %d", got)
	}
	for _, frame := range port.frames() {
		if frame[len(frame)-1] != 0xFF {
			t.Fatalf("interleaved frame % X", frame)
		}
	}
}

func TestRepeaterRepeatsUntilRelease(t *testing.T) {
	port := &fakePort{}
	ctrl, _ := newTestController(t, &openerStub{ports: map[string]*fakePort{"/dev/ttyUSB0": port}}, func(cfg *config.Config) {
		cfg.ZoomStep = 1
	})
	rep := NewRepeater(5 * time.Millisecond)

	if err := rep.Press(context.Background(), ctrl.ZoomIn); err != nil {
		t.Fatalf("Press returned error: %v", err)
	}
	if !rep.Active() {
		t.Fatal("expected repeater to be active")
	}
	deadline := time.Now().Add(2 * time.Second)
	for ctrl.State().ZoomLevel < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	rep.Release()
	level := ctrl.State().ZoomLevel
	if level < 3 {
		t.Fatalf("expected repeated zoom steps, got level %d", level)
	}
	time.Sleep(30 * time.Millisecond)
	if after := ctrl.State().ZoomLevel; after != level {
		t.Fatalf("zoom continued after release: %d -> %d", level, after)
	}
	if rep.Active() {
		t.Fatal("expected repeater to be idle after release")
	}
}

func TestRepeaterStopsOnError(t *testing.T) {
	ctrl, _ := newTestController(t, &openerStub{}, nil)
	rep := NewRepeater(time.Millisecond)
	if err := rep.Press(context.Background(), ctrl.ZoomIn); err == nil {
		t.Fatal("expected first press to surface device error")
	}
	if rep.Active() {
		t.Fatal("repeater must not start after a failed first action")
	}
}
