package status

import (
	"sync"
	"testing"
	"time"
)

func TestBoardClampsProgress(t *testing.T) {
	b := NewBoard()
	b.SetProgress(150)
	if got := b.Progress(); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	b.SetProgress(-3)
	if got := b.Progress(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestBoardUpdateStampsTime(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Board{now: func() time.Time { return fixed }}
	b.Update(Processing, 42)

	snap := b.Snapshot()
	if snap.Message != Processing || snap.Progress != 42 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !snap.Updated.Equal(fixed) {
		t.Fatalf("expected updated %v, got %v", fixed, snap.Updated)
	}
}

func TestBoardConcurrentAccess(t *testing.T) {
	b := NewBoard()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for p := range 100 {
				b.Update(Recording, p+n)
				_ = b.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	if got := b.Progress(); got < 0 || got > 100 {
		t.Fatalf("progress out of range: %d", got)
	}
}

func TestNilBoardIsSafe(t *testing.T) {
	var b *Board
	b.Set("x")
	b.SetProgress(5)
	if snap := b.Snapshot(); snap.Message != "" || snap.Progress != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestFormatters(t *testing.T) {
	cases := map[string]string{
		Exported(2):             "Exported 2 files",
		Zoom(1.92):              "Zoom: 1.9x",
		ICR(true):               "ICR Mode: ON",
		ICR(false):              "ICR Mode: OFF",
		IRCorrection(true):      "IR Correction: ON",
		IRCorrection(false):     "IR Correction: OFF",
		StorageAttached("sdb1"): "Storage attached: sdb1",
		StorageRemoved("sdb1"):  "Storage removed: sdb1",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}
