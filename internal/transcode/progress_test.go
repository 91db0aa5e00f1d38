package transcode

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComputeFPS(t *testing.T) {
	cases := []struct {
		name     string
		frames   int64
		duration float64
		want     float64
	}{
		{"exact", 300, 10, 30.0},
		{"slow camera", 250, 10, 25.0},
		{"unknown frames", 0, 10, DefaultFPS},
		{"zero duration", 300, 0, DefaultFPS},
		{"negative duration", 300, -1, DefaultFPS},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeFPS(tc.frames, tc.duration); got != tc.want {
				t.Fatalf("ComputeFPS(%d, %v) = %v, want %v", tc.frames, tc.duration, got, tc.want)
			}
		})
	}
}

func TestParseProgressTakesLastFrameLine(t *testing.T) {
	data := []byte("frame=10\nfps=30.0\nprogress=continue\nframe=120\nfps=29.9\nframe=bogus\nprogress=continue\n")
	frame, ok := ParseProgress(data)
	if !ok || frame != 120 {
		t.Fatalf("ParseProgress = %d, %v; want 120, true", frame, ok)
	}
	if _, ok := ParseProgress([]byte("progress=continue\n")); ok {
		t.Fatal("expected no frame line")
	}
}

func TestReadProgressFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.txt")
	if _, ok := ReadProgressFile(path); ok {
		t.Fatal("missing file must report false")
	}
	if err := os.WriteFile(path, []byte("frame=42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if frame, ok := ReadProgressFile(path); !ok || frame != 42 {
		t.Fatalf("ReadProgressFile = %d, %v", frame, ok)
	}
}

func TestPercentCapsBelowHundred(t *testing.T) {
	cases := []struct {
		current, total int64
		want           int
		known          bool
	}{
		{0, 300, 0, true},
		{150, 300, 50, true},
		{298, 300, 99, true},
		{300, 300, 99, true},
		{450, 300, 99, true},
		{10, 0, 0, false},
	}
	for _, tc := range cases {
		got, known := Percent(tc.current, tc.total)
		if got != tc.want || known != tc.known {
			t.Fatalf("Percent(%d, %d) = %d, %v; want %d, %v", tc.current, tc.total, got, known, tc.want, tc.known)
		}
	}
}

func TestJobProgressIsMonotonic(t *testing.T) {
	job := newJob("j", Request{}, "out.avi")
	job.setProbe(100, 30)
	for _, frame := range []int64{10, 50, 40, 99, 100} {
		job.observeFrame(frame)
	}
	snap := job.Snapshot()
	if snap.Progress != 99 {
		t.Fatalf("expected progress capped at 99, got %d", snap.Progress)
	}
	if snap.CurrentFrame != 100 {
		t.Fatalf("expected current frame 100, got %d", snap.CurrentFrame)
	}
	job.succeed()
	if snap := job.Snapshot(); snap.Progress != 100 || snap.State != StateSucceeded {
		t.Fatalf("unexpected terminal snapshot %+v", snap)
	}
}

func TestDestPath(t *testing.T) {
	cases := map[string]string{
		"/tmp/20260301_101500_temp.avi": "/srv/rec/20260301_101500.avi",
		"/tmp/short.avi":                "/srv/rec/short.avi",
	}
	for src, want := range cases {
		if got := DestPath("/srv/rec", src); got != want {
			t.Fatalf("DestPath(%q) = %q, want %q", src, got, want)
		}
	}
}
