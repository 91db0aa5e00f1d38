package logging_test

import (
	"testing"

	"drip/internal/logging"
)

func TestProgressSamplerBuckets(t *testing.T) {
	sampler := logging.NewProgressSampler(10)
	steps := []struct {
		percent int
		want    bool
	}{
		{0, true},
		{4, false},
		{10, true},
		{15, false},
		{9, false},
		{37, true},
		{-1, false},
		{120, true},
		{100, false},
	}
	for _, step := range steps {
		if got := sampler.ShouldLog(step.percent); got != step.want {
			t.Fatalf("ShouldLog(%d) = %v, want %v", step.percent, got, step.want)
		}
	}

	sampler.Reset()
	if !sampler.ShouldLog(0) {
		t.Fatal("expected first sample after reset to log")
	}
}

func TestProgressSamplerDefaultBucket(t *testing.T) {
	sampler := logging.NewProgressSampler(0)
	if !sampler.ShouldLog(1) {
		t.Fatal("expected first sample to log")
	}
	if sampler.ShouldLog(4) {
		t.Fatal("expected same 5% bucket to be suppressed")
	}
	if !sampler.ShouldLog(5) {
		t.Fatal("expected next bucket to log")
	}
}
