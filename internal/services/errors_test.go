package services_test

import (
	"errors"
	"strings"
	"testing"

	"drip/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSinkOpen, "recording", "open sink", "ffmpeg refused", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrSinkOpen) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, services.ErrRecording) {
		t.Fatalf("expected category to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"recording", "open sink", "ffmpeg refused"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestSpecificErrorsMatchTheirCategory(t *testing.T) {
	cases := []struct {
		err      error
		category error
	}{
		{services.ErrNoDeviceFound, services.ErrDevice},
		{services.ErrDeviceWrite, services.ErrDevice},
		{services.ErrAlreadyProcessing, services.ErrRecording},
		{services.ErrSinkWrite, services.ErrRecording},
		{services.ErrSourceMissing, services.ErrTranscode},
		{services.ErrOutputInvalid, services.ErrTranscode},
		{services.ErrSizeMismatch, services.ErrExport},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.category) {
			t.Fatalf("expected %v to match %v", tc.err, tc.category)
		}
	}
	if errors.Is(services.ErrSizeMismatch, services.ErrTranscode) {
		t.Fatal("export error must not match transcode category")
	}
}

func TestStatusText(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"device", services.Wrap(services.ErrNoDeviceFound, "ptz", "connect", "", nil), "Serial error"},
		{"processing", services.ErrAlreadyProcessing, "Processing..."},
		{"missing source", services.Wrap(services.ErrSourceMissing, "transcode", "stat", "", errors.New("enoent")), "Error: File not found"},
		{"invalid output", services.ErrOutputInvalid, "Error processing video"},
		{"start failure", services.ErrTranscodeStart, "Error starting process"},
		{"sink", services.ErrSinkWrite, "Error"},
		{"export while recording", services.ErrExportWhileRecording, "Stop rec before exporting"},
		{"unknown", errors.New("other"), "Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.StatusText(tc.err); got != tc.want {
				t.Fatalf("StatusText = %q, want %q", got, tc.want)
			}
		})
	}
}
