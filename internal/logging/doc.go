// Package logging assembles structured slog loggers and formatting helpers used
// across drip components.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so recording, transcode, and export code can tag
// log lines with session IDs, job IDs, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
