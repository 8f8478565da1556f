// Package logging assembles structured slog loggers and formatting helpers
// used across the imscp commands and packages.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so packaging code can tag log
// lines with the package, manifest item and run they belong to. NewNop
// provides a silent logger for tests and wiring code that cannot fail.
package logging
