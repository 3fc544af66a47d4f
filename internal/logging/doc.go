// Package logging assembles the structured slog loggers used across the
// linking pipeline. It centralizes level and output plumbing, standardizes
// field names, and exposes context-aware helpers so stage code automatically
// tags log lines with the run, stage, and paper being processed. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
