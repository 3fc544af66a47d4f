// Package services carries the cross-cutting contracts shared by pipeline
// stages: the sentinel error taxonomy used to classify failures as
// retryable, permanent, ambiguous, or run-aborting; a bounded backoff Retry
// helper; and context carriers so log lines can be tagged with the run,
// stage, and paper being processed.
package services
