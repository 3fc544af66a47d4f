package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input that can never succeed.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a lookup that returned no result.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks dependency failures worth retrying (network, 5xx, throttling).
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks dependency failures that will not succeed on retry (4xx).
	ErrPermanent = errors.New("permanent failure")
	// ErrAmbiguous marks a match that resolved to more than one knowledge graph item.
	ErrAmbiguous = errors.New("ambiguous match")
	// ErrConflict marks a paper whose resolved item differs from the recorded one.
	ErrConflict = errors.New("link conflict")
	// ErrStage marks a structural failure that must abort the whole run.
	ErrStage = errors.New("stage failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether the error should be retried by the calling stage.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsFatal reports whether the error must abort the run rather than be
// aggregated into per-record counts.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStage) || errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
