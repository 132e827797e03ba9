package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUpload marks a failure to hand the artifact to the workflow service.
	ErrUpload = errors.New("artifact upload error")
	// ErrQuota marks quota or rate-limit exhaustion reported by the service.
	ErrQuota = errors.New("quota exhausted")
	// ErrAuth marks authentication or authorization rejections.
	ErrAuth = errors.New("authentication error")
	// ErrValidation marks input that cannot be processed (bad file, missing columns).
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or invalid service configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups for records that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks server-side, gateway, timeout, and connection faults.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// Category returns the taxonomy tag for an error, matching the first sentinel
// the error wraps. Unrecognized errors report "unknown".
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuota):
		return "quota"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
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
