package metrics

import "codeberg.org/avlin/sensehatd/internal/errors"

const (
	// Source errors: the kernel stat or CPU temperature source is
	// missing or unreadable.
	ErrSourceUnavailable = errors.ErrorCode("metrics_source_unavailable")

	// Parse errors
	ErrMalformedTemperature = errors.ErrorCode("metrics_malformed_temperature")

	// Arithmetic edge cases, recoverable by the caller.
	ErrInsufficientHistory = errors.ErrorCode("metrics_insufficient_history")
	ErrDivisionUndefined   = errors.ErrorCode("metrics_division_undefined")
)
