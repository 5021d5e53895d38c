package recorder

import "codeberg.org/avlin/sensehatd/internal/errors"

const (
	// Persistence errors: the log file cannot be opened or appended.
	ErrPersistence = errors.ErrorCode("recorder_persistence_failed")

	// Configuration errors
	ErrInvalidInterval = errors.ErrorCode("recorder_invalid_interval")
	ErrInvalidPath     = errors.ErrorCode("recorder_invalid_path")
)
