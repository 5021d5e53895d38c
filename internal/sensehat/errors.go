package sensehat

import "codeberg.org/avlin/sensehatd/internal/errors"

const (
	// Device discovery and lifecycle errors
	ErrDeviceUnavailable = errors.ErrorCode("sensehat_device_unavailable")
	ErrDeviceClosed      = errors.ErrorCode("sensehat_device_closed")

	// Sensor errors
	ErrSensorRead = errors.ErrorCode("sensehat_sensor_read_failed")

	// Display errors
	ErrDisplayWrite    = errors.ErrorCode("sensehat_display_write_failed")
	ErrInvalidRotation = errors.ErrorCode("sensehat_invalid_rotation")

	// Joystick errors
	ErrInputFailed = errors.ErrorCode("sensehat_input_failed")
)
