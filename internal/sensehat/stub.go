//go:build !linux

package sensehat

import "codeberg.org/avlin/sensehatd/internal/errors"

// Open is only implemented on Linux; the board hangs off a Raspberry Pi.
func Open() (Device, error) {
	return nil, errors.New().WithMessage(ErrDeviceUnavailable, "Sense HAT requires Linux")
}
