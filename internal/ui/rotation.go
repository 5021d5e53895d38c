package ui

import (
	"math"

	"codeberg.org/avlin/sensehatd/internal/sensehat"
)

// OrientationFromAccel picks the display rotation from the gravity
// vector, using rounded x/y acceleration. Decision table: x≈-1 → 90°,
// y≈+1 → 0°, y≈-1 → 180°, anything else → 270°.
func OrientationFromAccel(a sensehat.Acceleration) sensehat.Rotation {
	x := math.Round(a.X)
	y := math.Round(a.Y)

	switch {
	case x == -1:
		return sensehat.Rotate90
	case y == 1:
		return sensehat.Rotate0
	case y == -1:
		return sensehat.Rotate180
	default:
		return sensehat.Rotate270
	}
}

// LogicalDirection maps a physical joystick direction to the direction
// the user meant under the current display rotation, so "up" from the
// user's perspective always triggers the same action. Middle is
// rotation-independent.
func LogicalDirection(physical sensehat.Direction, rotation sensehat.Rotation) sensehat.Direction {
	if physical == sensehat.DirectionMiddle || physical == sensehat.DirectionNone {
		return physical
	}

	logical := physical
	for turns := int(rotation) / 90; turns > 0; turns-- {
		logical = quarterTurn(logical)
	}

	return logical
}

// quarterTurn rotates a direction 90 degrees clockwise.
func quarterTurn(d sensehat.Direction) sensehat.Direction {
	switch d {
	case sensehat.DirectionUp:
		return sensehat.DirectionRight
	case sensehat.DirectionRight:
		return sensehat.DirectionDown
	case sensehat.DirectionDown:
		return sensehat.DirectionLeft
	case sensehat.DirectionLeft:
		return sensehat.DirectionUp
	default:
		return d
	}
}
