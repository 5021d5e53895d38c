// Package sensehat provides access to the Sense HAT add-on board: the
// environmental sensors, the accelerometer, the 8x8 LED matrix and the
// five-way joystick. The real implementation talks to the Linux IIO,
// framebuffer and evdev interfaces. The fake implementation allows
// testing without hardware.
package sensehat

import "time"

// Direction is the logical direction of a joystick event.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
	DirectionLeft
	DirectionRight
	DirectionMiddle
)

var directionNames = map[Direction]string{
	DirectionNone:   "none",
	DirectionUp:     "up",
	DirectionDown:   "down",
	DirectionLeft:   "left",
	DirectionRight:  "right",
	DirectionMiddle: "middle",
}

func (d Direction) String() string {
	if n, ok := directionNames[d]; ok {
		return n
	}
	return "unknown"
}

// Action is what the stick did in a joystick event.
type Action int

const (
	ActionPressed Action = iota
	ActionReleased
	ActionHeld
)

var actionNames = map[Action]string{
	ActionPressed:  "pressed",
	ActionReleased: "released",
	ActionHeld:     "held",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// Event is a single joystick input event.
type Event struct {
	Timestamp time.Time
	Direction Direction
	Action    Action
}

// Rotation is the display rotation in degrees. Only the four cardinal
// rotations are representable.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// IsValid reports whether r is one of the four supported rotations.
func (r Rotation) IsValid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	default:
		return false
	}
}

// Color is one LED matrix pixel.
type Color struct {
	R, G, B uint8
}

var (
	ColorOff   = Color{}
	ColorWhite = Color{R: 255, G: 255, B: 255}
	ColorRed   = Color{R: 255}
	ColorGreen = Color{G: 255}
	ColorBlue  = Color{B: 255}
)

// Frame is a full 8x8 pixel grid in row-major order.
type Frame [64]Color

// Acceleration is a raw accelerometer reading in g units.
type Acceleration struct {
	X, Y, Z float64
}

// Device is the capability handle for one Sense HAT board. It is passed
// explicitly to every component that needs hardware access; there is no
// package-level singleton. Sensor reads are idempotent snapshots and are
// safe to issue from multiple goroutines concurrently.
type Device interface {
	// Environmental sensors. All temperatures in Celsius, pressure in
	// hectopascal, humidity in percent relative humidity.
	Temperature() (float64, error)
	TemperatureFromHumidity() (float64, error)
	TemperatureFromPressure() (float64, error)
	Pressure() (float64, error)
	Humidity() (float64, error)

	// Accelerometer returns the raw acceleration vector in g units.
	Accelerometer() (Acceleration, error)

	// Display control.
	SetRotation(Rotation) error
	DrawPixels(Frame) error
	ShowText(string) error
	ShowGlyph(ch rune, bg Color) error
	Clear() error

	// Joystick input. PollEvents drains all pending events in
	// chronological order without blocking. WaitEvent blocks until the
	// next event arrives.
	PollEvents() ([]Event, error)
	WaitEvent() (Event, error)

	Close() error
}
