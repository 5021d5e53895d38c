package sensehat

import (
	"sync"

	"codeberg.org/avlin/sensehatd/internal/errors"
)

// Fake is a test double that returns scripted sensor values and joystick
// events, and records everything drawn to the display. It satisfies
// Device and is safe for concurrent use, matching the real board's
// tolerance for concurrent reads.
type Fake struct {
	mu sync.Mutex

	// Scripted sensor values.
	TemperatureC  float64
	HumidityTempC float64
	PressureTempC float64
	PressureHPa   float64
	HumidityPct   float64
	Accel         Acceleration

	// SensorErr, if set, is returned by every sensor read.
	SensorErr error
	// InputErr, if set, is returned by PollEvents and WaitEvent.
	InputErr error

	// events is consumed front-first by PollEvents/WaitEvent.
	events []Event

	// Recorded display activity.
	Rotation Rotation
	Frames   []Frame
	Texts    []string
	Glyphs   []rune
	Clears   int

	Closed bool
}

// NewFake creates a Fake with plausible ambient defaults.
func NewFake() *Fake {
	return &Fake{
		TemperatureC:  25.5,
		HumidityTempC: 25.1,
		PressureTempC: 24.8,
		PressureHPa:   1013.25,
		HumidityPct:   48.0,
		Accel:         Acceleration{X: 0, Y: 1, Z: 0},
	}
}

// QueueEvents appends scripted joystick events.
func (f *Fake) QueueEvents(events ...Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
}

func (f *Fake) readSensor(value float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SensorErr != nil {
		return 0, errors.New().Wrap(ErrSensorRead, f.SensorErr)
	}
	return value, nil
}

func (f *Fake) Temperature() (float64, error) {
	return f.readSensor(f.TemperatureC)
}

func (f *Fake) TemperatureFromHumidity() (float64, error) {
	return f.readSensor(f.HumidityTempC)
}

func (f *Fake) TemperatureFromPressure() (float64, error) {
	return f.readSensor(f.PressureTempC)
}

func (f *Fake) Pressure() (float64, error) {
	return f.readSensor(f.PressureHPa)
}

func (f *Fake) Humidity() (float64, error) {
	return f.readSensor(f.HumidityPct)
}

func (f *Fake) Accelerometer() (Acceleration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SensorErr != nil {
		return Acceleration{}, errors.New().Wrap(ErrSensorRead, f.SensorErr)
	}
	return f.Accel, nil
}

func (f *Fake) SetRotation(r Rotation) error {
	if !r.IsValid() {
		return errors.New().WithData(ErrInvalidRotation, int(r))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rotation = r
	return nil
}

func (f *Fake) DrawPixels(frame Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames = append(f.Frames, frame)
	return nil
}

func (f *Fake) ShowText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Texts = append(f.Texts, text)
	return nil
}

func (f *Fake) ShowGlyph(ch rune, _ Color) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Glyphs = append(f.Glyphs, ch)
	return nil
}

func (f *Fake) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clears++
	return nil
}

// PollEvents drains and returns all queued events.
func (f *Fake) PollEvents() ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InputErr != nil {
		return nil, errors.New().Wrap(ErrInputFailed, f.InputErr)
	}
	events := f.events
	f.events = nil
	return events, nil
}

// WaitEvent consumes the next queued event. Unlike the real device it
// does not block: an empty queue is a scripting mistake and reported as
// an input failure so tests fail fast instead of hanging.
func (f *Fake) WaitEvent() (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InputErr != nil {
		return Event{}, errors.New().Wrap(ErrInputFailed, f.InputErr)
	}
	if len(f.events) == 0 {
		return Event{}, errors.New().WithMessage(ErrInputFailed, "no scripted events left")
	}
	event := f.events[0]
	f.events = f.events[1:]
	return event, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// LastFrame returns the most recently drawn frame, if any.
func (f *Fake) LastFrame() (Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Frames) == 0 {
		return Frame{}, false
	}
	return f.Frames[len(f.Frames)-1], true
}
