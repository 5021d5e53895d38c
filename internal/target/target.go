// Package target holds the user-adjustable target ambient temperature.
// It stands in for an external reference thermometer until one exists.
package target

import "sync"

const (
	// DefaultCelsius is the startup target.
	DefaultCelsius = 24.0

	// The accepted range follows the Raspberry Pi's specified operating
	// temperature.
	minCelsius = 0.0
	maxCelsius = 70.0
)

// Temperature is a single mutable Celsius value, always within [0, 70].
// Safe for concurrent use: the UI writes while the background logger
// reads.
type Temperature struct {
	mu    sync.RWMutex
	value float64
}

// New returns a target at the default temperature.
func New() *Temperature {
	return NewAt(DefaultCelsius)
}

// NewAt returns a target at the given temperature. An out-of-range
// start value falls back to the default.
func NewAt(celsius float64) *Temperature {
	if celsius < minCelsius || celsius > maxCelsius {
		celsius = DefaultCelsius
	}
	return &Temperature{value: celsius}
}

// Get returns the current target in Celsius.
func (t *Temperature) Get() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

// Set stores celsius if it is within [0, 70]; out-of-range values are
// silently rejected, leaving the target unchanged. The resulting value
// is returned either way.
func (t *Temperature) Set(celsius float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if celsius >= minCelsius && celsius <= maxCelsius {
		t.value = celsius
	}
	return t.value
}

// Adjust shifts the target by delta degrees, subject to the same
// clamp-or-reject policy as Set.
func (t *Temperature) Adjust(delta float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.value + delta
	if next >= minCelsius && next <= maxCelsius {
		t.value = next
	}
	return t.value
}
