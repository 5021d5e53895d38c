package ui

import "codeberg.org/avlin/sensehatd/internal/sensehat"

// Screen is one display mode in the fixed cyclic order. The order is a
// design constant, not user-configurable.
type Screen int

const (
	ScreenTemperature Screen = iota
	ScreenPressure
	ScreenHumidity
	ScreenCPUTemperature
	ScreenCPUUsage
	ScreenShutdown
	ScreenSetTarget
	ScreenLogging

	NumScreens = 8
)

var screenTitles = map[Screen]rune{
	ScreenTemperature:    'T',
	ScreenPressure:       'P',
	ScreenHumidity:       'H',
	ScreenCPUTemperature: 'C',
	ScreenCPUUsage:       'U',
	ScreenShutdown:       'X',
	ScreenSetTarget:      'S',
	ScreenLogging:        'L',
}

// Title is the one-letter overlay shown on screen entry.
func (s Screen) Title() rune {
	if t, ok := screenTitles[s]; ok {
		return t
	}
	return '?'
}

// barScale is the per-screen linear mapping from a reading to lit
// pixels on the 64-pixel display.
type barScale struct {
	min, max float64
}

var barScales = map[Screen]barScale{
	ScreenTemperature:    {min: 0, max: 40},
	ScreenPressure:       {min: 950, max: 1050},
	ScreenHumidity:       {min: 0, max: 100},
	ScreenCPUTemperature: {min: 0, max: 80},
}

// pixels converts a reading to the count of lit pixels in [0, 64].
func (b barScale) pixels(value float64) int {
	if b.max <= b.min {
		return 0
	}
	fraction := (value - b.min) / (b.max - b.min)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return int(fraction * 64)
}

// barFrame lights the first n pixels of the grid.
func barFrame(n int, color sensehat.Color) sensehat.Frame {
	var frame sensehat.Frame
	for i := 0; i < n && i < len(frame); i++ {
		frame[i] = color
	}
	return frame
}
