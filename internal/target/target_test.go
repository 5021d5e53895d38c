package target_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"codeberg.org/avlin/sensehatd/internal/target"
)

func TestDefault(t *testing.T) {
	tgt := target.New()
	assert.InDelta(t, target.DefaultCelsius, tgt.Get(), 0.0001)
}

func TestNewAtOutOfRangeFallsBack(t *testing.T) {
	assert.InDelta(t, target.DefaultCelsius, target.NewAt(-10).Get(), 0.0001)
	assert.InDelta(t, target.DefaultCelsius, target.NewAt(95).Get(), 0.0001)
	assert.InDelta(t, 30.0, target.NewAt(30).Get(), 0.0001)
}

func TestSetRejectsOutOfRange(t *testing.T) {
	tgt := target.New()

	assert.InDelta(t, 24.0, tgt.Set(24), 0.0001)
	assert.InDelta(t, 24.0, tgt.Set(-5), 0.0001, "out-of-range set leaves the previous value")
	assert.InDelta(t, 24.0, tgt.Get(), 0.0001)

	assert.InDelta(t, 70.0, tgt.Set(70), 0.0001, "boundary values are accepted")
	assert.InDelta(t, 0.0, tgt.Set(0), 0.0001)
}

func TestAdjust(t *testing.T) {
	tgt := target.New()

	assert.InDelta(t, 24.5, tgt.Adjust(0.5), 0.0001)
	assert.InDelta(t, 23.5, tgt.Adjust(-1.0), 0.0001)

	// A step that would leave the range is rejected wholesale.
	tgt.Set(69.8)
	assert.InDelta(t, 69.8, tgt.Adjust(0.5), 0.0001)
	tgt.Set(0.2)
	assert.InDelta(t, 0.2, tgt.Adjust(-0.5), 0.0001)
}
