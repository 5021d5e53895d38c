package ui_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/avlin/sensehatd/internal/metrics"
	"codeberg.org/avlin/sensehatd/internal/recorder"
	"codeberg.org/avlin/sensehatd/internal/sensehat"
	"codeberg.org/avlin/sensehatd/internal/target"
	"codeberg.org/avlin/sensehatd/internal/ui"
)

// pollDevice scripts PollEvents per tick while delegating WaitEvent to
// the embedded fake's queue. This separates loop-dispatched input from
// input consumed inside blocking screens.
type pollDevice struct {
	*sensehat.Fake
	polls [][]sensehat.Event
}

func (d *pollDevice) PollEvents() ([]sensehat.Event, error) {
	if len(d.polls) == 0 {
		return nil, nil
	}
	events := d.polls[0]
	d.polls = d.polls[1:]
	return events, nil
}

func (d *pollDevice) poll(events ...sensehat.Event) {
	d.polls = append(d.polls, events)
}

type recordingShutdowner struct {
	calls atomic.Int32
}

func (s *recordingShutdowner) Shutdown() error {
	s.calls.Add(1)
	return nil
}

type steppingStat struct {
	calls atomic.Uint64
}

func (s *steppingStat) ReadCPUTimes() (metrics.CPUTimes, error) {
	n := s.calls.Add(1)
	return metrics.CPUTimes{100 + n*10, 0, 50 + n*10, 850 + n*30}, nil
}

type fixedLoad struct{}

func (fixedLoad) ReadLoadAvg() (metrics.LoadAverages, error) {
	return metrics.LoadAverages{Load1: 0.5, Load5: 0.5, Load15: 0.5}, nil
}

type fixedCPUTemp struct{}

func (fixedCPUTemp) ReadCPUTemp() (string, error) {
	return "temp=48.3'C\n", nil
}

func pressed(d sensehat.Direction) sensehat.Event {
	return sensehat.Event{Timestamp: time.Now(), Direction: d, Action: sensehat.ActionPressed}
}

func released(d sensehat.Direction) sensehat.Event {
	return sensehat.Event{Timestamp: time.Now(), Direction: d, Action: sensehat.ActionReleased}
}

type fixture struct {
	device     *pollDevice
	navigator  *ui.Navigator
	target     *target.Temperature
	recorder   *recorder.Recorder
	shutdowner *recordingShutdowner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	device := &pollDevice{Fake: sensehat.NewFake()}
	engine := metrics.NewEngineWithSources(device, &steppingStat{}, fixedLoad{}, fixedCPUTemp{}, 4)
	tgt := target.New()

	rec, err := recorder.New(engine, tgt, noopCollector{}, recorder.Config{
		Path:      filepath.Join(t.TempDir(), "sensehat_log"),
		Separator: " ",
		Interval:  10 * time.Millisecond,
	})
	require.NoError(t, err)

	shutdowner := &recordingShutdowner{}
	navigator := ui.New(device, engine, tgt, rec, ui.Options{
		UsageWindow: time.Millisecond,
		Sleep:       func(time.Duration) {},
		CoreCount:   4,
		Shutdowner:  shutdowner,
	})

	return &fixture{device: device, navigator: navigator, target: tgt, recorder: rec, shutdowner: shutdowner}
}

type noopCollector struct{}

func (noopCollector) Record(context.Context, *metrics.Reading) error { return nil }
func (noopCollector) Close() error                                   { return nil }

func TestTitleShownOncePerScreen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.navigator.Tick(ctx)
	f.navigator.Tick(ctx)

	assert.Equal(t, []rune{'T'}, f.device.Glyphs, "title appears once, not every tick")
	assert.Equal(t, []string{"25.50", "25.50"}, f.device.Texts, "numeric readout after the title")
}

func TestScreenWraparound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.device.poll(pressed(sensehat.DirectionLeft))
	f.navigator.Tick(ctx)
	assert.Equal(t, ui.ScreenLogging, f.navigator.CurrentScreen(), "stepping left from the first screen wraps to the last")

	f.device.poll(pressed(sensehat.DirectionRight))
	f.navigator.Tick(ctx)
	assert.Equal(t, ui.ScreenTemperature, f.navigator.CurrentScreen(), "stepping right wraps back around")
}

func TestReleasedEventsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.device.poll(released(sensehat.DirectionRight), released(sensehat.DirectionUp))
	f.navigator.Tick(ctx)

	assert.Equal(t, ui.ScreenTemperature, f.navigator.CurrentScreen())
	assert.Equal(t, []string{"25.50"}, f.device.Texts, "value cursor unchanged by releases")
}

func TestValueCursorTogglesBarGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.device.poll(pressed(sensehat.DirectionUp))
	f.navigator.Tick(ctx)

	frame, ok := f.device.LastFrame()
	require.True(t, ok, "odd value cursor renders a bar graph")

	lit := 0
	for _, pixel := range frame {
		if pixel != sensehat.ColorOff {
			lit++
		}
	}
	// 25.5 degrees on the 0..40 scale of the 64-pixel grid.
	assert.Equal(t, 40, lit)

	f.device.poll(pressed(sensehat.DirectionUp))
	f.navigator.Tick(ctx)
	assert.Equal(t, []string{"25.50"}, f.device.Texts, "even value cursor is numeric again")
}

func TestRotationRemapsNavigation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Mounted upside down: gravity points along -y.
	f.device.Fake.Accel = sensehat.Acceleration{X: 0, Y: -1, Z: 0}

	f.device.poll(pressed(sensehat.DirectionLeft))
	f.navigator.Tick(ctx)

	assert.Equal(t, sensehat.Rotate180, f.device.Fake.Rotation)
	assert.Equal(t, ui.ScreenPressure, f.navigator.CurrentScreen(), "physical left means right when rotated 180")
}

func TestScreenOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Middle turns the display off; everything but the next middle press
	// is swallowed.
	f.device.poll(pressed(sensehat.DirectionMiddle))
	f.device.Fake.QueueEvents(
		pressed(sensehat.DirectionRight),
		released(sensehat.DirectionRight),
		pressed(sensehat.DirectionMiddle),
	)
	f.navigator.Tick(ctx)

	assert.Equal(t, 1, f.device.Fake.Clears)
	assert.Equal(t, ui.ScreenTemperature, f.navigator.CurrentScreen(), "input during screen-off does not navigate")
}

func navigateToShutdown(t *testing.T, f *fixture) {
	t.Helper()
	f.device.poll(
		pressed(sensehat.DirectionRight),
		pressed(sensehat.DirectionRight),
		pressed(sensehat.DirectionRight),
		pressed(sensehat.DirectionRight),
		pressed(sensehat.DirectionRight),
	)
}

func TestShutdownRequiresTwoConfirmations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	navigateToShutdown(t, f)
	f.device.Fake.QueueEvents(pressed(sensehat.DirectionUp), pressed(sensehat.DirectionUp))
	f.navigator.Tick(ctx)

	assert.Equal(t, ui.ScreenShutdown, f.navigator.CurrentScreen())
	assert.Equal(t, int32(1), f.shutdowner.calls.Load())
}

func TestShutdownAbortedByOtherDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	navigateToShutdown(t, f)
	f.device.Fake.QueueEvents(pressed(sensehat.DirectionUp), pressed(sensehat.DirectionDown))
	f.navigator.Tick(ctx)

	assert.Zero(t, f.shutdowner.calls.Load(), "a lone confirmation does not shut down")

	// The confirmation count starts over: a later single up is not
	// enough either.
	f.device.Fake.QueueEvents(pressed(sensehat.DirectionUp), pressed(sensehat.DirectionLeft))
	f.navigator.Tick(ctx)
	assert.Zero(t, f.shutdowner.calls.Load())
}

func TestShutdownScreenNavigatesAway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	navigateToShutdown(t, f)
	f.device.Fake.QueueEvents(pressed(sensehat.DirectionRight))
	f.navigator.Tick(ctx)

	assert.Equal(t, ui.ScreenSetTarget, f.navigator.CurrentScreen())
	assert.Zero(t, f.shutdowner.calls.Load())
}

func TestSetTargetAppliesAndResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two steps left wraps to the set-target screen.
	f.device.poll(pressed(sensehat.DirectionLeft), pressed(sensehat.DirectionLeft))
	f.navigator.Tick(ctx)
	require.Equal(t, ui.ScreenSetTarget, f.navigator.CurrentScreen())
	assert.Equal(t, []string{"24.0"}, f.device.Texts)

	// Two ups accumulate before the render applies them as one degree.
	f.device.poll(pressed(sensehat.DirectionUp), pressed(sensehat.DirectionUp))
	f.navigator.Tick(ctx)
	assert.InDelta(t, 25.0, f.target.Get(), 0.0001)
	assert.Equal(t, "25.0", f.device.Texts[len(f.device.Texts)-1])

	// The cursor was reset: an eventless tick applies nothing further.
	f.navigator.Tick(ctx)
	assert.InDelta(t, 25.0, f.target.Get(), 0.0001)
}

func TestLoggingScreenTogglesRecorder(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.recorder.Run(ctx)
		close(done)
	}()
	require.Eventually(t, f.recorder.Alive, 2*time.Second, time.Millisecond)

	f.device.poll(pressed(sensehat.DirectionLeft))
	f.navigator.Tick(ctx)
	require.Equal(t, ui.ScreenLogging, f.navigator.CurrentScreen())

	f.device.poll(pressed(sensehat.DirectionUp))
	f.navigator.Tick(ctx)
	require.Eventually(t, f.recorder.Active, 2*time.Second, time.Millisecond, "up starts logging")

	f.device.poll(pressed(sensehat.DirectionDown))
	f.navigator.Tick(ctx)
	require.Eventually(t, func() bool { return !f.recorder.Active() }, 2*time.Second, time.Millisecond, "down stops logging")

	assert.Contains(t, f.device.Glyphs, 'L')

	cancel()
	<-done
}

func TestSensorFaultRendersFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.device.Fake.SensorErr = context.DeadlineExceeded
	f.navigator.Tick(ctx)

	assert.Contains(t, f.device.Glyphs, '?', "a failed read shows the fallback glyph instead of crashing")
}
