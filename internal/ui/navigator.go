// Package ui drives the 8x8 display and joystick: a single-threaded
// event loop owning the screen/value cursor state, with the background
// recorder toggled over its control channel.
package ui

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"codeberg.org/avlin/sensehatd/internal/logger"
	"codeberg.org/avlin/sensehatd/internal/metrics"
	"codeberg.org/avlin/sensehatd/internal/recorder"
	"codeberg.org/avlin/sensehatd/internal/sensehat"
	"codeberg.org/avlin/sensehatd/internal/target"
)

const (
	defaultTickInterval = 100 * time.Millisecond
	defaultTitleHold    = 500 * time.Millisecond
	defaultUsageWindow  = 250 * time.Millisecond

	targetStepCelsius = 0.5

	shutdownConfirmations = 2
)

// Shutdowner invokes the privileged host shutdown. Fire-and-forget: no
// result is awaited.
type Shutdowner interface {
	Shutdown() error
}

type execShutdowner struct{}

func (execShutdowner) Shutdown() error {
	return exec.Command("shutdown", "-h", "now").Start()
}

// Options tune loop timing and inject test doubles. Zero values take
// defaults.
type Options struct {
	TickInterval time.Duration
	TitleHold    time.Duration
	UsageWindow  time.Duration
	CoreCount    int
	Sleep        func(time.Duration)
	Shutdowner   Shutdowner
}

// Navigator owns all UI navigation state.
type Navigator struct {
	device   sensehat.Device
	engine   *metrics.Engine
	target   *target.Temperature
	recorder *recorder.Recorder

	tickInterval time.Duration
	titleHold    time.Duration
	usageWindow  time.Duration
	coreCount    int
	sleep        func(time.Duration)
	shutdowner   Shutdowner

	screenIndex int
	valueIndex  int
	titleShown  bool
	rotation    sensehat.Rotation
}

func New(device sensehat.Device, engine *metrics.Engine, tgt *target.Temperature, rec *recorder.Recorder, opts Options) *Navigator {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.TitleHold <= 0 {
		opts.TitleHold = defaultTitleHold
	}
	if opts.UsageWindow <= 0 {
		opts.UsageWindow = defaultUsageWindow
	}
	if opts.CoreCount <= 0 {
		opts.CoreCount = 4
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Shutdowner == nil {
		opts.Shutdowner = execShutdowner{}
	}

	return &Navigator{
		device:       device,
		engine:       engine,
		target:       tgt,
		recorder:     rec,
		tickInterval: opts.TickInterval,
		titleHold:    opts.TitleHold,
		usageWindow:  opts.UsageWindow,
		coreCount:    opts.CoreCount,
		sleep:        opts.Sleep,
		shutdowner:   opts.Shutdowner,
	}
}

// CurrentScreen resolves the possibly-negative screen index to a screen
// by wrapping modulo the screen count.
func (n *Navigator) CurrentScreen() Screen {
	return Screen(((n.screenIndex % NumScreens) + NumScreens) % NumScreens)
}

// Run executes the event loop until ctx is cancelled.
func (n *Navigator) Run(ctx context.Context) {
	for ctx.Err() == nil {
		n.Tick(ctx)
		n.sleep(n.tickInterval)
	}

	if err := n.device.Clear(); err != nil {
		logger.Warn().Err(err).Msg("Failed to clear display on exit")
	}
}

// Tick runs one main-loop iteration: orientation, event drain, render.
// A transient sensor or input failure is reported and the iteration
// carries on; the loop never terminates because of one.
func (n *Navigator) Tick(ctx context.Context) {
	n.updateOrientation()

	events, err := n.device.PollEvents()
	if err != nil {
		logger.Warn().Err(err).Msg("Joystick poll failed")
	}
	for _, event := range events {
		n.handleEvent(event)
	}

	n.render(ctx)
}

// updateOrientation rotates the display to follow gravity and keeps the
// joystick remap in sync. On a failed accelerometer read the previous
// rotation is kept.
func (n *Navigator) updateOrientation() {
	accel, err := n.device.Accelerometer()
	if err != nil {
		logger.Warn().Err(err).Msg("Accelerometer read failed, keeping rotation")
		return
	}

	rotation := OrientationFromAccel(accel)
	if rotation == n.rotation {
		return
	}
	if err := n.device.SetRotation(rotation); err != nil {
		logger.Warn().Err(err).Msg("Failed to rotate display")
		return
	}
	n.rotation = rotation
}

func (n *Navigator) handleEvent(event sensehat.Event) {
	if event.Action != sensehat.ActionPressed {
		return
	}

	switch LogicalDirection(event.Direction, n.rotation) {
	case sensehat.DirectionMiddle:
		n.screenOff()
	case sensehat.DirectionLeft:
		n.changeScreen(-1)
	case sensehat.DirectionRight:
		n.changeScreen(+1)
	case sensehat.DirectionUp:
		n.valueIndex++
	case sensehat.DirectionDown:
		n.valueIndex--
	}
}

func (n *Navigator) changeScreen(delta int) {
	n.screenIndex += delta
	n.valueIndex = 0
	n.titleShown = false
}

// screenOff blanks the display and suspends the loop entirely until the
// next middle push. All other input is consumed and ignored.
func (n *Navigator) screenOff() {
	if err := n.device.Clear(); err != nil {
		logger.Warn().Err(err).Msg("Failed to blank display")
	}

	for {
		event, err := n.device.WaitEvent()
		if err != nil {
			logger.Warn().Err(err).Msg("Joystick wait failed, leaving screen-off state")
			return
		}
		if event.Direction == sensehat.DirectionMiddle && event.Action == sensehat.ActionPressed {
			return
		}
	}
}

func (n *Navigator) render(ctx context.Context) {
	if !n.titleShown {
		if err := n.device.ShowGlyph(n.CurrentScreen().Title(), sensehat.ColorOff); err != nil {
			logger.Warn().Err(err).Msg("Failed to show screen title")
		}
		n.sleep(n.titleHold)
		n.titleShown = true
	}

	switch screen := n.CurrentScreen(); screen {
	case ScreenShutdown:
		n.renderShutdown()
	case ScreenSetTarget:
		n.renderSetTarget()
	case ScreenLogging:
		n.renderLogging()
	case ScreenCPUUsage:
		n.renderCPUUsage(ctx)
	default:
		n.renderSensor(screen)
	}
}

// renderSensor shows the reading numerically on even value cursors and
// as a proportional bar graph on odd ones.
func (n *Navigator) renderSensor(screen Screen) {
	value, err := n.readSensor(screen)
	if err != nil {
		n.renderFallback(err)
		return
	}

	if n.valueIndex%2 == 0 {
		if err := n.device.ShowText(fmt.Sprintf("%.2f", value)); err != nil {
			logger.Warn().Err(err).Msg("Failed to render readout")
		}
		return
	}

	frame := barFrame(barScales[screen].pixels(value), sensehat.ColorBlue)
	if err := n.device.DrawPixels(frame); err != nil {
		logger.Warn().Err(err).Msg("Failed to render bar graph")
	}
}

func (n *Navigator) readSensor(screen Screen) (float64, error) {
	switch screen {
	case ScreenTemperature:
		return n.device.Temperature()
	case ScreenPressure:
		return n.device.Pressure()
	case ScreenHumidity:
		return n.device.Humidity()
	case ScreenCPUTemperature:
		return n.engine.CPUTemperature()
	default:
		return 0, nil
	}
}

// renderCPUUsage samples a fresh correctly-seeded two-sample window so
// the readout does not perturb the background logger's history.
func (n *Navigator) renderCPUUsage(ctx context.Context) {
	usage, err := n.engine.UsageWindow(ctx, n.usageWindow)
	if err != nil {
		n.renderFallback(err)
		return
	}

	if n.valueIndex%2 == 0 {
		if err := n.device.ShowText(fmt.Sprintf("%.2f", usage)); err != nil {
			logger.Warn().Err(err).Msg("Failed to render readout")
		}
		return
	}

	scale := barScale{min: 0, max: float64(n.coreCount)}
	if err := n.device.DrawPixels(barFrame(scale.pixels(usage), sensehat.ColorGreen)); err != nil {
		logger.Warn().Err(err).Msg("Failed to render bar graph")
	}
}

// renderSetTarget applies the accumulated value cursor as 0.5 degree
// steps and resets the cursor after every application.
func (n *Navigator) renderSetTarget() {
	if n.valueIndex != 0 {
		applied := n.target.Adjust(float64(n.valueIndex) * targetStepCelsius)
		logger.Info().Float64("target", applied).Msg("Target temperature adjusted")
		n.valueIndex = 0
	}

	if err := n.device.ShowText(fmt.Sprintf("%.1f", n.target.Get())); err != nil {
		logger.Warn().Err(err).Msg("Failed to render target temperature")
	}
}

// renderLogging pushes start/stop onto the control channel from the
// value cursor's sign and reflects the recorder's state in the glyph
// background.
func (n *Navigator) renderLogging() {
	if n.valueIndex > 0 {
		n.recorder.Send(true)
	} else if n.valueIndex < 0 {
		n.recorder.Send(false)
	}
	n.valueIndex = 0

	background := sensehat.ColorRed
	if n.recorder.Alive() && n.recorder.Active() {
		background = sensehat.ColorGreen
	}
	if err := n.device.ShowGlyph('L', background); err != nil {
		logger.Warn().Err(err).Msg("Failed to render logging state")
	}
}

// renderShutdown blocks on the joystick directly, bypassing the normal
// per-tick dispatch: two consecutive up confirmations invoke the host
// shutdown; any other direction is applied to screen navigation
// immediately, since the normal loop will not see the event.
func (n *Navigator) renderShutdown() {
	confirmations := 0
	for {
		event, err := n.device.WaitEvent()
		if err != nil {
			logger.Warn().Err(err).Msg("Joystick wait failed on shutdown screen")
			return
		}
		if event.Action != sensehat.ActionPressed {
			continue
		}

		switch LogicalDirection(event.Direction, n.rotation) {
		case sensehat.DirectionUp:
			confirmations++
			if confirmations >= shutdownConfirmations {
				logger.Info().Msg("Shutdown confirmed")
				if err := n.shutdowner.Shutdown(); err != nil {
					logger.Error().Err(err).Msg("Shutdown command failed")
				}
				return
			}
			if err := n.device.ShowGlyph('X', sensehat.ColorRed); err != nil {
				logger.Warn().Err(err).Msg("Failed to render confirmation prompt")
			}
		case sensehat.DirectionLeft:
			n.changeScreen(-1)
			return
		case sensehat.DirectionRight:
			n.changeScreen(+1)
			return
		default:
			return
		}
	}
}

// renderFallback shows the failure glyph instead of crashing the loop.
func (n *Navigator) renderFallback(err error) {
	logger.Warn().Err(err).Msg("Sensor read failed, rendering fallback")
	if err := n.device.ShowGlyph('?', sensehat.ColorRed); err != nil {
		logger.Warn().Err(err).Msg("Failed to render fallback glyph")
	}
}
