// Package metrics is the sampling engine: CPU usage from successive
// kernel stat snapshots, SoC temperature, Sense HAT environmental reads
// and the calibration divisor relating CPU self-heating to a target
// ambient temperature.
package metrics

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/avlin/sensehatd/internal/errors"
	"codeberg.org/avlin/sensehatd/internal/logger"
	"codeberg.org/avlin/sensehatd/internal/sensehat"
)

// cpuTempPattern matches the firmware's measure_temp output, e.g.
// "temp=48.3'C".
var cpuTempPattern = regexp.MustCompile(`^temp=([^']+)'C$`)

// Engine samples all sources. It owns one previous/current CPU snapshot
// pair; Usage is meaningful only after two Advance calls separated by a
// polling interval.
type Engine struct {
	device  sensehat.Device
	stat    StatReader
	load    LoadAvgReader
	cpuTemp CPUTempReader
	cores   int

	mu      sync.Mutex
	prev    CPUTimes
	curr    CPUTimes
	samples int
}

// NewEngine creates an engine against the real kernel interfaces.
func NewEngine(device sensehat.Device, cores int) *Engine {
	return NewEngineWithSources(device, NewProcStatReader(), NewProcLoadAvgReader(), NewVCGenCmdReader(), cores)
}

// NewEngineWithSources creates an engine with explicit source readers.
func NewEngineWithSources(device sensehat.Device, stat StatReader, load LoadAvgReader, cpuTemp CPUTempReader, cores int) *Engine {
	return &Engine{
		device:  device,
		stat:    stat,
		load:    load,
		cpuTemp: cpuTemp,
		cores:   cores,
	}
}

// SampleCPUTimes reads one snapshot without touching the engine's pair.
func (e *Engine) SampleCPUTimes() (CPUTimes, error) {
	return e.stat.ReadCPUTimes()
}

// AdvanceCPUSnapshot shifts current into previous and samples a fresh
// current snapshot.
func (e *Engine) AdvanceCPUSnapshot() error {
	times, err := e.stat.ReadCPUTimes()
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.prev = e.curr
	e.curr = times
	e.samples++
	e.mu.Unlock()

	return nil
}

// ResetCPUSnapshot discards snapshot history. The next Usage call needs
// two fresh Advance calls.
func (e *Engine) ResetCPUSnapshot() {
	e.mu.Lock()
	e.prev = CPUTimes{}
	e.curr = CPUTimes{}
	e.samples = 0
	e.mu.Unlock()
}

// Usage returns CPU utilization in core-equivalents over the window
// between the two retained snapshots.
func (e *Engine) Usage() (float64, error) {
	e.mu.Lock()
	prev, curr, samples := e.prev, e.curr, e.samples
	e.mu.Unlock()

	if samples < 2 {
		return 0, errors.New().New(ErrInsufficientHistory)
	}

	return usageFromDelta(prev, curr, e.cores)
}

func usageFromDelta(prev, curr CPUTimes, cores int) (float64, error) {
	var delta CPUTimes
	var sum uint64
	for i := range curr {
		delta[i] = curr[i] - prev[i]
		sum += delta[i]
	}

	if sum == 0 {
		return 0, errors.New().New(ErrDivisionUndefined)
	}

	idle := delta[len(delta)-1]
	usagePct := 100 - float64(idle)*100/float64(sum)

	return usagePct / 100 * float64(cores), nil
}

// UsageWindow computes usage from a short-lived, correctly seeded
// two-sample window. It never touches the engine's retained pair, so
// on-demand readouts do not perturb the background logger's history and
// the two loops stay free of shared mutable state.
func (e *Engine) UsageWindow(ctx context.Context, interval time.Duration) (float64, error) {
	first, err := e.stat.ReadCPUTimes()
	if err != nil {
		return 0, err
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(interval):
	}

	second, err := e.stat.ReadCPUTimes()
	if err != nil {
		return 0, err
	}

	return usageFromDelta(first, second, e.cores)
}

// CPUTemperature parses the firmware's "temp=<float>'C" response.
func (e *Engine) CPUTemperature() (float64, error) {
	errFactory := errors.New()

	raw, err := e.cpuTemp.ReadCPUTemp()
	if err != nil {
		return 0, err
	}

	match := cpuTempPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return 0, errFactory.WithData(ErrMalformedTemperature, strings.TrimSpace(raw))
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, errFactory.Wrap(ErrMalformedTemperature, err)
	}

	return value, nil
}

// LoadAverages returns the 1/5/15 minute system load.
func (e *Engine) LoadAverages() (LoadAverages, error) {
	return e.load.ReadLoadAvg()
}

// Sensor passthroughs.

func (e *Engine) AmbientTemperature() (float64, error) {
	return e.device.Temperature()
}

func (e *Engine) HumidityTemperature() (float64, error) {
	return e.device.TemperatureFromHumidity()
}

func (e *Engine) PressureTemperature() (float64, error) {
	return e.device.TemperatureFromPressure()
}

func (e *Engine) Accelerometer() (sensehat.Acceleration, error) {
	return e.device.Accelerometer()
}

// TargetDivisor computes the calibration divisor
//
//	divisor = cpu_temp / -(target - avg(ambient, humidity, pressure))
//
// modelling how strongly CPU self-heating biases the ambient reading.
func (e *Engine) TargetDivisor(target float64) (float64, error) {
	ambient, err := e.device.Temperature()
	if err != nil {
		return 0, err
	}
	humidity, err := e.device.TemperatureFromHumidity()
	if err != nil {
		return 0, err
	}
	pressure, err := e.device.TemperatureFromPressure()
	if err != nil {
		return 0, err
	}
	cpuTemp, err := e.CPUTemperature()
	if err != nil {
		return 0, err
	}

	return targetDivisor(cpuTemp, target, (ambient+humidity+pressure)/3)
}

func targetDivisor(cpuTemp, target, averageAmbient float64) (float64, error) {
	denominator := -(target - averageAmbient)
	if denominator == 0 {
		return 0, errors.New().New(ErrDivisionUndefined)
	}

	return cpuTemp / denominator, nil
}

// Snapshot gathers one full Reading for the given target temperature.
// Arithmetic edge cases are substituted with sentinels (0 usage, +Inf
// divisor) rather than failing the tick; environment faults propagate.
func (e *Engine) Snapshot(target float64) (*Reading, error) {
	ambient, err := e.device.Temperature()
	if err != nil {
		return nil, err
	}
	humidity, err := e.device.TemperatureFromHumidity()
	if err != nil {
		return nil, err
	}
	pressure, err := e.device.TemperatureFromPressure()
	if err != nil {
		return nil, err
	}
	cpuTemp, err := e.CPUTemperature()
	if err != nil {
		return nil, err
	}
	load, err := e.load.ReadLoadAvg()
	if err != nil {
		return nil, err
	}
	accel, err := e.device.Accelerometer()
	if err != nil {
		return nil, err
	}

	usage, err := e.Usage()
	if err != nil {
		if !errors.HasCode(err, ErrInsufficientHistory) && !errors.HasCode(err, ErrDivisionUndefined) {
			return nil, err
		}
		logger.Debug().Err(err).Msg("Substituting zero CPU usage")
		usage = 0
	}

	divisor, err := targetDivisor(cpuTemp, target, (ambient+humidity+pressure)/3)
	if err != nil {
		logger.Debug().Err(err).Msg("Target divisor undefined, substituting +Inf")
		divisor = math.Inf(1)
	}

	// Timestamp taken last so the date reflects when gathering finished.
	return &Reading{
		Timestamp:     time.Now(),
		TargetDivisor: divisor,
		TargetTemp:    target,
		CPUUsage:      usage,
		Load:          load,
		Temp:          ambient,
		TempHumidity:  humidity,
		TempPressure:  pressure,
		CPUTemp:       cpuTemp,
		Accel:         accel,
	}, nil
}
