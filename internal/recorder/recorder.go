// Package recorder runs the background logging loop: it polls the
// metrics engine on a fixed interval and appends delimited records to
// the log file. It is toggled on and off through a single-slot control
// channel shared with the UI.
package recorder

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"codeberg.org/avlin/sensehatd/internal/errors"
	"codeberg.org/avlin/sensehatd/internal/logger"
	"codeberg.org/avlin/sensehatd/internal/metrics"
	"codeberg.org/avlin/sensehatd/internal/target"
	"codeberg.org/avlin/sensehatd/internal/telemetry"
)

const logFilePerm = 0o644

type Config struct {
	Path      string
	Separator string
	Interval  time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Path == "" {
		return errFactory.New(ErrInvalidPath)
	}
	if c.Interval <= 0 {
		return errFactory.New(ErrInvalidInterval)
	}
	return nil
}

// Recorder is the background logger. States: Idle (waiting on the
// control channel), Logging (file open, poll loop running). A stop
// signal sent while the loop sleeps is observed at the next tick
// boundary, so stopping can lag by at most one interval.
type Recorder struct {
	engine    *metrics.Engine
	target    *target.Temperature
	collector telemetry.Collector
	cfg       Config

	control chan bool
	active  atomic.Bool
	alive   atomic.Bool
}

func New(engine *metrics.Engine, tgt *target.Temperature, collector telemetry.Collector, cfg Config) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Recorder{
		engine:    engine,
		target:    tgt,
		collector: collector,
		cfg:       cfg,
		control:   make(chan bool, 1),
	}, nil
}

// Send places a start/stop signal in the control slot without blocking.
// A newer signal replaces an unconsumed older one.
func (r *Recorder) Send(start bool) {
	for {
		select {
		case r.control <- start:
			return
		default:
		}
		select {
		case <-r.control:
		default:
		}
	}
}

// Active reports whether a logging episode is currently running.
func (r *Recorder) Active() bool {
	return r.active.Load()
}

// Alive reports whether the Run loop is running.
func (r *Recorder) Alive() bool {
	return r.alive.Load()
}

// Run executes the Idle/Logging state machine until ctx is cancelled.
// A persistence failure disables logging and returns the recorder to
// Idle; it never takes the process down, since logging is a side
// activity to the UI.
func (r *Recorder) Run(ctx context.Context) {
	r.alive.Store(true)
	defer r.alive.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case start := <-r.control:
			if !start {
				continue
			}
		}

		if err := r.loggingEpisode(ctx); err != nil {
			logger.Error().Err(err).Msg("Logging disabled after persistence failure")
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// loggingEpisode holds the file open for its entire duration and always
// closes it on the way out, so restarts never leak a handle.
func (r *Recorder) loggingEpisode(ctx context.Context) error {
	errFactory := errors.New()

	file, err := os.OpenFile(r.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePerm)
	if err != nil {
		return errFactory.Wrap(ErrPersistence, err)
	}
	defer file.Close()

	if err := r.writeHeaderIfEmpty(file); err != nil {
		return err
	}

	r.active.Store(true)
	defer r.active.Store(false)

	logger.Info().Str("path", r.cfg.Path).Dur("interval", r.cfg.Interval).Msg("Logging started")

	// Seed the snapshot window: usage needs two samples an interval
	// apart before the first record.
	r.engine.ResetCPUSnapshot()
	if err := r.engine.AdvanceCPUSnapshot(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed CPU snapshot")
	}
	if stopped := r.sleep(ctx); stopped {
		logger.Info().Msg("Logging stopped")
		return nil
	}

	for {
		if err := r.engine.AdvanceCPUSnapshot(); err != nil {
			logger.Warn().Err(err).Msg("CPU snapshot unavailable this tick")
		}

		reading, err := r.engine.Snapshot(r.target.Get())
		if err != nil {
			// Environment fault: report and skip the tick rather than
			// abort the episode.
			logger.Warn().Err(err).Msg("Skipping tick, metrics unavailable")
			reading = nil
		}

		if stopped := r.sleep(ctx); stopped {
			logger.Info().Msg("Logging stopped")
			return nil
		}

		if reading != nil {
			if err := r.append(file, reading); err != nil {
				return err
			}
			if err := r.collector.Record(ctx, reading); err != nil {
				logger.Warn().Err(err).Msg("Telemetry record failed")
			}
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("Logging stopped")
			return nil
		case start := <-r.control:
			if !start {
				logger.Info().Msg("Logging stopped")
				return nil
			}
		default:
		}
	}
}

// sleep waits one polling interval, reporting true if the episode
// should end early due to cancellation.
func (r *Recorder) sleep(ctx context.Context) bool {
	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

// writeHeaderIfEmpty writes the column header iff the file currently
// has zero length. A pre-existing non-empty file never gets a second
// header.
func (r *Recorder) writeHeaderIfEmpty(file *os.File) error {
	errFactory := errors.New()

	info, err := file.Stat()
	if err != nil {
		return errFactory.Wrap(ErrPersistence, err)
	}
	if info.Size() > 0 {
		return nil
	}

	if _, err := file.WriteString(strings.Join(metrics.Header(), r.cfg.Separator) + "\n"); err != nil {
		return errFactory.Wrap(ErrPersistence, err)
	}

	return nil
}

func (r *Recorder) append(file *os.File, reading *metrics.Reading) error {
	record := strings.Join(reading.Fields(), r.cfg.Separator) + "\n"
	if _, err := file.WriteString(record); err != nil {
		return errors.New().Wrap(ErrPersistence, err)
	}

	return nil
}
