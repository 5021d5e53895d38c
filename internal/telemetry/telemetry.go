// Package telemetry mirrors poll-tick readings into a local SQLite
// database. Disabled by default; when disabled the collector is a no-op.
package telemetry

import (
	"context"

	"codeberg.org/avlin/sensehatd/internal/errors"
	"codeberg.org/avlin/sensehatd/internal/logger"
	"codeberg.org/avlin/sensehatd/internal/metrics"
)

// Collector defines the core domain interface.
type Collector interface {
	Record(ctx context.Context, reading *metrics.Reading) error
	Close() error
}

type service struct {
	repo Repository
	cfg  Config
}

type noopCollector struct{}

func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Telemetry disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err
	}

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) Record(ctx context.Context, reading *metrics.Reading) error {
	errFactory := errors.New()

	if reading == nil {
		return errFactory.New(ErrInvalidReading)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Store(reading); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	return nil
}

func (*noopCollector) Record(_ context.Context, _ *metrics.Reading) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}
