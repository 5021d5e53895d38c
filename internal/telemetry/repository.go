package telemetry

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/avlin/sensehatd/internal/errors"
	"codeberg.org/avlin/sensehatd/internal/logger"
	"codeberg.org/avlin/sensehatd/internal/metrics"

	_ "github.com/mattn/go-sqlite3"
)

type Repository interface {
	Store(reading *metrics.Reading) error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Str("path", cfg.DBPath).Msg("Initializing telemetry repository")

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteRepository{db: db}, nil
}

func (r *sqliteRepository) Store(reading *metrics.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(insertReadingSQL,
		reading.Timestamp.UnixMicro(),
		finite(reading.TargetDivisor),
		reading.TargetTemp,
		reading.CPUUsage,
		reading.Load.Load1,
		reading.Load.Load5,
		reading.Load.Load15,
		reading.Temp,
		reading.TempHumidity,
		reading.TempPressure,
		reading.CPUTemp,
		reading.Accel.X,
		reading.Accel.Y,
		reading.Accel.Z,
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

// finite maps the +Inf divisor sentinel to NULL; SQLite has no Inf.
func finite(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}
