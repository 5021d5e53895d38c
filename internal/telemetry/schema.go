package telemetry

import (
	"database/sql"

	"codeberg.org/avlin/sensehatd/internal/errors"
)

const (
	createTableSQL = `
        CREATE TABLE IF NOT EXISTS readings (
            timestamp                    INTEGER PRIMARY KEY,
            cpu_divisor_for_target_temp  REAL,
            target_temperature           REAL,
            cpu_usage                    REAL,
            load_avg_1_min               REAL,
            load_avg_5_min               REAL,
            load_avg_15_min              REAL,
            sense_hat_temp               REAL,
            sense_hat_temp_from_humidity REAL,
            sense_hat_temp_from_pressure REAL,
            cpu_temp                     REAL,
            accelerometer_x              REAL,
            accelerometer_y              REAL,
            accelerometer_z              REAL
        )`

	insertReadingSQL = `
        INSERT INTO readings (
            timestamp,
            cpu_divisor_for_target_temp, target_temperature,
            cpu_usage,
            load_avg_1_min, load_avg_5_min, load_avg_15_min,
            sense_hat_temp, sense_hat_temp_from_humidity, sense_hat_temp_from_pressure,
            cpu_temp,
            accelerometer_x, accelerometer_y, accelerometer_z
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(timestamp) DO NOTHING`
)

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(createTableSQL); err != nil {
		return errors.New().Wrap(ErrSchemaInit, err)
	}

	return nil
}
