package metrics

import (
	"strconv"
	"time"

	"codeberg.org/avlin/sensehatd/internal/sensehat"
)

// CPUTimes is one snapshot of the first four aggregate counters from the
// kernel stat interface: user, nice, system and idle jiffies.
type CPUTimes [4]uint64

// LoadAverages is the 1, 5 and 15 minute system load.
type LoadAverages struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// Reading is everything gathered in one poll tick. Instances are
// transient: built, serialized and discarded.
type Reading struct {
	Timestamp     time.Time
	TargetDivisor float64
	TargetTemp    float64
	CPUUsage      float64
	Load          LoadAverages
	Temp          float64
	TempHumidity  float64
	TempPressure  float64
	CPUTemp       float64
	Accel         sensehat.Acceleration
}

const timestampLayout = "2006-01-02 15:04:05.000000"

// Header returns the fixed 14-column order of the log file.
func Header() []string {
	return []string{
		"date",
		"cpu_divisor_for_target_temp",
		"target_temperature",
		"cpu_usage",
		"load_avg_1_min",
		"load_avg_5_min",
		"load_avg_15_min",
		"sense_hat_temp",
		"sense_hat_temp_from_humidity",
		"sense_hat_temp_from_pressure",
		"cpu_temp",
		"accelerometer_x",
		"accelerometer_y",
		"accelerometer_z",
	}
}

// Fields renders the reading as strings in header order.
func (r *Reading) Fields() []string {
	return []string{
		r.Timestamp.Format(timestampLayout),
		ftoa(r.TargetDivisor),
		ftoa(r.TargetTemp),
		ftoa(r.CPUUsage),
		ftoa(r.Load.Load1),
		ftoa(r.Load.Load5),
		ftoa(r.Load.Load15),
		ftoa(r.Temp),
		ftoa(r.TempHumidity),
		ftoa(r.TempPressure),
		ftoa(r.CPUTemp),
		ftoa(r.Accel.X),
		ftoa(r.Accel.Y),
		ftoa(r.Accel.Z),
	}
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
