package metrics

import (
	"os"
	"os/exec"
	"strconv"
	"strings"

	"codeberg.org/avlin/sensehatd/internal/errors"
)

// StatReader supplies CPU time snapshots.
type StatReader interface {
	ReadCPUTimes() (CPUTimes, error)
}

// LoadAvgReader supplies the system load averages.
type LoadAvgReader interface {
	ReadLoadAvg() (LoadAverages, error)
}

// CPUTempReader supplies the raw CPU temperature text, expected in the
// firmware's "temp=<float>'C" form.
type CPUTempReader interface {
	ReadCPUTemp() (string, error)
}

const (
	defaultStatPath    = "/proc/stat"
	defaultLoadAvgPath = "/proc/loadavg"
	defaultVCGenCmd    = "/opt/vc/bin/vcgencmd"
)

// procStatReader reads the aggregate CPU line of /proc/stat.
type procStatReader struct {
	path string
}

func NewProcStatReader() StatReader {
	return &procStatReader{path: defaultStatPath}
}

// NewStatFileReader reads CPU times from an alternate stat file. Used by
// tests and non-standard proc mounts.
func NewStatFileReader(path string) StatReader {
	return &procStatReader{path: path}
}

func (r *procStatReader) ReadCPUTimes() (CPUTimes, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return CPUTimes{}, errFactory.Wrap(ErrSourceUnavailable, err)
	}

	line, _, _ := strings.Cut(string(data), "\n")
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return CPUTimes{}, errFactory.WithData(ErrSourceUnavailable, line)
	}

	var times CPUTimes
	for i := 0; i < len(times); i++ {
		value, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return CPUTimes{}, errFactory.Wrap(ErrSourceUnavailable, err)
		}
		times[i] = value
	}

	return times, nil
}

// procLoadAvgReader reads /proc/loadavg.
type procLoadAvgReader struct {
	path string
}

func NewProcLoadAvgReader() LoadAvgReader {
	return &procLoadAvgReader{path: defaultLoadAvgPath}
}

func NewLoadAvgFileReader(path string) LoadAvgReader {
	return &procLoadAvgReader{path: path}
}

func (r *procLoadAvgReader) ReadLoadAvg() (LoadAverages, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return LoadAverages{}, errFactory.Wrap(ErrSourceUnavailable, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return LoadAverages{}, errFactory.WithData(ErrSourceUnavailable, string(data))
	}

	var values [3]float64
	for i := range values {
		value, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return LoadAverages{}, errFactory.Wrap(ErrSourceUnavailable, err)
		}
		values[i] = value
	}

	return LoadAverages{Load1: values[0], Load5: values[1], Load15: values[2]}, nil
}

// vcgencmdReader shells out to the firmware tool for the SoC temperature.
type vcgencmdReader struct {
	command string
}

func NewVCGenCmdReader() CPUTempReader {
	return &vcgencmdReader{command: defaultVCGenCmd}
}

func NewCPUTempCommandReader(command string) CPUTempReader {
	return &vcgencmdReader{command: command}
}

func (r *vcgencmdReader) ReadCPUTemp() (string, error) {
	out, err := exec.Command(r.command, "measure_temp").Output()
	if err != nil {
		return "", errors.New().Wrap(ErrSourceUnavailable, err)
	}

	return string(out), nil
}
