package recorder_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/avlin/sensehatd/internal/errors"
	"codeberg.org/avlin/sensehatd/internal/metrics"
	"codeberg.org/avlin/sensehatd/internal/recorder"
	"codeberg.org/avlin/sensehatd/internal/sensehat"
	"codeberg.org/avlin/sensehatd/internal/target"
)

const testInterval = 10 * time.Millisecond

// steppingStat produces strictly advancing CPU counters so every usage
// window is well defined.
type steppingStat struct {
	calls atomic.Uint64
}

func (s *steppingStat) ReadCPUTimes() (metrics.CPUTimes, error) {
	n := s.calls.Add(1)
	return metrics.CPUTimes{100 + n*10, 0, 50 + n*10, 850 + n*30}, nil
}

type fixedLoad struct{}

func (fixedLoad) ReadLoadAvg() (metrics.LoadAverages, error) {
	return metrics.LoadAverages{Load1: 0.52, Load5: 0.58, Load15: 0.59}, nil
}

type fixedCPUTemp struct{}

func (fixedCPUTemp) ReadCPUTemp() (string, error) {
	return "temp=48.3'C\n", nil
}

type countingCollector struct {
	records atomic.Int64
}

func (c *countingCollector) Record(_ context.Context, _ *metrics.Reading) error {
	c.records.Add(1)
	return nil
}

func (c *countingCollector) Close() error { return nil }

func newTestRecorder(t *testing.T, path string) (*recorder.Recorder, *countingCollector) {
	t.Helper()

	engine := metrics.NewEngineWithSources(sensehat.NewFake(), &steppingStat{}, fixedLoad{}, fixedCPUTemp{}, 4)
	collector := &countingCollector{}

	rec, err := recorder.New(engine, target.New(), collector, recorder.Config{
		Path:      path,
		Separator: " ",
		Interval:  testInterval,
	})
	require.NoError(t, err)

	return rec, collector
}

func dataLines(t *testing.T, path string) []string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "date ") {
		return lines[1:]
	}
	return lines
}

func runEpisode(t *testing.T, rec *recorder.Recorder, path string, minRecords int) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.Send(true)
	require.Eventually(t, rec.Active, 2*time.Second, time.Millisecond, "episode never started")

	if minRecords > 0 {
		require.Eventually(t, func() bool {
			content, err := os.ReadFile(path)
			if err != nil {
				return false
			}
			return strings.Count(string(content), "\n") >= minRecords+1
		}, 5*time.Second, time.Millisecond, "records never appeared")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
}

func TestHeaderWrittenOnEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensehat_log")
	rec, collector := newTestRecorder(t, path)

	runEpisode(t, rec, path, 2)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")

	assert.Equal(t, strings.Join(metrics.Header(), " "), lines[0], "first line is the column header")
	require.GreaterOrEqual(t, len(lines), 3)
	for _, line := range lines[1:] {
		assert.Len(t, strings.Fields(line), len(metrics.Header())+1, "timestamp splits on the space separator")
	}
	assert.Positive(t, collector.records.Load(), "records mirrored into telemetry")
}

func TestNoSecondHeaderOnRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensehat_log")
	rec, _ := newTestRecorder(t, path)

	runEpisode(t, rec, path, 1)
	firstCount := len(dataLines(t, path))

	runEpisode(t, rec, path, firstCount+1)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	header := strings.Join(metrics.Header(), " ")
	assert.Equal(t, 1, strings.Count(string(content), header), "restart must not repeat the header")
}

func TestNoHeaderInPreExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensehat_log")
	require.NoError(t, os.WriteFile(path, []byte("earlier content\n"), 0o644))

	rec, _ := newTestRecorder(t, path)
	runEpisode(t, rec, path, 1)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "earlier content\n"), "existing content preserved")
	assert.NotContains(t, string(content), "date ", "non-empty file never gets a header")
}

func TestStopSignalEndsEpisode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensehat_log")
	rec, _ := newTestRecorder(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	require.Eventually(t, rec.Alive, 2*time.Second, time.Millisecond)

	rec.Send(true)
	require.Eventually(t, rec.Active, 2*time.Second, time.Millisecond)

	rec.Send(false)
	require.Eventually(t, func() bool { return !rec.Active() }, 2*time.Second, time.Millisecond)
	assert.True(t, rec.Alive(), "loop returns to idle, not exits")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
}

func TestSendReplacesUnconsumedSignal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensehat_log")
	rec, _ := newTestRecorder(t, path)

	// No Run loop is draining the slot: a burst of sends must not block
	// and the last one wins.
	rec.Send(true)
	rec.Send(false)
	rec.Send(true)
	rec.Send(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	require.Eventually(t, rec.Alive, 2*time.Second, time.Millisecond)
	time.Sleep(5 * testInterval)
	assert.False(t, rec.Active(), "final stop signal wins")

	cancel()
	<-done
}

func TestPersistenceFailureReturnsToIdle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "deeper", "sensehat_log")
	rec, _ := newTestRecorder(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	require.Eventually(t, rec.Alive, 2*time.Second, time.Millisecond)
	rec.Send(true)

	time.Sleep(5 * testInterval)
	assert.False(t, rec.Active(), "episode never starts when the file cannot be opened")
	assert.True(t, rec.Alive(), "failure does not kill the loop")

	cancel()
	<-done
}

func TestConfigValidate(t *testing.T) {
	_, err := recorder.New(nil, nil, nil, recorder.Config{Separator: " ", Interval: time.Second})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, recorder.ErrInvalidPath))

	_, err = recorder.New(nil, nil, nil, recorder.Config{Path: "/tmp/x", Separator: " "})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, recorder.ErrInvalidInterval))
}
