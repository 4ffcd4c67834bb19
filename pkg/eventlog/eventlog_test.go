package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-profiler/pkg/monitor"
)

func samplePoints() []monitor.DataPoint {
	base := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
	tags := map[string]string{"team": "core"}
	return []monitor.DataPoint{
		monitor.NewDataPoint(monitor.Reading{Metric: monitor.CPUPercent, Value: 12.5, Target: "go-test"}, base, monitor.MethodDefault, "run-1", tags),
		monitor.NewDataPoint(monitor.Reading{Metric: monitor.MemoryUsage, Value: 64, Target: "go-test"}, base, monitor.MethodDefault, "run-1", tags),
		monitor.NewDataPoint(monitor.Reading{Metric: monitor.MemoryUsage, Value: 300.25, Target: "shop-db-1"}, base.Add(time.Second), monitor.MethodDocker, "run-1", tags),
	}
}

func TestWriteLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".profiling")
	w := NewWriter(dir)

	path, err := w.Write(monitor.DefaultDefinitions(), samplePoints())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 5)

	assert.Equal(t, `{"type":"Metric","metric":"cpu_percent","data":{"type":"gauge","unit":"percent"}}`, lines[0])
	assert.Equal(t, `{"type":"Metric","metric":"memory_usage","data":{"type":"gauge","unit":"megabytes"}}`, lines[1])
	assert.Equal(t,
		`{"type":"Point","metric":"cpu_percent","data":{"time":"2026-03-01T12:00:00.123456Z","value":12.5,"tags":{"method":"default","run":"run-1","target":"go-test","team":"core"}}}`,
		lines[2])

	for i, l := range lines {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m), "line %d", i)
	}
}

func TestReplayReconstructsPoints(t *testing.T) {
	dir := t.TempDir()
	want := samplePoints()
	_, err := NewWriter(dir).Write(monitor.DefaultDefinitions(), want)
	require.NoError(t, err)

	got, err := ReadFile(Path(dir))
	require.NoError(t, err)

	if diff := cmp.Diff(monitor.DefaultDefinitions(), got.Definitions); diff != "" {
		t.Errorf("definitions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, got.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	for _, p := range got.Points {
		assert.Equal(t, time.UTC, p.Time.Location())
	}
}

func TestReplayNanosecondTimestamps(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	want := []monitor.DataPoint{
		monitor.NewDataPoint(monitor.Reading{Metric: monitor.CPUPercent, Value: 3, Target: "go-test"}, at, monitor.MethodDefault, "run-1", nil),
		monitor.NewDataPoint(monitor.Reading{Metric: monitor.MemoryUsage, Value: 9, Target: "go-test"}, time.Now(), monitor.MethodDefault, "run-1", nil),
	}
	assert.Equal(t, 123456000, want[0].Time.Nanosecond())

	_, err := NewWriter(dir).Write(monitor.DefaultDefinitions(), want)
	require.NoError(t, err)
	got, err := ReadFile(Path(dir))
	require.NoError(t, err)

	if diff := cmp.Diff(want, got.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteEmptyStoreStillWritesDefinitions(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir).Write(monitor.DefaultDefinitions(), nil)
	require.NoError(t, err)

	got, err := ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Len(t, got.Definitions, 2)
	assert.Empty(t, got.Points)
}

func TestWriteTruncatesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	_, err := w.Write(monitor.DefaultDefinitions(), samplePoints())
	require.NoError(t, err)
	_, err = w.Write(monitor.DefaultDefinitions(), samplePoints()[:1])
	require.NoError(t, err)

	got, err := ReadFile(w.Path())
	require.NoError(t, err)
	assert.Len(t, got.Points, 1)
}

func TestWriteFailsWhenDirIsFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewWriter(blocker).Write(monitor.DefaultDefinitions(), nil)
	assert.Error(t, err)
}

func TestReadErrors(t *testing.T) {
	tests := map[string]string{
		"malformed":    "{\"type\":\"Metric\"\n",
		"unknown type": `{"type":"Span","metric":"x","data":{}}`,
		"not utc":      `{"type":"Point","metric":"cpu_percent","data":{"time":"2026-03-01T12:00:00+01:00","value":1,"tags":{}}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("2026-03-01T12:00:00.5Z")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, time.Duration(ts.Nanosecond()))

	_, err = ParseTime("")
	assert.Error(t, err)
}
