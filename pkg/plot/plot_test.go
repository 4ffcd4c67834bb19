package plot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/run-profiler/pkg/monitor"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func points(target string, n int, cpu, mem float64) []monitor.DataPoint {
	var out []monitor.DataPoint
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * 100 * time.Millisecond)
		out = append(out,
			monitor.NewDataPoint(monitor.Reading{Metric: monitor.CPUPercent, Value: cpu + float64(i), Target: target}, at, "default", "run-x", nil),
			monitor.NewDataPoint(monitor.Reading{Metric: monitor.MemoryUsage, Value: mem + float64(i), Target: target}, at, "default", "run-x", nil),
		)
	}
	return out
}

func TestAggregateKeepsTargetOrder(t *testing.T) {
	in := append(points("pytest-1", 3, 10, 100), points(monitor.TargetSystem, 2, 50, 8000)...)
	got := Aggregate(in)
	require.Len(t, got, 2)
	assert.Equal(t, "pytest-1", got[0].Target)
	assert.Equal(t, monitor.TargetSystem, got[1].Target)
	assert.Equal(t, []float64{10, 11, 12}, got[0].CPU.Values)
	assert.Equal(t, []float64{8000, 8001}, got[1].Memory.Values)
	assert.Len(t, got[0].CPU.Times, 3)
}

func TestAggregateSeparateSeriesLengths(t *testing.T) {
	in := points("web", 2, 1, 1)
	in = append(in, monitor.NewDataPoint(monitor.Reading{Metric: monitor.MemoryUsage, Value: 5, Target: "web"}, base, "docker", "run-x", nil))
	got := Aggregate(in)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].CPU.Len())
	assert.Equal(t, 3, got[0].Memory.Len())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Stats{}, Summarize(nil))
	assert.Equal(t, Stats{Avg: 2, Max: 3, Min: 1}, Summarize([]float64{1, 2, 3}))
}

func TestRenderTwoTargetsWritesComparison(t *testing.T) {
	dir := t.TempDir()
	in := append(points("pytest-1", 4, 10, 100), points(monitor.TargetSystem, 4, 50, 8000)...)
	files, err := NewRenderer().Render(dir, Aggregate(in))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "pytest-1_profile.png"),
		filepath.Join(dir, "system_profile.png"),
		filepath.Join(dir, ComparisonFileName),
	}, files)
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestRenderSingleTargetSkipsComparison(t *testing.T) {
	dir := t.TempDir()
	files, err := NewRenderer().Render(dir, Aggregate(points("web", 3, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "web_profile.png")}, files)
	_, err = os.Stat(filepath.Join(dir, ComparisonFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestRenderNoData(t *testing.T) {
	files, err := NewRenderer().Render(t.TempDir(), nil)
	assert.NoError(t, err)
	assert.Empty(t, files)
}

func TestProfileFileNameSanitizes(t *testing.T) {
	assert.Equal(t, "a_b_c_profile.png", ProfileFileName("a/b c"))
	assert.Equal(t, "unknown_profile.png", ProfileFileName(""))
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSummary(dir, "run-x", Aggregate(points("web", 3, 1, 10)))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Summary
	require.NoError(t, yaml.Unmarshal(raw, &got))
	assert.Equal(t, "run-x", got.RunID)
	require.Len(t, got.Targets, 1)
	assert.Equal(t, 6, got.Targets[0].Samples)
	assert.Equal(t, Stats{Avg: 2, Max: 3, Min: 1}, got.Targets[0].CPU)
	assert.Equal(t, Stats{Avg: 11, Max: 12, Min: 10}, got.Targets[0].MemoryMB)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, Aggregate(points("web", 5, 1, 10))))
	assert.Contains(t, buf.String(), "== web ==")
	assert.Contains(t, buf.String(), "CPU %")
	assert.Contains(t, buf.String(), "Memory MB")

	buf.Reset()
	require.NoError(t, PrintSummary(&buf, nil))
	assert.Equal(t, "no samples recorded\n", buf.String())
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	files, err := Generate(dir, "run-x", points("web", 3, 1, 1))
	require.NoError(t, err)
	assert.Contains(t, files, filepath.Join(dir, SummaryFileName))
	assert.Contains(t, files, filepath.Join(dir, "web_profile.png"))
}
