package agent

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-profiler/pkg/eventlog"
	"github.com/run-profiler/pkg/monitor"
	"github.com/run-profiler/pkg/plot"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--no-banner"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeLog(t *testing.T, dir string) {
	t.Helper()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var points []monitor.DataPoint
	for i, target := range []string{"pytest", monitor.TargetSystem} {
		for _, r := range []monitor.Reading{
			{Metric: monitor.CPUPercent, Value: float64(10 * (i + 1)), Target: target},
			{Metric: monitor.MemoryUsage, Value: float64(100 * (i + 1)), Target: target},
		} {
			points = append(points, monitor.NewDataPoint(r, at, monitor.MethodDefault, "run-20240501-100000", nil))
		}
	}
	_, err := eventlog.NewWriter(dir).Write(monitor.DefaultDefinitions(), points)
	require.NoError(t, err)
}

func TestReportPrintsSummary(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir)

	out, _, err := execute(t, "report", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "run run-20240501-100000: 4 points, 2 targets")
	assert.Contains(t, out, "== pytest ==")
	assert.Contains(t, out, "== system ==")
}

func TestReportDrawPlots(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir)

	_, _, err := execute(t, "report", "--dir", dir, "--draw-plots")
	require.NoError(t, err)
	for _, name := range []string{"pytest_profile.png", "system_profile.png", plot.ComparisonFileName, plot.SummaryFileName} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestReportMissingLog(t *testing.T) {
	_, _, err := execute(t, "report", "--dir", t.TempDir())
	assert.Error(t, err)
}

func TestRunPropagatesExitCode(t *testing.T) {
	dir := t.TempDir()
	_, stderr, err := execute(t, "run",
		"--enable-profiling",
		"--profiling.output-dir", dir,
		"--profiling.poll-time", "0.05",
		"--", "sh", "-c", "sleep 0.2; exit 3")

	var exitErr *ExitCodeError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, stderr, "profiling run-")

	log, err := eventlog.ReadFile(eventlog.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, monitor.DefaultDefinitions(), log.Definitions)
	assert.NotEmpty(t, log.Points)
}

func TestRunSuccessWithoutProfiling(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "run", "--profiling.output-dir", dir, "--", "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
	_, statErr := os.Stat(eventlog.Path(dir))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunUnknownBinary(t *testing.T) {
	_, _, err := execute(t, "run", "--", filepath.Join(t.TempDir(), "missing-binary"))
	require.Error(t, err)
	var exitErr *ExitCodeError
	assert.False(t, errors.As(err, &exitErr))
}

func TestRunRejectsBadConfig(t *testing.T) {
	_, _, err := execute(t, "run", "--profiling.poll-time", "0", "--", "true")
	assert.Error(t, err)
}
