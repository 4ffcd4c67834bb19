package host

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-profiler/pkg/collector"
	"github.com/run-profiler/pkg/config"
	"github.com/run-profiler/pkg/eventlog"
	"github.com/run-profiler/pkg/monitor"
	"github.com/run-profiler/pkg/profiler"
)

type stubSampler struct{}

func (stubSampler) Name() string                   { return "stub" }
func (stubSampler) Method() string                 { return monitor.MethodDefault }
func (stubSampler) Init(ctx context.Context) error { return nil }
func (stubSampler) Close() error                   { return nil }
func (stubSampler) Sample(ctx context.Context) ([]monitor.Reading, error) {
	return []monitor.Reading{{Metric: monitor.CPUPercent, Value: 1, Target: "stub"}}, nil
}

func stubModule() profiler.Option {
	return profiler.WithModule(monitor.MethodDefault, func(*config.ProfilingConfig) collector.Sampler {
		return stubSampler{}
	})
}

type runner struct {
	code int
	fn   func()
}

func (r runner) Run() int {
	if r.fn != nil {
		r.fn()
	}
	return r.code
}

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("host", pflag.ContinueOnError)
	New().RegisterFlags(fs)
	for _, name := range []string{"enable-profiling", "draw-plots", "run-id"} {
		assert.NotNil(t, fs.Lookup(name), name)
	}
}

func TestLifecycle(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROFILING_OUTPUT_DIR", dir)
	t.Setenv("PROFILING_POLL_TIME", "0.05")

	fs := pflag.NewFlagSet("host", pflag.ContinueOnError)
	p := New(stubModule())
	p.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--enable-profiling", "--run-id", "ci-7"}))
	require.NoError(t, p.OnArgsParsed(fs))

	p.OnStartup(context.Background())
	require.NotNil(t, p.Orchestrator())
	assert.True(t, p.Orchestrator().Running())
	time.Sleep(80 * time.Millisecond)
	report := p.OnCleanup()

	assert.Equal(t, "ci-7", report.RunID)
	assert.Greater(t, report.Points, 0)
	assert.Equal(t, eventlog.Path(dir), report.LogPath)
	assert.Equal(t, report, p.OnCleanup())
}

func TestProfilingOffByDefault(t *testing.T) {
	t.Setenv("PROFILING_OUTPUT_DIR", t.TempDir())
	fs := pflag.NewFlagSet("host", pflag.ContinueOnError)
	p := New(stubModule())
	p.RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, p.OnArgsParsed(fs))

	p.OnStartup(context.Background())
	assert.False(t, p.Orchestrator().Running())
	assert.Empty(t, p.OnCleanup().LogPath)
}

func TestBadConfigKeepsHostRunning(t *testing.T) {
	t.Setenv("PROFILING_POLL_TIME", "-1")
	fs := pflag.NewFlagSet("host", pflag.ContinueOnError)
	p := New()
	p.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--enable-profiling"}))

	assert.Error(t, p.OnArgsParsed(fs))
	p.OnStartup(context.Background())
	assert.Nil(t, p.Orchestrator())
	assert.Equal(t, profiler.Report{}, p.OnCleanup())
}

func TestRunTestsPreservesExitCode(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Profiling.Enable = true
	cfg.Profiling.PollTime = 0.05
	cfg.Profiling.OutputDir = t.TempDir()

	ran := false
	code := RunTests(runner{code: 3, fn: func() { ran = true; time.Sleep(60 * time.Millisecond) }}, cfg, stubModule())
	assert.Equal(t, 3, code)
	assert.True(t, ran)
	_, err := os.Stat(eventlog.Path(cfg.Profiling.OutputDir))
	assert.NoError(t, err)
}

func TestRunTestsWithoutConfigUsesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROFILING_ENABLE", "true")
	t.Setenv("PROFILING_OUTPUT_DIR", dir)
	code := RunTests(runner{}, nil, stubModule())
	assert.Zero(t, code)
	_, err := os.Stat(eventlog.Path(dir))
	assert.False(t, errors.Is(err, os.ErrNotExist))
}
