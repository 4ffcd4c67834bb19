package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/run-profiler/pkg/config"
	"github.com/run-profiler/pkg/logger"
)

func TestLoggerLevels(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.ZapLogConfig{
		Level:  "debug",
		Format: "json",
		Path:   dir,
		MaxAge: 1,
	}

	l, err := logger.InitLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, l)

	logger.Debug("debug msg")
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")
	_ = logger.Sync()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "rotated log file should be created")
}

func TestDefaultFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := logger.ReplaceForTest(zap.New(core))
	defer restore()

	logger.SetDefaultCollector("poller")
	defer logger.SetDefaultCollector("profiler")

	logger.Info("sampled", zap.Int("points", 4))

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "poller", ctx["collector"])
	assert.NotEmpty(t, ctx["goid"])
	assert.Equal(t, int64(4), ctx["points"])
}

func TestNamed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := logger.ReplaceForTest(zap.New(core))
	defer restore()

	logger.Named("docker").Warn("no containers found")

	require.Equal(t, 1, logs.FilterMessage("no containers found").Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "docker", ctx["collector"])
	assert.NotEmpty(t, ctx["goid"])
}

func TestNamedGoidIsWriterGoroutine(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := logger.ReplaceForTest(zap.New(core))
	defer restore()

	l := logger.Named("poller").With(zap.String("sampler", "local"))
	l.Info("from test goroutine")
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Info("from poller goroutine")
	}()
	<-done

	require.Equal(t, 2, logs.Len())
	first, second := logs.All()[0].ContextMap(), logs.All()[1].ContextMap()
	assert.Equal(t, "local", second["sampler"])
	assert.NotEmpty(t, first["goid"])
	assert.NotEmpty(t, second["goid"])
	assert.NotEqual(t, first["goid"], second["goid"])
}

func TestFallbackWithoutInit(t *testing.T) {
	restore := logger.ReplaceForTest(nil)
	defer restore()

	assert.NotPanics(t, func() { logger.Warn("not initialized") })
	assert.NotNil(t, logger.GetGlobalLogger())
}
