// Package profiler runs one sampling poller per configured method for the
// lifetime of a host run and turns the collected samples into artifacts on
// stop. No failure in here is ever returned to the host; problems become
// warnings.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/run-profiler/pkg/collector"
	"github.com/run-profiler/pkg/config"
	"github.com/run-profiler/pkg/eventlog"
	"github.com/run-profiler/pkg/logger"
	"github.com/run-profiler/pkg/metrics"
	"github.com/run-profiler/pkg/monitor"
	"github.com/run-profiler/pkg/plot"
	"github.com/run-profiler/pkg/store"
)

// 配置缺省（未经校验的零值配置）时使用的兜底值
const (
	DefaultPollInterval  = time.Second
	DefaultSampleTimeout = 5 * time.Second
	DefaultStopTimeout   = 2 * time.Second
)

// Factory 根据配置构造采样器
type Factory func(cfg *config.ProfilingConfig) collector.Sampler

// Module 采样方式到采样器构造函数的映射
type Module struct {
	Method  string
	NewFunc Factory
}

// DefaultModules 内置的采样方式：default → 本地进程/主机，docker → compose 容器
func DefaultModules() []Module {
	return []Module{
		{
			Method: monitor.MethodDefault,
			NewFunc: func(cfg *config.ProfilingConfig) collector.Sampler {
				return collector.NewLocalSampler(cfg.PID)
			},
		},
		{
			Method: monitor.MethodDocker,
			NewFunc: func(cfg *config.ProfilingConfig) collector.Sampler {
				return collector.NewContainerSampler(cfg.ComposeProject)
			},
		},
	}
}

// Report 一次运行结束后的结果
type Report struct {
	RunID     string
	Points    int
	LogPath   string
	Artifacts []string
	Abandoned []string
}

// Option 自定义 Orchestrator
type Option func(*Orchestrator)

// WithModule registers or replaces the sampler factory for a method.
func WithModule(method string, f Factory) Option {
	return func(o *Orchestrator) { o.modules[method] = f }
}

// WithRegisterer sets where the self-metrics are registered.
func WithRegisterer(reg metrics.Registers) Option {
	return func(o *Orchestrator) { o.reg = reg }
}

// Plotter renders artifacts for the drained points of a run.
type Plotter func(dir, runID string, points []monitor.DataPoint) ([]string, error)

// WithPlotter replaces the chart renderer used when draw_plots is set.
func WithPlotter(p Plotter) Option {
	return func(o *Orchestrator) { o.plotter = p }
}

// WithClock overrides the wall clock used for run ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator 管理一次运行的全部 poller
type Orchestrator struct {
	cfg     config.ProfilingConfig
	modules map[string]Factory
	reg     metrics.Registers
	now     func() time.Time
	plotter Plotter
	log     *zap.Logger
	metrics monitor.ProfilerMetrics

	mu      sync.Mutex
	running atomic.Bool
	runID   atomic.Value
	store   atomic.Pointer[store.SampleStore]
	cancel  context.CancelFunc
	pollers []*Poller
	done    chan struct{}
	report  *Report

	wmu      sync.Mutex
	warnings []string
}

// New 创建 Orchestrator；cfg 会被拷贝
func New(cfg config.ProfilingConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		modules: map[string]Factory{},
		now:     time.Now,
		plotter: plot.Generate,
		log:     logger.Named("profiler"),
	}
	for _, m := range DefaultModules() {
		o.modules[m.Method] = m.NewFunc
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.reg == nil {
		o.reg = metrics.NewPromRegistry(prometheus.NewRegistry())
	}
	o.metrics = metrics.NewMetricFactory(o.reg).NewProfilerMetrics()
	o.runID.Store("")
	o.store.Store(store.New())
	return o
}

// Running reports whether pollers are active.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// RunID 当前（或最近一次）运行标识
func (o *Orchestrator) RunID() string { return o.runID.Load().(string) }

// Store 当前运行的采样存储
func (o *Orchestrator) Store() *store.SampleStore { return o.store.Load() }

// Warnings returns a copy of every warning recorded so far.
func (o *Orchestrator) Warnings() []string {
	o.wmu.Lock()
	defer o.wmu.Unlock()
	return append([]string(nil), o.warnings...)
}

// warn logs at warn level and records msg, plus the error text when an
// error field is given, on the orchestrator.
func (o *Orchestrator) warn(msg string, fields ...zap.Field) {
	o.log.Warn(msg, fields...)
	text := msg
	for _, f := range fields {
		if err, ok := f.Interface.(error); ok && f.Key == "error" {
			text += ": " + err.Error()
		}
	}
	o.wmu.Lock()
	o.warnings = append(o.warnings, text)
	o.wmu.Unlock()
}

// Start spawns one poller per usable method. It is a no-op when profiling
// is disabled or a run is already active.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.cfg.Enable {
		o.log.Debug("profiling disabled")
		return
	}
	if o.running.Load() {
		o.log.Debug("profiling already running", zap.String("run", o.RunID()))
		return
	}

	runID := monitor.ResolveRunID(o.cfg.RunID, o.now())
	st := store.New()
	o.runID.Store(runID)
	o.store.Store(st)
	o.report = nil
	o.pollers = nil
	o.wmu.Lock()
	o.warnings = nil
	o.wmu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	pc := pollerConfig{
		interval: o.cfg.PollInterval(),
		timeout:  o.cfg.SampleTimeout,
		runID:    runID,
		tags:     o.cfg.AdditionalTags,
		metrics:  &o.metrics,
		now:      o.now,
		log:      o.log,
	}

	for _, method := range o.cfg.Methods {
		factory, ok := o.modules[method]
		if !ok {
			o.warn(fmt.Sprintf("unknown profiling method %q, skipped", method), zap.String("method", method))
			continue
		}
		s := factory(&o.cfg)
		if err := o.initSampler(ctx, s); err != nil {
			if !errors.Is(err, collector.ErrNoTargets) {
				o.warn(fmt.Sprintf("sampler for method %q failed to start, skipped", method), zap.Error(err))
				_ = s.Close()
				continue
			}
			o.warn(fmt.Sprintf("sampler for method %q has no targets", method), zap.Error(err))
		}
		p := newPoller(s, st, pc)
		o.pollers = append(o.pollers, p)
		g.Go(func() error { return p.Run(gctx) })
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	o.cancel = cancel
	o.done = done
	o.running.Store(true)
	o.log.Info("profiling started", zap.String("run", runID),
		zap.Int("pollers", len(o.pollers)), zap.Duration("interval", pc.interval))
}

func (o *Orchestrator) initSampler(ctx context.Context, s collector.Sampler) error {
	timeout := o.cfg.SampleTimeout
	if timeout <= 0 {
		timeout = DefaultSampleTimeout
	}
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Init(ictx)
}

// Stop signals every poller, waits at most timeout for them, then writes
// the event log and, when enabled, charts. Calling it again returns the
// report of the last run without doing any work.
func (o *Orchestrator) Stop(timeout time.Duration) Report {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running.Load() {
		if o.report != nil {
			return *o.report
		}
		return Report{RunID: o.RunID()}
	}
	o.running.Store(false)
	o.cancel()

	if timeout <= 0 {
		timeout = o.cfg.StopTimeout
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	timer := time.NewTimer(timeout)
	select {
	case <-o.done:
	case <-timer.C:
	}
	timer.Stop()

	report := Report{RunID: o.RunID()}
	for _, p := range o.pollers {
		if p.State() != StateStopped {
			report.Abandoned = append(report.Abandoned, p.Name())
			continue
		}
		if err := p.sampler.Close(); err != nil {
			o.warn(fmt.Sprintf("close sampler %s failed", p.Name()), zap.Error(err))
		}
	}
	if len(report.Abandoned) > 0 {
		o.warn(fmt.Sprintf("pollers did not stop within %s, abandoned: %s", timeout, strings.Join(report.Abandoned, ", ")),
			zap.Strings("pollers", report.Abandoned))
	}

	points := o.Store().Drain()
	report.Points = len(points)
	path, err := eventlog.NewWriter(o.cfg.OutputDir).Write(monitor.DefaultDefinitions(), points)
	if err != nil {
		o.warn("write event log failed", zap.Error(err))
	} else {
		report.LogPath = path
	}

	if o.cfg.DrawPlots {
		artifacts, err := o.drawPlots(report.RunID, points)
		report.Artifacts = artifacts
		if err != nil {
			o.warn("draw plots failed", zap.Error(err))
		}
	}

	o.report = &report
	o.log.Info("profiling stopped", zap.String("run", report.RunID),
		zap.Int("points", report.Points), zap.String("log", report.LogPath))
	return report
}

// drawPlots 绘图中的 panic 转换为错误，不影响宿主运行
func (o *Orchestrator) drawPlots(runID string, points []monitor.DataPoint) (artifacts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plotting panicked: %v", r)
		}
	}()
	return o.plotter(o.cfg.OutputDir, runID, points)
}
