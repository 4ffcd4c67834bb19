// Package host attaches the profiler to a host test run through four
// lifecycle hooks: flag registration, parsed flags, run start and cleanup.
package host

import (
	"context"
	"sync"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/run-profiler/pkg/config"
	"github.com/run-profiler/pkg/logger"
	"github.com/run-profiler/pkg/profiler"
)

// Plugin 宿主运行的采样插件
type Plugin struct {
	opts []profiler.Option

	mu     sync.Mutex
	cfg    *config.Config
	orch   *profiler.Orchestrator
	report profiler.Report
}

// New 创建插件；opts 透传给 Orchestrator
func New(opts ...profiler.Option) *Plugin {
	return &Plugin{opts: opts}
}

// RegisterFlags 注册采样相关的命令行参数
func (p *Plugin) RegisterFlags(fs *pflag.FlagSet) {
	def := config.NewDefaultConfig().Profiling
	fs.Bool("enable-profiling", def.Enable,
		"-> Enable CPU and memory profiling of the run | 启用运行期间的CPU/内存采样")
	fs.Bool("draw-plots", def.DrawPlots,
		"-> Draw PNG charts after the run | 运行结束后绘制图表")
	fs.String("run-id", def.RunID,
		"-> Override the generated run id | 覆盖自动生成的运行标识")
}

// OnArgsParsed materializes the configuration from defaults, the config
// file, the environment and fs. On error profiling stays disabled.
func (p *Plugin) OnArgsParsed(fs *pflag.FlagSet) error {
	cfg, err := config.Load(fs)
	if err != nil {
		logger.Warn("profiling config rejected, profiling disabled", zap.Error(err))
		return err
	}
	p.SetConfig(cfg)
	return nil
}

// SetConfig 直接注入配置（嵌入方已自行加载时使用）
func (p *Plugin) SetConfig(cfg *config.Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// Config 当前配置，未加载时为 nil
func (p *Plugin) Config() *config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Orchestrator returns the orchestrator built by OnStartup, or nil.
func (p *Plugin) Orchestrator() *profiler.Orchestrator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orch
}

// OnStartup builds the orchestrator and starts sampling. Without a loaded
// configuration it does nothing.
func (p *Plugin) OnStartup(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg == nil || p.orch != nil {
		return
	}
	p.orch = profiler.New(p.cfg.Profiling, p.opts...)
	p.orch.Start(ctx)
}

// OnCleanup 停止采样并写出事件日志与图表，返回本次运行报告
func (p *Plugin) OnCleanup() profiler.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.orch == nil {
		return p.report
	}
	p.report = p.orch.Stop(p.cfg.Profiling.StopTimeout)
	for _, w := range p.orch.Warnings() {
		logger.Debug("profiling warning", zap.String("warning", w))
	}
	return p.report
}

// TestRunner is satisfied by *testing.M.
type TestRunner interface {
	Run() int
}

// RunTests wraps a TestMain: profiling runs for the duration of m.Run.
// A nil cfg is loaded from defaults and the environment only, so
// PROFILING_ENABLE=true turns it on for a plain `go test`.
func RunTests(m TestRunner, cfg *config.Config, opts ...profiler.Option) int {
	p := New(opts...)
	if cfg == nil {
		if err := p.OnArgsParsed(nil); err != nil {
			return m.Run()
		}
	} else {
		p.SetConfig(cfg)
	}
	p.OnStartup(context.Background())
	code := m.Run()
	p.OnCleanup()
	return code
}
