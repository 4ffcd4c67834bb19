package profiler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/run-profiler/pkg/collector"
	"github.com/run-profiler/pkg/monitor"
	"github.com/run-profiler/pkg/store"
)

// State poller 生命周期状态
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Poller 驱动单个采样器：立即采样一次，之后每个间隔采样一次，直到 ctx 取消
type Poller struct {
	sampler  collector.Sampler
	store    *store.SampleStore
	interval time.Duration
	timeout  time.Duration
	runID    string
	tags     map[string]string
	metrics  *monitor.ProfilerMetrics
	now      func() time.Time
	log      *zap.Logger

	state  atomic.Int32
	cycles atomic.Int64
	done   chan struct{}
}

type pollerConfig struct {
	interval time.Duration
	timeout  time.Duration
	runID    string
	tags     map[string]string
	metrics  *monitor.ProfilerMetrics
	now      func() time.Time
	log      *zap.Logger
}

func newPoller(s collector.Sampler, st *store.SampleStore, c pollerConfig) *Poller {
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.timeout <= 0 {
		c.timeout = DefaultSampleTimeout
	}
	return &Poller{
		sampler:  s,
		store:    st,
		interval: c.interval,
		timeout:  c.timeout,
		runID:    c.runID,
		tags:     c.tags,
		metrics:  c.metrics,
		now:      c.now,
		log:      c.log.With(zap.String("sampler", s.Name()), zap.String("method", s.Method())),
		done:     make(chan struct{}),
	}
}

// Name 采样器名称
func (p *Poller) Name() string { return p.sampler.Name() }

// State 当前状态
func (p *Poller) State() State { return State(p.state.Load()) }

// Cycles 已完成的采样轮数
func (p *Poller) Cycles() int64 { return p.cycles.Load() }

// Done is closed once Run has returned.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Run samples until ctx is cancelled or the source disappears. It always
// returns nil so one poller never tears down its siblings.
func (p *Poller) Run(ctx context.Context) error {
	p.state.Store(int32(StateRunning))
	if p.metrics != nil {
		p.metrics.PollersRunning.Inc()
	}
	defer func() {
		if p.metrics != nil {
			p.metrics.PollersRunning.Dec()
		}
		p.state.Store(int32(StateStopped))
		close(p.done)
	}()

	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			p.state.Store(int32(StateStopping))
			return nil
		}
		if !p.cycle(ctx) {
			return nil
		}
		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			p.state.Store(int32(StateStopping))
			p.log.Debug("poller stopping", zap.Int64("cycles", p.Cycles()))
			return nil
		case <-timer.C:
		}
	}
}

// cycle 执行一次采样；返回 false 表示数据源已消失，poller 应结束
func (p *Poller) cycle(ctx context.Context) bool {
	// 停止信号不打断进行中的采样，单次调用由 timeout 兜底
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	at := p.now()
	start := time.Now()
	readings, err := p.sampler.Sample(sctx)
	method := p.sampler.Method()
	if p.metrics != nil {
		p.metrics.SampleDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}

	if len(readings) > 0 {
		batch := make([]monitor.DataPoint, 0, len(readings))
		for _, r := range readings {
			batch = append(batch, monitor.NewDataPoint(r, at, method, p.runID, p.tags))
			if p.metrics != nil {
				p.metrics.LastValue.WithLabelValues(string(r.Metric), r.Target, method).Set(r.Value)
			}
		}
		p.store.AppendBatch(batch)
		if p.metrics != nil {
			p.metrics.SamplesTotal.WithLabelValues(method).Add(float64(len(batch)))
		}
	}
	p.cycles.Add(1)

	switch {
	case err == nil:
		return true
	case errors.Is(err, collector.ErrSourceGone):
		p.log.Info("metric source gone, poller finished", zap.Error(err))
		return false
	default:
		if p.metrics != nil {
			p.metrics.ErrorsTotal.WithLabelValues(method).Inc()
		}
		p.log.Warn("sample failed", zap.Int("partial_readings", len(readings)), zap.Error(err))
		return true
	}
}
