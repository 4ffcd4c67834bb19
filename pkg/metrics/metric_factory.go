package metrics

import "github.com/run-profiler/pkg/monitor"

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// NewProfilerMetrics creates and registers every profiler self-metric.
func (m *MetricFactory) NewProfilerMetrics() monitor.ProfilerMetrics {
	return monitor.ProfilerMetrics{
		SamplesTotal:   m.NewSamplesTotal(),
		ErrorsTotal:    m.NewSampleErrorsTotal(),
		SampleDuration: m.NewSampleDurationSeconds(),
		LastValue:      m.NewLastValue(),
		PollersRunning: m.NewPollersRunning(),
	}
}
