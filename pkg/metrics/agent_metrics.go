package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewSamplesTotal 创建「采样点总数」指标
// 指标类型：Counter - 每个写入 SampleStore 的 DataPoint 加一
// 标签说明：
// method: 产生读数的适配器（default / docker）
func (m *MetricFactory) NewSamplesTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profiler_samples_total",
		Help: "Total data points appended to the sample store",
	}, []string{"method"})
	m.reg.MustRegister(c)
	return c
}

// NewSampleErrorsTotal 创建「采样错误总数」指标
func (m *MetricFactory) NewSampleErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profiler_sample_errors_total",
		Help: "Total failed adapter sample calls",
	}, []string{"method"})
	m.reg.MustRegister(c)
	return c
}

// NewSampleDurationSeconds 创建「单次采样耗时分布」指标
// 分桶：0.005s ~ 10s，覆盖本地采样（毫秒级）和容器 stats 调用（秒级）
func (m *MetricFactory) NewSampleDurationSeconds() *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "profiler_sample_duration_seconds",
		Help:    "Duration of one adapter sample call",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	m.reg.MustRegister(h)
	return h
}

// NewLastValue 创建「最近一次读数」指标，便于运行中通过 /metrics 观察
func (m *MetricFactory) NewLastValue() *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "profiler_last_value",
		Help: "Most recent reading per metric, target and method",
	}, []string{"metric", "target", "method"})
	m.reg.MustRegister(g)
	return g
}

func (m *MetricFactory) NewPollersRunning() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "profiler_pollers_running",
		Help: "Number of pollers currently sampling",
	})
	m.reg.MustRegister(g)
	return g
}
