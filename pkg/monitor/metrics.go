package monitor

import "github.com/prometheus/client_golang/prometheus"

// -------------------------- 采样器自身监控指标结构体 --------------------------
type ProfilerMetrics struct {
	SamplesTotal   *prometheus.CounterVec   // 写入存储的采样点数（按method）
	ErrorsTotal    *prometheus.CounterVec   // 采样失败次数（按method）
	SampleDuration *prometheus.HistogramVec // 单次适配器调用耗时
	LastValue      *prometheus.GaugeVec     // 每个target最近一次的读数
	PollersRunning prometheus.Gauge         // 当前运行中的poller数量
}
