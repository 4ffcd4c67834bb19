package monitor

import (
	"time"
)

// MetricKind 采集指标种类
type MetricKind string

const (
	CPUPercent  MetricKind = "cpu_percent"
	MemoryUsage MetricKind = "memory_usage"
)

// Tag keys every DataPoint carries
const (
	TagTarget = "target"
	TagMethod = "method"
	TagRun    = "run"
)

// Profiling methods (adapter identifiers)
const (
	MethodDefault = "default"
	MethodDocker  = "docker"
)

// TargetSystem is the target name of host-wide readings.
const TargetSystem = "system"

// TimeLayout is the wire format of DataPoint timestamps: UTC, microseconds, "Z" suffix.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// MetricDefinition 指标静态元数据（写在事件日志头部）
type MetricDefinition struct {
	Metric MetricKind
	Type   string
	Unit   string
}

var definitions = map[MetricKind]MetricDefinition{
	CPUPercent:  {Metric: CPUPercent, Type: "gauge", Unit: "percent"},
	MemoryUsage: {Metric: MemoryUsage, Type: "gauge", Unit: "megabytes"},
}

// Definition returns the static definition of the kind. Unknown kinds are
// reported as unitless gauges.
func (k MetricKind) Definition() MetricDefinition {
	if d, ok := definitions[k]; ok {
		return d
	}
	return MetricDefinition{Metric: k, Type: "gauge", Unit: ""}
}

// DefaultDefinitions 按固定顺序返回所有内置指标定义
func DefaultDefinitions() []MetricDefinition {
	return []MetricDefinition{
		definitions[CPUPercent],
		definitions[MemoryUsage],
	}
}

// Reading 适配器在某一时刻产出的单个读数
type Reading struct {
	Metric MetricKind
	Value  float64
	Target string
}

// DataPoint 带时间戳和标签的单个采样点（写入后不可变）
type DataPoint struct {
	Metric MetricKind
	Time   time.Time
	Value  float64
	Tags   map[string]string
}

// Target returns the target tag.
func (p DataPoint) Target() string { return p.Tags[TagTarget] }

// Method returns the method tag.
func (p DataPoint) Method() string { return p.Tags[TagMethod] }

// FormatTime renders t in the event log wire format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NewDataPoint builds a point from a reading. Static tags are copied first so
// the reserved target/method/run keys always win. The time is truncated to
// the microsecond precision of TimeLayout so a replayed log matches.
func NewDataPoint(r Reading, at time.Time, method, runID string, static map[string]string) DataPoint {
	tags := make(map[string]string, len(static)+3)
	for k, v := range static {
		tags[k] = v
	}
	tags[TagTarget] = r.Target
	tags[TagMethod] = method
	tags[TagRun] = runID
	return DataPoint{
		Metric: r.Metric,
		Time:   at.UTC().Truncate(time.Microsecond),
		Value:  r.Value,
		Tags:   tags,
	}
}

// NewRunID 生成默认运行标识 run-YYYYMMDD-HHMMSS（本地时间）
func NewRunID(now time.Time) string {
	return "run-" + now.Format("20060102-150405")
}

// ResolveRunID returns the explicit override when set, else a generated id.
func ResolveRunID(override string, now time.Time) string {
	if override != "" {
		return override
	}
	return NewRunID(now)
}
