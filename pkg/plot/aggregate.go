// Package plot reshapes drained data points into per-target time series and
// renders them as charts and summaries. Everything here is presentation only.
package plot

import (
	"time"

	"github.com/run-profiler/pkg/monitor"
)

// Series 单个指标的时间序列；每个序列保留自己的时间戳
type Series struct {
	Times  []time.Time
	Values []float64
}

// Len 序列长度
func (s Series) Len() int { return len(s.Values) }

func (s *Series) add(t time.Time, v float64) {
	s.Times = append(s.Times, t)
	s.Values = append(s.Values, v)
}

// TargetSeries 单个 target 的 CPU 与内存序列
type TargetSeries struct {
	Target string
	CPU    Series
	Memory Series
}

// HasData reports whether either series has points.
func (ts TargetSeries) HasData() bool {
	return ts.CPU.Len() > 0 || ts.Memory.Len() > 0
}

// Aggregate groups points by target, preserving first-seen target order and
// per-target insertion order. Unknown metric kinds are ignored.
func Aggregate(points []monitor.DataPoint) []TargetSeries {
	index := map[string]int{}
	var out []TargetSeries
	for _, p := range points {
		target := p.Target()
		i, ok := index[target]
		if !ok {
			i = len(out)
			index[target] = i
			out = append(out, TargetSeries{Target: target})
		}
		switch p.Metric {
		case monitor.CPUPercent:
			out[i].CPU.add(p.Time, p.Value)
		case monitor.MemoryUsage:
			out[i].Memory.add(p.Time, p.Value)
		}
	}
	return out
}

// WithData filters out targets that have no points.
func WithData(series []TargetSeries) []TargetSeries {
	out := make([]TargetSeries, 0, len(series))
	for _, s := range series {
		if s.HasData() {
			out = append(out, s)
		}
	}
	return out
}

// Stats 序列统计值
type Stats struct {
	Avg float64 `yaml:"avg"`
	Max float64 `yaml:"max"`
	Min float64 `yaml:"min"`
}

// Summarize returns avg/max/min; all zero for an empty slice.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	st := Stats{Max: values[0], Min: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		if v > st.Max {
			st.Max = v
		}
		if v < st.Min {
			st.Min = v
		}
	}
	st.Avg = sum / float64(len(values))
	return st
}
