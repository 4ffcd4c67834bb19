// Package store holds the append-only sample buffer shared by all pollers
// of one profiling run.
package store

import (
	"sync"

	"github.com/run-profiler/pkg/monitor"
)

// SampleStore 线程安全的只追加采样点序列
//
// Append/AppendBatch 可被任意数量的 poller 并发调用；Drain 在同一把锁下
// 拷贝快照。Drain 之后仍在写入的 poller（停止超时后被放弃的）追加的点
// 不会出现在该快照中，这是有意接受的尽力而为边界。
type SampleStore struct {
	mu     sync.Mutex
	points []monitor.DataPoint
}

// New 创建空的 SampleStore
func New() *SampleStore {
	return &SampleStore{points: make([]monitor.DataPoint, 0, 256)}
}

// Append 追加单个采样点
func (s *SampleStore) Append(p monitor.DataPoint) {
	s.mu.Lock()
	s.points = append(s.points, p)
	s.mu.Unlock()
}

// AppendBatch appends one poller cycle under a single lock so the cycle's
// points stay contiguous and in adapter order.
func (s *SampleStore) AppendBatch(ps []monitor.DataPoint) {
	if len(ps) == 0 {
		return
	}
	s.mu.Lock()
	s.points = append(s.points, ps...)
	s.mu.Unlock()
}

// Len 当前已写入的采样点数量
func (s *SampleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

// Drain returns a stable snapshot of every point appended so far, in
// insertion order. Points are never removed, so later calls return a
// superset of earlier ones.
func (s *SampleStore) Drain() []monitor.DataPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]monitor.DataPoint, len(s.points))
	copy(out, s.points)
	return out
}
