package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-profiler/pkg/monitor"
)

func point(target string, v float64) monitor.DataPoint {
	return monitor.NewDataPoint(
		monitor.Reading{Metric: monitor.CPUPercent, Value: v, Target: target},
		time.Now(), monitor.MethodDefault, "run-test", nil,
	)
}

func TestConcurrentAppendNoLoss(t *testing.T) {
	const writers, perWriter = 8, 500
	s := New()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			target := fmt.Sprintf("w%d", w)
			for i := 0; i < perWriter; i++ {
				if i%2 == 0 {
					s.Append(point(target, float64(i)))
				} else {
					s.AppendBatch([]monitor.DataPoint{point(target, float64(i))})
				}
			}
		}(w)
	}
	wg.Wait()

	drained := s.Drain()
	require.Len(t, drained, writers*perWriter)

	// per-writer order must be preserved
	last := map[string]float64{}
	seen := map[string]int{}
	for _, p := range drained {
		prev, ok := last[p.Target()]
		if ok {
			assert.Greater(t, p.Value, prev, "writer %s out of order", p.Target())
		}
		last[p.Target()] = p.Value
		seen[p.Target()]++
	}
	for w := 0; w < writers; w++ {
		assert.Equal(t, perWriter, seen[fmt.Sprintf("w%d", w)])
	}
}

func TestBatchStaysContiguous(t *testing.T) {
	s := New()
	s.Append(point("a", 1))
	s.AppendBatch([]monitor.DataPoint{point("b", 1), point("b", 2), point("b", 3)})
	s.AppendBatch(nil)

	got := s.Drain()
	require.Len(t, got, 4)
	assert.Equal(t, []float64{1, 1, 2, 3}, []float64{got[0].Value, got[1].Value, got[2].Value, got[3].Value})
}

func TestDrainIsSnapshot(t *testing.T) {
	s := New()
	s.Append(point("a", 1))

	snap := s.Drain()
	s.Append(point("a", 2))

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.Drain(), 2)
}

func TestDrainDuringAppends(t *testing.T) {
	s := New()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				s.Append(point("straggler", float64(i)))
			}
		}
	}()

	var prev int
	for i := 0; i < 50; i++ {
		n := len(s.Drain())
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
	close(stop)
	<-done
}
