package collector

import "github.com/run-profiler/pkg/monitor"

// Reading is re-exported so adapters and their callers share one type.
type Reading = monitor.Reading

// bytesToMB converts a byte counter to megabytes (10^6 bytes).
func bytesToMB(b uint64) float64 {
	return float64(b) / 1e6
}
