package plot

import (
	"errors"

	"github.com/run-profiler/pkg/monitor"
)

// Generate aggregates points and writes every chart plus summary.yaml into
// dir. Paths of the artifacts that were written are returned even on error.
func Generate(dir, runID string, points []monitor.DataPoint) ([]string, error) {
	series := Aggregate(points)
	artifacts, renderErr := NewRenderer().Render(dir, series)
	path, sumErr := WriteSummary(dir, runID, series)
	if sumErr == nil {
		artifacts = append(artifacts, path)
	}
	return artifacts, errors.Join(renderErr, sumErr)
}
