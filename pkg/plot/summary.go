package plot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/guptarohit/asciigraph"
	"gopkg.in/yaml.v3"
)

// SummaryFileName 统计摘要文件名
const SummaryFileName = "summary.yaml"

// TargetSummary 单个 target 的统计摘要
type TargetSummary struct {
	Target   string `yaml:"target"`
	Samples  int    `yaml:"samples"`
	CPU      Stats  `yaml:"cpu_percent"`
	MemoryMB Stats  `yaml:"memory_mb"`
}

// Summary 一次运行的统计摘要
type Summary struct {
	RunID   string          `yaml:"run_id"`
	Targets []TargetSummary `yaml:"targets"`
}

// NewSummary builds the per-target statistics for a run.
func NewSummary(runID string, series []TargetSeries) Summary {
	sum := Summary{RunID: runID, Targets: []TargetSummary{}}
	for _, s := range WithData(series) {
		sum.Targets = append(sum.Targets, TargetSummary{
			Target:   s.Target,
			Samples:  s.CPU.Len() + s.Memory.Len(),
			CPU:      Summarize(s.CPU.Values),
			MemoryMB: Summarize(s.Memory.Values),
		})
	}
	return sum
}

// WriteSummary writes summary.yaml into dir and returns its path.
func WriteSummary(dir, runID string, series []TargetSeries) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}
	data, err := yaml.Marshal(NewSummary(runID, series))
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	path := filepath.Join(dir, SummaryFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write summary %s: %w", path, err)
	}
	return path, nil
}

// PrintSummary 输出终端文本摘要（asciigraph 折线）
func PrintSummary(w io.Writer, series []TargetSeries) error {
	series = WithData(series)
	if len(series) == 0 {
		_, err := fmt.Fprintln(w, "no samples recorded")
		return err
	}
	for _, s := range series {
		if _, err := fmt.Fprintf(w, "== %s ==\n", s.Target); err != nil {
			return err
		}
		if err := printSeries(w, "CPU %", s.CPU); err != nil {
			return err
		}
		if err := printSeries(w, "Memory MB", s.Memory); err != nil {
			return err
		}
	}
	return nil
}

func printSeries(w io.Writer, label string, s Series) error {
	if s.Len() == 0 {
		return nil
	}
	st := Summarize(s.Values)
	caption := fmt.Sprintf("%s  avg %.1f  max %.1f  min %.1f", label, st.Avg, st.Max, st.Min)
	graph := asciigraph.Plot(s.Values,
		asciigraph.Height(6),
		asciigraph.Width(60),
		asciigraph.Precision(1),
		asciigraph.Caption(caption),
	)
	_, err := fmt.Fprintf(w, "%s\n\n", graph)
	return err
}
