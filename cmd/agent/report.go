package agent

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/run-profiler/pkg/eventlog"
	"github.com/run-profiler/pkg/monitor"
	"github.com/run-profiler/pkg/plot"
)

func newReportCmd() *cobra.Command {
	var (
		dir       string
		drawPlots bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize an existing profiling event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			log, err := eventlog.ReadFile(eventlog.Path(dir))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			series := plot.Aggregate(log.Points)
			runID := runIDOf(log.Points)
			fmt.Fprintf(out, "run %s: %d points, %d targets\n", runID, len(log.Points), len(series))
			if err := plot.PrintSummary(out, series); err != nil {
				return err
			}
			if !drawPlots {
				return nil
			}
			artifacts, err := plot.Generate(dir, runID, log.Points)
			for _, a := range artifacts {
				fmt.Fprintf(out, "wrote %s\n", a)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", defaultCfg.Profiling.OutputDir,
		"-> Directory holding profiling.ndjson | 事件日志所在目录")
	cmd.Flags().BoolVar(&drawPlots, "draw-plots", false,
		"-> Re-render PNG charts and summary.yaml | 重新绘制图表与摘要")
	return cmd
}

func runIDOf(points []monitor.DataPoint) string {
	for _, p := range points {
		if id := p.Tags[monitor.TagRun]; id != "" {
			return id
		}
	}
	return "unknown"
}
