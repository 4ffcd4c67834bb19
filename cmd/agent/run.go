package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/run-profiler/internal/server"
	"github.com/run-profiler/pkg/config"
	"github.com/run-profiler/pkg/host"
	"github.com/run-profiler/pkg/logger"
	"github.com/run-profiler/pkg/metrics"
	"github.com/run-profiler/pkg/profiler"
	"github.com/run-profiler/pkg/signal"
)

func newRunCmd() *cobra.Command {
	reg := metrics.NewRegistry(true)
	plugin := host.New(profiler.WithRegisterer(metrics.NewPromRegistry(reg)))

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a test command with CPU/memory profiling attached",
		Example: "  run-profiler run --enable-profiling --draw-plots -- go test ./...\n" +
			"  run-profiler run --enable-profiling --profiling.methods default,docker -- pytest -x",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runWithProfiling(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args, cfg, plugin, reg)
		},
	}
	// 第一个位置参数之后的内容原样交给子命令
	cmd.Flags().SetInterspersed(false)
	initProfilingFlags(cmd.Flags(), plugin)
	return cmd
}

// runWithProfiling starts args as a child process, profiles it until it
// exits and returns an *ExitCodeError mirroring a non-zero exit status.
// Profiling problems are reported but never change the exit code.
func runWithProfiling(ctx context.Context, stdout, stderr io.Writer, args []string,
	cfg *config.Config, plugin *host.Plugin, reg *prometheus.Registry) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Named("run")

	child := exec.Command(args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = stdout
	child.Stderr = stderr
	if err := child.Start(); err != nil {
		return fmt.Errorf("start %s: %w", args[0], err)
	}
	stopForward := signal.Forward(child.Process, log)
	defer stopForward()

	cfg.Profiling.PID = child.Process.Pid
	plugin.SetConfig(cfg)
	plugin.OnStartup(ctx)

	var srv *server.Server
	if cfg.Server.Addr != "" {
		srv = server.NewHTTPServer(cfg.Server.Addr, logger.Named("http"), reg, plugin.Orchestrator())
		if err := srv.Start(); err != nil {
			log.Warn("metrics server not started", zap.Error(err))
			srv = nil
		}
	}

	waitErr := child.Wait()
	report := plugin.OnCleanup()
	printReport(stderr, report, plugin)

	if srv != nil {
		if err := srv.Shutdown(); err != nil {
			log.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	return exitError(waitErr)
}

func exitError(err error) error {
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code := ee.ExitCode()
		if code < 0 {
			// 被信号终止
			code = 1
		}
		return &ExitCodeError{Code: code}
	}
	return err
}

func printReport(w io.Writer, report profiler.Report, plugin *host.Plugin) {
	orch := plugin.Orchestrator()
	if orch == nil || report.RunID == "" {
		return
	}
	_, _ = fmt.Fprintf(w, "profiling %s: %d points -> %s\n", report.RunID, report.Points, report.LogPath)
	for _, a := range report.Artifacts {
		_, _ = fmt.Fprintf(w, "  %s\n", a)
	}
	for _, warning := range orch.Warnings() {
		_, _ = fmt.Fprintf(w, "profiling warning: %s\n", warning)
	}
}
