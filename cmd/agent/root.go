package agent

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/run-profiler/pkg/config"
	"github.com/run-profiler/pkg/logger"
	"github.com/run-profiler/pkg/util"
)

const projectName = "run-profiler"

var defaultCfg = config.NewDefaultConfig()

// ExitCodeError carries the wrapped command's exit code out of cobra.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// NewRootCmd 构建命令树
func NewRootCmd() *cobra.Command {
	var (
		cfgFile  string
		noBanner bool
	)
	root := &cobra.Command{
		Use:           projectName,
		Short:         "Profile CPU and memory of a test run and its containers",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !noBanner {
				util.PrintBanner(cmd.ErrOrStderr(), projectName, "ColorBlue")
			}
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "-> Config file path | 配置文件路径")
	root.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "-> Do not print the startup banner | 不打印启动banner")
	// 注册分组 flag
	initServerFlags(root)
	initLogFlags(root)

	root.AddCommand(newRunCmd(), newReportCmd())
	return root
}

// Execute 入口：子命令的退出码原样返回给调用方
func Execute() {
	err := NewRootCmd().Execute()
	_ = logger.Sync()
	if err == nil {
		return
	}
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// loadConfig 加载配置并初始化全局日志
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfigWithCli(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefaultCollector(cmd.Name())
	return cfg, nil
}
