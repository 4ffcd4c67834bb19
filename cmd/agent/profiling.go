package agent

import (
	"github.com/spf13/pflag"

	"github.com/run-profiler/pkg/config"
	"github.com/run-profiler/pkg/host"
)

// initProfilingFlags 注册采样参数；开关类参数由 host 插件注册
func initProfilingFlags(f *pflag.FlagSet, plugin *host.Plugin) {
	plugin.RegisterFlags(f)
	p := defaultCfg.Profiling
	prefix := "profiling."

	f.StringSlice(prefix+"methods", p.Methods,
		"-> Sampling methods [default,docker] | 采样方式 [default,docker]")
	f.Float64(prefix+"poll-time", p.PollTime,
		"-> Seconds between samples | 采样间隔（秒）")
	f.Duration(prefix+"sample-timeout", p.SampleTimeout,
		"-> Upper bound of one sampler call | 单次采样超时")
	f.Duration(prefix+"stop-timeout", p.StopTimeout,
		"-> How long to wait for samplers at the end | 结束时等待采样器的时间")
	f.String(prefix+"docker-compose-project-name", p.ComposeProject,
		"-> docker compose project whose containers are sampled | docker compose 项目名")
	f.String(prefix+"additional-tags", config.FormatTags(p.AdditionalTags),
		"-> Static tags k=v,k2=v2 added to every point | 附加标签 k=v,k2=v2")
	f.String(prefix+"output-dir", p.OutputDir,
		"-> Directory for the event log and charts | 事件日志与图表目录")
}
