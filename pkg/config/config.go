package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Profiling ProfilingConfig `yaml:"profiling" mapstructure:"profiling" comment:"采样配置"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server" comment:"可选的 /metrics HTTP服务"`
	Log       ZapLogConfig    `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ProfilingConfig 采样配置
type ProfilingConfig struct {
	Enable         bool              `yaml:"enable" mapstructure:"enable" env:"PROFILING_ENABLE" comment:"总开关" default:"false"`
	DrawPlots      bool              `yaml:"draw_plots" mapstructure:"draw_plots" env:"PROFILING_DRAW_PLOTS" comment:"运行结束后绘制图表" default:"false"`
	RunID          string            `yaml:"run_id" mapstructure:"run_id" env:"PROFILING_RUN_ID" comment:"覆盖自动生成的运行标识"`
	Methods        []string          `yaml:"methods" mapstructure:"methods" env:"PROFILING_METHODS" validate:"required,min=1,dive,required" comment:"采样方式 default/docker" default:"[default]"`
	PollTime       float64           `yaml:"poll_time" mapstructure:"poll_time" env:"PROFILING_POLL_TIME" validate:"gt=0" comment:"采样间隔（秒）" default:"1.0"`
	SampleTimeout  time.Duration     `yaml:"sample_timeout" mapstructure:"sample_timeout" env:"PROFILING_SAMPLE_TIMEOUT" validate:"gt=0" comment:"单次适配器调用超时" default:"5s"`
	StopTimeout    time.Duration     `yaml:"stop_timeout" mapstructure:"stop_timeout" env:"PROFILING_STOP_TIMEOUT" validate:"gte=0" comment:"停止时等待poller的最长时间" default:"2s"`
	ComposeProject string            `yaml:"docker_compose_project_name" mapstructure:"docker_compose_project_name" env:"PROFILING_DOCKER_COMPOSE_PROJECT_NAME" comment:"docker compose 项目名" default:"compose"`
	AdditionalTags map[string]string `yaml:"additional_tags" mapstructure:"additional_tags" env:"PROFILING_ADDITIONAL_TAGS" comment:"附加到每个采样点的静态标签"`
	OutputDir      string            `yaml:"output_dir" mapstructure:"output_dir" env:"PROFILING_OUTPUT_DIR" validate:"required" comment:"输出目录" default:".profiling"`
	PID            int               `yaml:"pid" mapstructure:"pid" env:"PROFILING_PID" validate:"gte=0" comment:"被采样进程，0 表示当前进程" default:"0"`
}

// ServerConfig HTTP服务配置，Addr 为空时不启动
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" env:"SERVER_ADDR" validate:"omitempty,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error" comment:"日志级别" default:"info"`
	Format string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"console"`
	Path   string `yaml:"path" mapstructure:"path" env:"LOG_PATH" comment:"日志文件目录，为空时只输出到控制台"`
	MaxAge int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// PollInterval converts the poll_time seconds into a duration.
func (p *ProfilingConfig) PollInterval() time.Duration {
	return time.Duration(p.PollTime * float64(time.Second))
}

// HasMethod reports whether the method is configured.
func (p *ProfilingConfig) HasMethod(method string) bool {
	for _, m := range p.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Profiling: ProfilingConfig{
			Enable:         false,
			DrawPlots:      false,
			Methods:        []string{"default"},
			PollTime:       1.0,
			SampleTimeout:  5 * time.Second,
			StopTimeout:    2 * time.Second,
			ComposeProject: "compose",
			AdditionalTags: map[string]string{},
			OutputDir:      ".profiling",
		},
		Log: ZapLogConfig{
			Level:  "info",
			Format: "console",
			MaxAge: 7,
		},
	}
}

// flagKeys maps host-facing flag names onto config keys. Flags not listed
// here are bound under their own name (e.g. "log.level").
var flagKeys = map[string]string{
	"enable-profiling": "profiling.enable",
	"draw-plots":       "profiling.draw_plots",
	"run-id":           "profiling.run_id",
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	return Load(cmd.Flags())
}

// Load 加载配置（优先级：命令行 > 环境变量 > 配置文件 > 默认值）
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)
	var cfgFile string

	// 1. 绑定 Flags → Viper
	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" || bindErr != nil {
				return
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}

		// 2. 解析配置文件 (--config)
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			cfgFile = f.Value.String()
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file %s: %w", f.Value.String(), err)
			}
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （profiling.poll_time -> PROFILING_POLL_TIME）
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("profiling.additional_tags"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	// 4. 解码反序列化到结构体
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToTagsHookFunc(),
		),
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// viper 会把 map 键转成小写；标签来自配置文件时按原样重新读取
	if _, fromFile := v.Get("profiling.additional_tags").(map[string]any); fromFile && cfgFile != "" {
		tags, err := fileTags(cfgFile)
		if err != nil {
			return nil, err
		}
		if tags != nil {
			cfg.Profiling.AdditionalTags = tags
		}
	}
	if cfg.Profiling.AdditionalTags == nil {
		cfg.Profiling.AdditionalTags = map[string]string{}
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	p := cfg.Profiling
	v.SetDefault("profiling.enable", p.Enable)
	v.SetDefault("profiling.draw_plots", p.DrawPlots)
	v.SetDefault("profiling.run_id", p.RunID)
	v.SetDefault("profiling.methods", p.Methods)
	v.SetDefault("profiling.poll_time", p.PollTime)
	v.SetDefault("profiling.sample_timeout", p.SampleTimeout)
	v.SetDefault("profiling.stop_timeout", p.StopTimeout)
	v.SetDefault("profiling.docker_compose_project_name", p.ComposeProject)
	v.SetDefault("profiling.output_dir", p.OutputDir)
	v.SetDefault("profiling.pid", p.PID)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.path", cfg.Log.Path)
	v.SetDefault("log.max_age", cfg.Log.MaxAge)
}

// fileTags reads profiling.additional_tags from a YAML or JSON config file
// with the key case preserved. Other formats return nil.
func fileTags(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var doc struct {
		Profiling struct {
			AdditionalTags map[string]string `yaml:"additional_tags"`
		} `yaml:"profiling"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse additional_tags in %s: %w", path, err)
	}
	return doc.Profiling.AdditionalTags, nil
}

// stringToTagsHookFunc 将 "k1=v1,k2=v2" 解析为标签 map（用于环境变量）
func stringToTagsHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(map[string]string{}) {
			return data, nil
		}
		return ParseTags(data.(string))
	}
}

// ParseTags parses a comma separated list of key=value pairs.
func ParseTags(s string) (map[string]string, error) {
	tags := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid tag %q (expected key=value)", pair)
		}
		tags[k] = strings.TrimSpace(v)
	}
	return tags, nil
}

// FormatTags is the inverse of ParseTags with keys sorted.
func FormatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, ",")
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	if err := c.Profiling.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
