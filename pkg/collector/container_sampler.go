package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/run-profiler/pkg/logger"
	"github.com/run-profiler/pkg/monitor"
)

// ComposeProjectLabel is the label docker compose puts on project containers.
const ComposeProjectLabel = "com.docker.compose.project"

// DockerAPI is the subset of the docker Engine client used for sampling.
type DockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStats(ctx context.Context, containerID string, stream bool) (container.StatsResponseReader, error)
	Close() error
}

type trackedContainer struct {
	id   string
	name string
}

// ContainerSampler 采集 docker compose 项目中各容器的 CPU/内存
type ContainerSampler struct {
	name       string
	project    string
	newClient  func() (DockerAPI, error)
	client     DockerAPI
	containers []trackedContainer
}

// ContainerOption 自定义 ContainerSampler
type ContainerOption func(*ContainerSampler)

// WithDockerClient injects a ready client instead of dialing from the environment.
func WithDockerClient(api DockerAPI) ContainerOption {
	return func(s *ContainerSampler) {
		s.newClient = func() (DockerAPI, error) { return api, nil }
	}
}

// NewContainerSampler 创建容器采样器，容器在 Init 时按 compose 项目标签发现一次
func NewContainerSampler(project string, opts ...ContainerOption) *ContainerSampler {
	s := &ContainerSampler{
		name:      "docker-sampler",
		project:   project,
		newClient: newEnvClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newEnvClient() (DockerAPI, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// Name 返回采样器名称
func (s *ContainerSampler) Name() string { return s.name }

// Method 返回 method 标签
func (s *ContainerSampler) Method() string { return monitor.MethodDocker }

// Containers returns the names of the tracked containers.
func (s *ContainerSampler) Containers() []string {
	names := make([]string, 0, len(s.containers))
	for _, c := range s.containers {
		names = append(names, c.name)
	}
	return names
}

// Init 连接容器运行时并发现容器；运行时不可达时返回错误，没有容器时返回 ErrNoTargets
func (s *ContainerSampler) Init(ctx context.Context) error {
	cli, err := s.newClient()
	if err != nil {
		return fmt.Errorf("docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return fmt.Errorf("docker is unavailable: %w", err)
	}
	s.client = cli

	list, err := cli.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", ComposeProjectLabel+"="+s.project)),
	})
	if err != nil {
		return fmt.Errorf("list containers of project %q: %w", s.project, err)
	}

	s.containers = s.containers[:0]
	for _, c := range list {
		s.containers = append(s.containers, trackedContainer{id: c.ID, name: containerName(c)})
	}
	if len(s.containers) == 0 {
		return fmt.Errorf("project %q: %w", s.project, ErrNoTargets)
	}
	logger.Debug("docker sampler initialized", zap.String("name", s.name),
		zap.String("project", s.project), zap.Strings("containers", s.Containers()))
	return nil
}

func containerName(c container.Summary) string {
	for _, n := range c.Names {
		if n = strings.TrimPrefix(n, "/"); n != "" {
			return n
		}
	}
	if len(c.ID) >= 12 {
		return c.ID[:12]
	}
	if c.ID != "" {
		return c.ID
	}
	return "unknown"
}

// Sample 对每个容器发起一次非流式 stats 调用；单个容器失败只跳过该容器
func (s *ContainerSampler) Sample(ctx context.Context) ([]Reading, error) {
	if s.client == nil {
		return nil, nil
	}
	var (
		readings []Reading
		errs     []error
	)
	for _, c := range s.containers {
		stats, err := s.stats(ctx, c.id)
		if err != nil {
			errs = append(errs, fmt.Errorf("container %s: %w", c.name, err))
			continue
		}
		got := StatsReadings(c.name, stats)
		if len(got) == 0 {
			logger.Debug("container reported no stats, skipped", zap.String("name", s.name), zap.String("container", c.name))
			continue
		}
		readings = append(readings, got...)
	}
	return readings, errors.Join(errs...)
}

func (s *ContainerSampler) stats(ctx context.Context, id string) (container.StatsResponse, error) {
	var st container.StatsResponse
	resp, err := s.client.ContainerStats(ctx, id, false)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode stats: %w", err)
	}
	return st, nil
}

// StatsReadings converts one stats snapshot into readings. CPU% is
// (cpu_delta / system_delta) * online_cpus * 100 and is omitted when the
// system delta or the online CPU count is zero. Memory is omitted when the
// daemon sent no memory stats, which is what a stopped container returns.
func StatsReadings(name string, st container.StatsResponse) []Reading {
	readings := make([]Reading, 0, 2)

	cpuDelta := float64(st.CPUStats.CPUUsage.TotalUsage) - float64(st.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(st.CPUStats.SystemUsage) - float64(st.PreCPUStats.SystemUsage)
	if systemDelta > 0 && st.CPUStats.OnlineCPUs > 0 {
		readings = append(readings, Reading{
			Metric: monitor.CPUPercent,
			Value:  cpuDelta / systemDelta * float64(st.CPUStats.OnlineCPUs) * 100,
			Target: name,
		})
	}
	if hasMemoryStats(st.MemoryStats) {
		readings = append(readings, Reading{
			Metric: monitor.MemoryUsage,
			Value:  bytesToMB(st.MemoryStats.Usage),
			Target: name,
		})
	}
	return readings
}

// hasMemoryStats 停止的容器返回空的 memory_stats
func hasMemoryStats(m container.MemoryStats) bool {
	return m.Usage != 0 || m.Limit != 0 || len(m.Stats) > 0
}

// Close 关闭 docker 客户端
func (s *ContainerSampler) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
