package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/run-profiler/pkg/logger"
	"github.com/run-profiler/pkg/monitor"
)

// processHandle is the part of *process.Process the sampler needs.
type processHandle interface {
	NameWithContext(ctx context.Context) (string, error)
	PercentWithContext(ctx context.Context, interval time.Duration) (float64, error)
	MemoryInfoWithContext(ctx context.Context) (*process.MemoryInfoStat, error)
}

// LocalSampler 采集被测进程与宿主机的 CPU/内存
type LocalSampler struct {
	name   string
	pid    int32
	target string
	proc   processHandle

	newProcess func(ctx context.Context, pid int32) (processHandle, error)
	systemCPU  func(ctx context.Context) (float64, error)
	systemMem  func(ctx context.Context) (uint64, error)
}

// NewLocalSampler 创建本地采样器，pid 为 0 时采样当前进程
func NewLocalSampler(pid int) *LocalSampler {
	return &LocalSampler{
		name:       "local-sampler",
		pid:        int32(pid),
		newProcess: newGopsutilProcess,
		systemCPU:  systemCPUPercent,
		systemMem:  systemMemoryUsed,
	}
}

func newGopsutilProcess(ctx context.Context, pid int32) (processHandle, error) {
	return process.NewProcessWithContext(ctx, pid)
}

func systemCPUPercent(ctx context.Context) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, errors.New("cpu percent: empty result")
	}
	return pcts[0], nil
}

func systemMemoryUsed(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Used, nil
}

// Name 返回采样器名称
func (s *LocalSampler) Name() string { return s.name }

// Method 返回 method 标签
func (s *LocalSampler) Method() string { return monitor.MethodDefault }

// Target returns the resolved process name; empty before Init.
func (s *LocalSampler) Target() string { return s.target }

// Init 解析目标进程并预热 CPU 百分比计算（首次调用没有历史基准）
func (s *LocalSampler) Init(ctx context.Context) error {
	if s.pid == 0 {
		s.pid = int32(os.Getpid())
	}
	proc, err := s.newProcess(ctx, s.pid)
	if err != nil {
		return fmt.Errorf("open process %d: %w", s.pid, classifyProcessErr(err))
	}
	s.proc = proc

	s.target = "unknown"
	if name, err := proc.NameWithContext(ctx); err == nil && name != "" {
		s.target = name
	}

	if _, err := proc.PercentWithContext(ctx, 0); err != nil {
		return fmt.Errorf("prime process cpu: %w", classifyProcessErr(err))
	}
	if _, err := s.systemCPU(ctx); err != nil {
		logger.Debug("prime system cpu failed", zap.String("name", s.name), zap.Error(err))
	}
	logger.Debug("local sampler initialized", zap.String("name", s.name),
		zap.Int32("pid", s.pid), zap.String("target", s.target))
	return nil
}

// Sample returns process CPU%, process RSS (MB), system CPU% and system used
// memory (MB), in that order. A vanished process yields ErrSourceGone.
func (s *LocalSampler) Sample(ctx context.Context) ([]Reading, error) {
	if s.proc == nil {
		return nil, errors.New("local sampler not initialized")
	}

	procCPU, err := s.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("process cpu: %w", classifyProcessErr(err))
	}
	memInfo, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process memory: %w", classifyProcessErr(err))
	}

	readings := []Reading{
		{Metric: monitor.CPUPercent, Value: procCPU, Target: s.target},
		{Metric: monitor.MemoryUsage, Value: bytesToMB(memInfo.RSS), Target: s.target},
	}

	var errs []error
	if sysCPU, err := s.systemCPU(ctx); err != nil {
		errs = append(errs, fmt.Errorf("system cpu: %w", err))
	} else {
		readings = append(readings, Reading{Metric: monitor.CPUPercent, Value: sysCPU, Target: monitor.TargetSystem})
	}
	if used, err := s.systemMem(ctx); err != nil {
		errs = append(errs, fmt.Errorf("system memory: %w", err))
	} else {
		readings = append(readings, Reading{Metric: monitor.MemoryUsage, Value: bytesToMB(used), Target: monitor.TargetSystem})
	}
	return readings, errors.Join(errs...)
}

// Close 本地采样器无需释放资源
func (s *LocalSampler) Close() error { return nil }

func classifyProcessErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("%w: %w", ErrSourceGone, err)
	}
	return err
}
