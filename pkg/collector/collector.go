package collector

import (
	"context"
	"errors"
)

var (
	// ErrSourceGone 被采样的数据源已消失（进程退出、无权限），poller 应终止
	ErrSourceGone = errors.New("metric source gone")
	// ErrNoTargets 初始化成功但没有任何可采样目标（例如没有匹配的容器）
	ErrNoTargets = errors.New("no targets found")
)

// Sampler 采样适配器核心接口（所有数据源必须实现）
type Sampler interface {
	Name() string                                  // 采样器名称（唯一标识）
	Method() string                                // 写入 method 标签的值
	Init(ctx context.Context) error                // 初始化（连接数据源、发现目标）
	Sample(ctx context.Context) ([]Reading, error) // 采集当前时刻的读数
	Close() error                                  // 关闭（释放资源）
}
