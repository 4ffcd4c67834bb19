package config

import (
	"fmt"
	"strings"
)

// reservedTags 由采样器自身写入，不允许通过 additional_tags 覆盖
var reservedTags = map[string]bool{
	"target": true,
	"method": true,
	"run":    true,
}

// Validate 采样配置校验
// methods 不能重复；启用 docker 时必须提供 compose 项目名；
// additional_tags 不能使用保留键，也不能有空键。
func (p *ProfilingConfig) Validate() error {
	if err := valid.Struct(p); err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, m := range p.Methods {
		m = strings.TrimSpace(m)
		if m == "" {
			return fmt.Errorf("profiling.methods cannot contain empty string")
		}
		if seen[m] {
			return fmt.Errorf("profiling.methods duplicated entry: %q", m)
		}
		seen[m] = true
	}

	if seen["docker"] && strings.TrimSpace(p.ComposeProject) == "" {
		return fmt.Errorf("profiling.docker_compose_project_name is required when the docker method is enabled")
	}

	for k := range p.AdditionalTags {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("profiling.additional_tags cannot contain an empty key")
		}
		if reservedTags[k] {
			return fmt.Errorf("profiling.additional_tags: key %q is reserved", k)
		}
	}
	return nil
}
