package config

import (
	"strings"
	"sync"
	"sync/atomic"
)

// ValueStore 保存合并后的配置快照，读取无锁
type ValueStore struct {
	p atomic.Pointer[map[string]any]
}

// NewValueStore 创建内容为空的 ValueStore
func NewValueStore() *ValueStore {
	s := &ValueStore{}
	s.Store(map[string]any{})
	return s
}

// Load 返回当前快照，调用方不得修改
func (s *ValueStore) Load() map[string]any {
	if m := s.p.Load(); m != nil {
		return *m
	}
	return nil
}

// Store 替换整份快照
func (s *ValueStore) Store(data map[string]any) {
	s.p.Store(&data)
}

// PathCache 缓存 "a:b.c" 形式路径的拆分结果，":" 与 "." 均为分隔符
type PathCache struct {
	segments sync.Map
}

// GetPathSegments 返回路径片段，忽略空片段
func (c *PathCache) GetPathSegments(path string) []string {
	if v, ok := c.segments.Load(path); ok {
		return v.([]string)
	}
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == ':' || r == '.' })
	v, _ := c.segments.LoadOrStore(path, parts)
	return v.([]string)
}

var paths PathCache

// Load 把 section 节绑定到新的 T，section 为空时绑定全部配置
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}
