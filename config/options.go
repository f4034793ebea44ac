package config

import (
	"fmt"
	"sync/atomic"
)

// Option 静态配置选项，启动时绑定一次
type Option[T any] interface {
	Value() T
}

// OptionMonitor 监听配置选项，配置重新加载后返回最新值
type OptionMonitor[T any] interface {
	Value() T
}

// OptionsCache 配置缓存，用于存储和自动更新配置
type OptionsCache[T any] struct {
	config  Configuration
	section string
	current atomic.Pointer[T]
	cancel  func()
}

// NewOptionsCache 创建配置缓存。配置不存在时保持零值，重新加载失败时保留旧值。
func NewOptionsCache[T any](config Configuration, section string) *OptionsCache[T] {
	cache := &OptionsCache[T]{
		config:  config,
		section: section,
	}
	var zero T
	cache.current.Store(&zero)
	_ = cache.reload()

	if rc, ok := config.(Reloadable); ok {
		cache.cancel = rc.OnReload(func() {
			_ = cache.reload()
		})
	}
	return cache
}

func (c *OptionsCache[T]) reload() error {
	v, err := Load[T](c.config, c.section)
	if err != nil {
		return fmt.Errorf("failed to bind config section %s: %w", c.section, err)
	}
	c.current.Store(&v)
	return nil
}

// Get 获取当前配置值
func (c *OptionsCache[T]) Get() T {
	return *c.current.Load()
}

// Value 实现 OptionMonitor[T]
func (c *OptionsCache[T]) Value() T {
	return c.Get()
}

// Dispose 停止监听配置重新加载
func (c *OptionsCache[T]) Dispose() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// option 实现 Option[T] 接口
type option[T any] struct {
	value T
}

func (o *option[T]) Value() T {
	return o.value
}

// NewOption 创建静态配置选项
func NewOption[T any](value T) Option[T] {
	return &option[T]{value: value}
}
