// Package clients 提供各存储模块共用的命名客户端集合与注册逻辑。
package clients

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/decor/di"
)

// DefaultName 默认客户端的名称，该客户端同时以类型键绑定。
const DefaultName = "default"

// Set 按名称保存客户端，关闭时按注册的逆序进行
type Set[C any] struct {
	kind  string
	close func(C) error

	mu      sync.RWMutex
	clients map[string]C
	order   []string
}

// NewSet 创建客户端集合，kind 用于错误信息
func NewSet[C any](kind string, close func(C) error) *Set[C] {
	return &Set[C]{kind: kind, close: close, clients: make(map[string]C)}
}

// Add 保存客户端，名称重复时返回错误
func (s *Set[C]) Add(name string, client C) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[name]; ok {
		return fmt.Errorf("%s client '%s' already registered", s.kind, name)
	}
	s.clients[name] = client
	s.order = append(s.order, name)
	return nil
}

// Get 获取指定名称的客户端
func (s *Set[C]) Get(name string) (C, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[name]
	if !ok {
		var zero C
		return zero, fmt.Errorf("%s client '%s' not found", s.kind, name)
	}
	return c, nil
}

// Names 按注册顺序返回名称
func (s *Set[C]) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Close 逆序关闭全部客户端并清空集合
func (s *Set[C]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for i := len(s.order) - 1; i >= 0; i-- {
		name := s.order[i]
		if err := s.close(s.clients[name]); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s client '%s': %w", s.kind, name, err))
		}
	}
	s.clients = make(map[string]C)
	s.order = nil
	return errors.Join(errs...)
}

// Tokens 为每个名称分配唯一且稳定的令牌
type Tokens[C any] struct {
	m sync.Map
}

// Key 返回 name 对应的令牌键
func (t *Tokens[C]) Key(name string) di.Key {
	if v, ok := t.m.Load(name); ok {
		return v.(*di.Token[C]).Key()
	}
	v, _ := t.m.LoadOrStore(name, di.NewToken[C](name))
	return v.(*di.Token[C]).Key()
}

// Bind 把每个名称以令牌绑定为单例，名称为 DefaultName 的客户端同时以类型 C 绑定。
// 客户端在首次解析时通过 get 从工厂 F 取得。
func Bind[C, F any](c *di.Container, tokens *Tokens[C], names []string, get func(f F, name string) (C, error)) error {
	for _, name := range names {
		resolve := func(f F) (C, error) { return get(f, name) }
		if err := c.Bind(tokens.Key(name), resolve); err != nil {
			return err
		}
		if name == DefaultName {
			if err := di.Bind[C](c, resolve); err != nil {
				return err
			}
		}
	}
	return nil
}
