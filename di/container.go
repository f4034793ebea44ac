package di

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/gocrud/decor/logging"
)

// Provider 向容器注册一组绑定。
type Provider func(c *Container) error

// Disposer 由需要在解绑或容器销毁时释放资源的服务实现。
type Disposer interface {
	Dispose() error
}

// Container 是依赖注入容器。
//
// 绑定、单例缓存和待初始化队列都只由本容器持有。
// 容器在创建时以 KeyOf[*Container]() 绑定自身。
type Container struct {
	mu        sync.Mutex
	defs      map[Key]*ServiceDef
	order     []Key
	instances map[Key]any
	queue     []Key
	locked    bool

	mode   InjectMode
	events *Events
	logger logging.Logger
}

// New 创建一个新的空容器。
func New(opts ...Option) *Container {
	c := &Container{
		defs:      make(map[Key]*ServiceDef),
		instances: make(map[Key]any),
		events:    &Events{},
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithCategory("di")

	self := KeyOf[*Container]()
	c.defs[self] = &ServiceDef{Key: self, Scope: ScopeInstance, Value: c}
	c.order = append(c.order, self)
	return c
}

// Bind 以单例作用域绑定 key。
//
// impl 可以省略（类型键以自身类型实例化），也可以是 reflect.Type
// 或构造函数。令牌键必须给出实现。
func (c *Container) Bind(key Key, impl ...any) error {
	return c.bindFactory(key, ScopeSingleton, impl)
}

// BindTransient 以瞬态作用域绑定 key。
func (c *Container) BindTransient(key Key, impl ...any) error {
	return c.bindFactory(key, ScopeTransient, impl)
}

// BindInstance 绑定一个现成的值，解析时原样返回。
func (c *Container) BindInstance(key Key, value any) error {
	return c.register(&ServiceDef{Key: key, Scope: ScopeInstance, Value: value})
}

// BindMock 用部分实现替换 key 的绑定，常用于测试。
func (c *Container) BindMock(key Key, partial any) error {
	return c.BindInstance(key, partial)
}

func (c *Container) bindFactory(key Key, scope ScopeType, impl []any) error {
	if key.IsZero() {
		return invalidSymbol(key)
	}
	var first any
	if len(impl) > 0 {
		first = impl[0]
	}
	f, err := newFactory(key, first)
	if err != nil {
		return err
	}
	return c.register(&ServiceDef{Key: key, Scope: scope, Impl: first, factory: f})
}

func (c *Container) register(def *ServiceDef) error {
	if def.Scope != ScopeTransient && def.Scope != ScopeSingleton && def.Scope != ScopeInstance {
		return invalidFactory(def.Key, def.Impl)
	}

	c.mu.Lock()
	locked := c.locked
	prev := c.defs[def.Key]
	inst, materialized := c.instances[def.Key]
	if prev != nil && prev.Scope == ScopeInstance {
		inst, materialized = prev.Value, !prev.disposed
		prev.disposed = true
	}
	delete(c.instances, def.Key)
	if prev == nil {
		c.order = append(c.order, def.Key)
	}
	c.defs[def.Key] = def
	if def.Scope == ScopeSingleton {
		c.queue = append(c.queue, def.Key)
	}
	c.mu.Unlock()

	if locked {
		c.logger.Warn("容器已锁定，仍然绑定服务", logging.Field{Key: "key", Value: def.Key})
	}
	if prev == nil {
		c.logger.Debug("绑定服务", logging.Field{Key: "key", Value: def.Key}, logging.Field{Key: "scope", Value: def.Scope})
		return nil
	}

	c.logger.Debug("重新绑定服务", logging.Field{Key: "key", Value: def.Key}, logging.Field{Key: "scope", Value: def.Scope})
	if !materialized {
		return nil
	}
	return c.dispose(prev.Key, inst)
}

// dispose 执行实例的销毁流程：先销毁声明处理器，再调用 Dispose。
func (c *Container) dispose(key Key, inst any) error {
	if inst == nil {
		return nil
	}
	if inst == any(c) {
		return nil
	}
	var errs []error
	if err := DestroyDeclarations(inst, c); err != nil {
		errs = append(errs, err)
	}
	if d, ok := inst.(Disposer); ok {
		if err := d.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("di: 释放 %v 失败: %w", key, err))
		}
	}
	c.logger.Debug("释放服务", logging.Field{Key: "key", Value: key})
	return errors.Join(errs...)
}

// Get 返回 key 对应的实例，实例的依赖已全部注入。
func (c *Container) Get(key Key) (any, error) {
	r := c.newResolution(c.mode)
	v, err := r.get(key)
	if err != nil {
		return nil, err
	}
	return v, r.finish()
}

// GetOptional 返回 key 对应的实例；key 未绑定时返回 (nil, false)。
func (c *Container) GetOptional(key Key) (any, bool) {
	r := c.newResolution(c.mode)
	v, ok := r.getOptional(key)
	if !ok {
		return nil, false
	}
	if err := r.finish(); err != nil {
		c.logger.Warn("可选依赖初始化失败", logging.Field{Key: "key", Value: key}, logging.Field{Key: "error", Value: err})
	}
	return v, true
}

// Resolve 直接实例化类型 t 并注入依赖，不登记任何绑定。
// 每次调用都得到新的实例。
func (c *Container) Resolve(t reflect.Type, mode ...InjectMode) (any, error) {
	m := c.mode
	if len(mode) > 0 {
		m = mode[0]
	}
	key := TypeKey(t)
	f, err := newFactory(key, nil)
	if err != nil {
		return nil, err
	}
	r := c.newResolution(m)
	v, err := r.build(key, f)
	if err != nil {
		return nil, err
	}
	return v, r.finish()
}

// Bound 报告 key 是否已绑定。
func (c *Container) Bound(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.defs[key]
	return ok
}

// Definition 返回 key 的绑定定义。
func (c *Container) Definition(key Key) (ServiceDef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	def, ok := c.defs[key]
	if !ok {
		return ServiceDef{}, false
	}
	return *def, true
}

// Use 依次执行 providers。
func (c *Container) Use(providers ...Provider) error {
	for _, p := range providers {
		if p == nil {
			continue
		}
		if err := p(c); err != nil {
			return err
		}
	}
	return nil
}

// Expand 在容器解锁状态下执行 providers，并通过 expanded 事件
// 通知新增的键。flush 为 true 时新增的单例会在通知前全部实例化。
// 结束后恢复原来的锁定状态。
func (c *Container) Expand(flush bool, providers ...Provider) error {
	c.mu.Lock()
	before := make(map[Key]struct{}, len(c.order))
	for _, k := range c.order {
		before[k] = struct{}{}
	}
	wasLocked := c.locked
	c.locked = false
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.locked = wasLocked
		c.mu.Unlock()
	}()

	if err := c.Use(providers...); err != nil {
		return err
	}

	var added []Key
	for _, k := range c.ServicesKeys() {
		if _, ok := before[k]; !ok {
			added = append(added, k)
		}
	}

	if flush {
		if err := c.FlushQueue(); err != nil {
			return err
		}
	}

	c.logger.Debug("容器扩展", logging.Field{Key: "added", Value: len(added)})
	c.events.emitExpanded(added)
	return nil
}

// FlushQueue 按绑定顺序实例化所有待处理的单例，并初始化它们的声明。
func (c *Container) FlushQueue() error {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return nil
		}
		key := c.queue[0]
		c.queue = c.queue[1:]
		def := c.defs[key]
		c.mu.Unlock()

		if def == nil || def.Scope != ScopeSingleton {
			continue
		}
		if _, err := c.Get(key); err != nil {
			return fmt.Errorf("di: 初始化 %v 失败: %w", key, err)
		}
	}
}

// Lock 标记容器为锁定状态。锁定只是提示，由调用方自行检查。
func (c *Container) Lock() {
	c.mu.Lock()
	c.locked = true
	c.mu.Unlock()
}

// Unlock 解除锁定。
func (c *Container) Unlock() {
	c.mu.Lock()
	c.locked = false
	c.mu.Unlock()
}

// Locked 报告容器是否锁定。
func (c *Container) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// ServicesKeys 按绑定顺序返回所有已绑定的键。
func (c *Container) ServicesKeys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, len(c.order))
	copy(keys, c.order)
	return keys
}

// Events 返回容器事件。
func (c *Container) Events() *Events {
	return c.events
}

// Logger 返回容器使用的日志记录器。
func (c *Container) Logger() logging.Logger {
	return c.logger
}

// destroyAll 按绑定的逆序销毁所有已实例化的服务，并清空单例缓存。
// 实例绑定的值只释放一次，再次销毁容器不会重复调用 Dispose。
func (c *Container) destroyAll() error {
	keys := c.ServicesKeys()
	var errs []error
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		c.mu.Lock()
		def := c.defs[key]
		inst, ok := c.instances[key]
		delete(c.instances, key)
		// 实例绑定保持绑定状态，只释放一次
		if def != nil && def.Scope == ScopeInstance {
			inst, ok = def.Value, !def.disposed
			def.disposed = true
		}
		c.mu.Unlock()

		if def == nil {
			continue
		}
		if !ok {
			continue
		}
		if err := c.dispose(key, inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
