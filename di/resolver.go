package di

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/gocrud/decor/logging"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// factory 是预先分析好的实例化方式。
type factory struct {
	out    reflect.Type
	fn     reflect.Value
	params []reflect.Type
	hasErr bool
}

func newFactory(key Key, impl any) (*factory, error) {
	switch v := impl.(type) {
	case nil:
		if key.IsToken() || key.typ == nil {
			return nil, invalidSymbol(key)
		}
		return factoryForType(key, key.typ, true)
	case reflect.Type:
		return factoryForType(key, v, false)
	}

	fn := reflect.ValueOf(impl)
	if fn.Kind() != reflect.Func {
		return nil, invalidFactory(key, impl)
	}
	return factoryForFunc(key, fn)
}

func factoryForType(key Key, t reflect.Type, self bool) (*factory, error) {
	if ctor := constructorOf(t); ctor != nil {
		return factoryForFunc(key, reflect.ValueOf(ctor))
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		if key.typ != nil && !t.AssignableTo(key.typ) {
			return nil, invalidFactory(key, t)
		}
		return &factory{out: t}, nil
	}
	if self {
		return nil, invalidSymbol(key)
	}
	return nil, invalidFactory(key, t)
}

func factoryForFunc(key Key, fn reflect.Value) (*factory, error) {
	ft := fn.Type()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("%w: %v 的构造函数必须返回 T 或 (T, error)", ErrInvalidFactoryType, key)
	}
	out := ft.Out(0)
	if key.typ != nil && !out.AssignableTo(key.typ) {
		return nil, fmt.Errorf("%w: %v 的构造函数返回 %v", ErrInvalidFactoryType, key, out)
	}
	f := &factory{out: out, fn: fn, hasErr: ft.NumOut() == 2}
	for i := 0; i < ft.NumIn(); i++ {
		f.params = append(f.params, ft.In(i))
	}
	return f, nil
}

// resolution 记录一次顶层解析调用的状态。
// 每次公开调用（Get、GetOptional、Resolve、Lazy 读取）都有自己的 resolution。
type resolution struct {
	c            *Container
	mode         InjectMode
	created      []any
	cached       []cachedInstance
	constructing map[Key]bool
}

// cachedInstance 是本次解析写入单例缓存的实例。
type cachedInstance struct {
	key  Key
	def  *ServiceDef
	inst any
}

type checkpoint struct{ created, cached int }

func (r *resolution) mark() checkpoint {
	return checkpoint{created: len(r.created), cached: len(r.cached)}
}

// rollback 撤销 m 之后写入缓存的单例，避免未注入完成的实例被后续调用取到。
func (r *resolution) rollback(m checkpoint) {
	evicted := r.cached[m.cached:]
	r.cached = r.cached[:m.cached]
	r.created = r.created[:m.created]
	if len(evicted) == 0 {
		return
	}
	c := r.c
	c.mu.Lock()
	for i := len(evicted) - 1; i >= 0; i-- {
		e := evicted[i]
		if c.defs[e.key] != e.def {
			continue
		}
		if cur, ok := c.instances[e.key]; ok && sameInstance(cur, e.inst) {
			delete(c.instances, e.key)
		}
	}
	c.mu.Unlock()
}

// sameInstance 比较两个实例是否为同一对象；不可比较的类型只比较动态类型。
func sameInstance(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil || !ta.Comparable() {
		return true
	}
	return a == b
}

func (c *Container) newResolution(mode InjectMode) *resolution {
	return &resolution{c: c, mode: mode, constructing: make(map[Key]bool)}
}

// get 返回完全注入的实例。
// 失败时本次调用写入缓存的单例全部撤销。
func (r *resolution) get(key Key) (any, error) {
	m := r.mark()
	v, fresh, err := r.allocate(key)
	if err != nil {
		r.rollback(m)
		return nil, err
	}
	if !fresh {
		return v, nil
	}
	if err := r.inject(v); err != nil {
		r.rollback(m)
		return nil, err
	}
	return v, nil
}

func (r *resolution) getOptional(key Key) (any, bool) {
	if !r.c.Bound(key) {
		return nil, false
	}
	v, err := r.get(key)
	if err != nil {
		r.c.logger.Warn("可选依赖解析失败", logging.Field{Key: "key", Value: key}, logging.Field{Key: "error", Value: err})
		return nil, false
	}
	return v, true
}

// allocate 取得 key 的实例但不做字段注入。
// fresh 为 true 表示实例由本次调用创建，调用方负责注入它的字段。
// 单例在创建后立即写入缓存，循环依赖时后续请求拿到的是同一个引用。
func (r *resolution) allocate(key Key) (v any, fresh bool, err error) {
	c := r.c
	c.mu.Lock()
	def := c.defs[key]
	if def == nil {
		c.mu.Unlock()
		return nil, false, unresolved(key)
	}
	switch def.Scope {
	case ScopeInstance:
		c.mu.Unlock()
		return def.Value, false, nil

	case ScopeSingleton:
		if inst, ok := c.instances[key]; ok {
			c.mu.Unlock()
			return inst, false, nil
		}
		c.mu.Unlock()

		inst, err := r.construct(key, def.factory)
		if err != nil {
			return nil, false, err
		}

		c.mu.Lock()
		if existing, ok := c.instances[key]; ok {
			c.mu.Unlock()
			return existing, false, nil
		}
		// 绑定可能在构造期间被替换
		if c.defs[key] != def {
			c.mu.Unlock()
			return inst, true, nil
		}
		c.instances[key] = inst
		c.mu.Unlock()
		r.cached = append(r.cached, cachedInstance{key: key, def: def, inst: inst})
		r.created = append(r.created, inst)
		return inst, true, nil

	case ScopeTransient:
		c.mu.Unlock()
		inst, err := r.construct(key, def.factory)
		if err != nil {
			return nil, false, err
		}
		r.created = append(r.created, inst)
		return inst, true, nil

	default:
		c.mu.Unlock()
		return nil, false, invalidFactory(key, def.Impl)
	}
}

// build 用 f 创建新实例并注入，供 Resolve 使用。
func (r *resolution) build(key Key, f *factory) (any, error) {
	m := r.mark()
	v, err := r.construct(key, f)
	if err != nil {
		r.rollback(m)
		return nil, err
	}
	r.created = append(r.created, v)
	if err := r.inject(v); err != nil {
		r.rollback(m)
		return nil, err
	}
	return v, nil
}

// construct 调用构造函数或分配零值结构体。
// 构造函数参数总是立即解析。
func (r *resolution) construct(key Key, f *factory) (any, error) {
	if f == nil {
		return nil, invalidFactory(key, nil)
	}
	if !f.fn.IsValid() {
		return reflect.New(f.out.Elem()).Interface(), nil
	}

	if r.constructing[key] {
		return nil, fmt.Errorf("%w: %v", ErrCircularDependency, key)
	}
	r.constructing[key] = true
	defer delete(r.constructing, key)

	slots := slotDeclarations(f.out)
	args := make([]reflect.Value, len(f.params))
	for i, pt := range f.params {
		dep, ok := slots[i]
		if !ok {
			dep = Dependency{Owner: f.out, Member: Slot(i), Key: TypeKey(pt), Kind: Standard}
		}

		var (
			v       any
			present bool
		)
		if dep.Kind == Optional {
			v, present = r.getOptional(dep.Key)
		} else {
			var err error
			if v, err = r.get(dep.Key); err != nil {
				return nil, fmt.Errorf("%v 构造参数 %d: %w", f.out, i, err)
			}
			present = true
		}

		arg, err := valueFor(pt, v, present)
		if err != nil {
			return nil, invalidInject(f.out, dep.Member, err.Error())
		}
		args[i] = arg
	}

	results := f.fn.Call(args)
	if f.hasErr && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// finish 初始化本次解析中新建实例上的声明处理器。
// 依赖先于依赖它的实例初始化。
func (r *resolution) finish() error {
	created := r.created
	r.created = nil
	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		if err := InitializeDeclarations(created[i], r.c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// valueFor 把解析结果转换为可赋给 t 的值。
// 零值（0、false、""）是合法的解析结果，只有 present 为 false 才代表不存在。
func valueFor(t reflect.Type, v any, present bool) (reflect.Value, error) {
	if !present || v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	return reflect.Value{}, fmt.Errorf("%v 无法赋值给 %v", rv.Type(), t)
}
