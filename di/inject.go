package di

import (
	"fmt"
	"reflect"
	"unsafe"
)

// fieldTarget 是一个待注入的字段。
type fieldTarget struct {
	dep   Dependency
	value reflect.Value
	lazy  accessor
}

// inject 按声明注入 instance 的字段。
func (r *resolution) inject(instance any) error {
	switch r.mode {
	case InjectStatic:
		return r.injectStatic(instance)
	case InjectLazy:
		return r.injectLazy(instance)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidInjectMethod, r.mode)
	}
}

// injectStatic 两阶段注入。
//
// 规划阶段用显式栈遍历依赖图：必选依赖被分配（不注入）并压栈，
// 可选依赖通过 getOptional 解析但不再向下遍历；已访问的键不会重复解析。
// 填充阶段把规划得到的值写入各自的字段。
func (r *resolution) injectStatic(root any) error {
	type planned struct {
		target fieldTarget
		value  any
		ok     bool
	}
	type resolved struct {
		value any
		ok    bool
	}

	var (
		stack   = []any{root}
		visited = make(map[Key]resolved)
		plan    []planned
	)

	for len(stack) > 0 {
		inst := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		targets, err := fieldTargets(inst)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if t.lazy != nil {
				plan = append(plan, planned{target: t})
				continue
			}
			key := t.dep.Key
			if res, ok := visited[key]; ok {
				plan = append(plan, planned{target: t, value: res.value, ok: res.ok})
				continue
			}

			var res resolved
			if t.dep.Kind == Optional {
				res.value, res.ok = r.getOptional(key)
			} else {
				v, fresh, err := r.allocate(key)
				if err != nil {
					return fmt.Errorf("%v.%v: %w", t.dep.Owner, t.dep.Member, err)
				}
				res = resolved{value: v, ok: true}
				if fresh {
					stack = append(stack, v)
				}
			}
			visited[key] = res
			plan = append(plan, planned{target: t, value: res.value, ok: res.ok})
		}
	}

	for _, p := range plan {
		if p.target.lazy != nil {
			r.c.installAccessor(p.target)
			continue
		}
		if err := assign(p.target, p.value, p.ok); err != nil {
			return err
		}
	}
	return nil
}

// injectLazy 逐字段解析；Lazy 字段安装访问器。
func (r *resolution) injectLazy(instance any) error {
	targets, err := fieldTargets(instance)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t.lazy != nil {
			r.c.installAccessor(t)
			continue
		}
		if t.dep.Kind == Optional {
			v, ok := r.getOptional(t.dep.Key)
			if err := assign(t, v, ok); err != nil {
				return err
			}
			continue
		}
		v, err := r.get(t.dep.Key)
		if err != nil {
			return fmt.Errorf("%v.%v: %w", t.dep.Owner, t.dep.Member, err)
		}
		if err := assign(t, v, true); err != nil {
			return err
		}
	}
	return nil
}

// installAccessor 安装每次读取都重新解析的访问器。
func (c *Container) installAccessor(t fieldTarget) {
	key := t.dep.Key
	if t.dep.Kind == Optional {
		t.lazy.install(func() (any, bool, error) {
			v, ok := c.GetOptional(key)
			return v, ok, nil
		})
		return
	}
	t.lazy.install(func() (any, bool, error) {
		v, err := c.Get(key)
		return v, err == nil, err
	})
}

func assign(t fieldTarget, v any, ok bool) error {
	val, err := valueFor(t.value.Type(), v, ok)
	if err != nil {
		return invalidInject(t.dep.Owner, t.dep.Member, err.Error())
	}
	t.value.Set(val)
	return nil
}

// fieldTargets 沿嵌入链收集 instance 上待注入的字段。
//
// 从最外层结构体开始，深度优先进入值嵌入和非 nil 的指针嵌入。
// 结构体自身的字段只遮蔽它下方嵌入链中的同名声明，
// 并列的嵌入结构体各自拥有独立的字段，互不遮蔽。已有非零值的字段跳过。
func fieldTargets(instance any) ([]fieldTarget, error) {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, nil
	}

	var out []fieldTarget

	// shadow 与 path 只沿当前分支向下传递
	var walk func(sv reflect.Value, shadow map[string]bool, path map[reflect.Type]bool) error
	walk = func(sv reflect.Value, shadow map[string]bool, path map[reflect.Type]bool) error {
		st := sv.Type()
		if path[st] {
			return nil
		}

		for _, dep := range DeclarationsForType(st) {
			if dep.Member.IsSlot() || shadow[dep.Member.Name] {
				continue
			}
			sf, ok := st.FieldByName(dep.Member.Name)
			if !ok || len(sf.Index) != 1 {
				return invalidInject(st, dep.Member, "字段不存在")
			}
			fv := settable(sv.Field(sf.Index[0]))
			if !fv.IsZero() {
				continue
			}
			t := fieldTarget{dep: dep, value: fv}
			if a, ok := fv.Addr().Interface().(accessor); ok {
				t.lazy = a
			}
			out = append(out, t)
		}

		var (
			childShadow map[string]bool
			childPath   map[reflect.Type]bool
		)
		for i := 0; i < st.NumField(); i++ {
			sf := st.Field(i)
			if !sf.Anonymous {
				continue
			}
			fv := settable(sv.Field(i))
			var next reflect.Value
			switch {
			case fv.Kind() == reflect.Struct:
				next = fv
			case fv.Kind() == reflect.Ptr && !fv.IsNil() && fv.Elem().Kind() == reflect.Struct:
				next = fv.Elem()
			default:
				continue
			}
			if childShadow == nil {
				childShadow = make(map[string]bool, len(shadow)+st.NumField())
				for name := range shadow {
					childShadow[name] = true
				}
				for j := 0; j < st.NumField(); j++ {
					childShadow[st.Field(j).Name] = true
				}
				childPath = make(map[reflect.Type]bool, len(path)+1)
				for t := range path {
					childPath[t] = true
				}
				childPath[st] = true
			}
			if err := walk(next, childShadow, childPath); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(v.Elem(), nil, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// settable 使未导出字段也可写。
func settable(v reflect.Value) reflect.Value {
	if v.CanSet() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}
