package di

import (
	"fmt"
	"reflect"
)

// Lazy 是按需解析的依赖字段。每次读取都会重新向容器请求，
// 因此能观察到之后的重新绑定。
//
//	type Consumer struct {
//		Widget di.Lazy[*Widget] `di:"?"`
//	}
//
//	if w, ok := consumer.Widget.Lookup(); ok { ... }
type Lazy[T any] struct {
	read func() (any, bool, error)
}

// accessor 由 Lazy[T] 的指针实现，供注入器识别并安装读取函数。
type accessor interface {
	valueType() reflect.Type
	install(read func() (any, bool, error))
}

func (l *Lazy[T]) valueType() reflect.Type {
	return TypeOf[T]()
}

func (l *Lazy[T]) install(read func() (any, bool, error)) {
	l.read = read
}

// Resolve 解析依赖。可选依赖不存在时返回零值且不报错。
func (l Lazy[T]) Resolve() (T, error) {
	var zero T
	if l.read == nil {
		return zero, fmt.Errorf("di: Lazy[%v] 尚未注入", TypeOf[T]())
	}
	v, ok, err := l.read()
	if err != nil || !ok || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("di: %T 无法转换为 %v", v, TypeOf[T]())
	}
	return t, nil
}

// Lookup 解析依赖并报告它是否存在。
func (l Lazy[T]) Lookup() (T, bool) {
	var zero T
	if l.read == nil {
		return zero, false
	}
	v, ok, err := l.read()
	if err != nil || !ok {
		return zero, false
	}
	if v == nil {
		return zero, true
	}
	t, ok := v.(T)
	return t, ok
}

// Get 解析依赖，失败时 panic。
func (l Lazy[T]) Get() T {
	v, err := l.Resolve()
	if err != nil {
		panic(err)
	}
	return v
}

// Injected 报告访问器是否已安装。
func (l Lazy[T]) Injected() bool {
	return l.read != nil
}
