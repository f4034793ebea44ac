package di

import (
	"fmt"
	"reflect"
)

// Bind 以单例作用域绑定类型 T。
func Bind[T any](c *Container, impl ...any) error {
	return c.Bind(KeyOf[T](), impl...)
}

// BindTransient 以瞬态作用域绑定类型 T。
func BindTransient[T any](c *Container, impl ...any) error {
	return c.BindTransient(KeyOf[T](), impl...)
}

// BindInstance 把 v 绑定为类型 T 的实例。
func BindInstance[T any](c *Container, v T) error {
	return c.BindInstance(KeyOf[T](), v)
}

// Get 解析 T；给出 key 时按 key 解析，否则按类型 T 解析。
func Get[T any](c *Container, key ...Key) (T, error) {
	var zero T
	v, err := c.Get(keyFor[T](key))
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// GetOptional 解析 T，未绑定时返回 (零值, false)。
func GetOptional[T any](c *Container, key ...Key) (T, bool) {
	var zero T
	v, ok := c.GetOptional(keyFor[T](key))
	if !ok {
		return zero, false
	}
	t, err := cast[T](v)
	if err != nil {
		return zero, false
	}
	return t, true
}

// MustGet 解析 T，失败时 panic。
func MustGet[T any](c *Container, key ...Key) T {
	v, err := Get[T](c, key...)
	if err != nil {
		panic(err)
	}
	return v
}

// Resolve 直接实例化 T 并注入依赖，不登记绑定。
func Resolve[T any](c *Container, mode ...InjectMode) (T, error) {
	var zero T
	v, err := c.Resolve(TypeOf[T](), mode...)
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

func keyFor[T any](key []Key) Key {
	if len(key) > 0 {
		return key[0]
	}
	return KeyOf[T]()
}

func cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("di: %T 无法转换为 %v", v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}
