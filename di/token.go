package di

import (
	"fmt"
	"reflect"
)

// Key 是服务在容器中的唯一标识。
//
// Key 有两种形态：
//   - 类型键：由类型本身充当，KeyOf[T]() / TypeKey(t)
//   - 令牌键：不透明的令牌，NewToken[T](name).Key()
//
// Key 可比较，可直接用作 map 的键。
type Key struct {
	typ   reflect.Type
	token *tokenID
}

// tokenID 只以指针身份参与比较，name 仅用于描述。
type tokenID struct {
	name string
}

// KeyOf 返回类型 T 的类型键。
func KeyOf[T any]() Key {
	return Key{typ: TypeOf[T]()}
}

// TypeKey 返回 t 的类型键。
func TypeKey(t reflect.Type) Key {
	return Key{typ: t}
}

// IsToken 报告 k 是否为令牌键。
func (k Key) IsToken() bool {
	return k.token != nil
}

// IsZero 报告 k 是否为零值。
func (k Key) IsZero() bool {
	return k.typ == nil && k.token == nil
}

// Type 返回键关联的类型。对令牌键而言是令牌声明的值类型。
func (k Key) Type() reflect.Type {
	return k.typ
}

// String 返回键的可读描述。
func (k Key) String() string {
	switch {
	case k.token != nil:
		return fmt.Sprintf("Token[%s](%s)", k.typ, k.token.name)
	case k.typ != nil:
		return k.typ.String()
	default:
		return "<nil>"
	}
}

// Token 是带类型的不透明令牌，用于区分相同类型的不同依赖
//
// 使用场景：
//   - 需要注册多个相同类型但用途不同的实例（如多个数据库连接）
//   - 配置值（如字符串、整数等基本类型）
//
// 示例：
//
//	var Port = di.NewToken[int]("port")
//
//	c.BindInstance(Port.Key(), 8080)
//	port, _ := di.Get[int](c, Port.Key())
type Token[T any] struct {
	key Key
}

// NewToken 创建一个新的 Token。
// 同名的两个 Token 也互不相等。
func NewToken[T any](name string) *Token[T] {
	return &Token[T]{
		key: Key{typ: TypeOf[T](), token: &tokenID{name: name}},
	}
}

// Key 返回令牌对应的服务键
func (t *Token[T]) Key() Key {
	return t.key
}

// Name 返回 Token 的名称
func (t *Token[T]) Name() string {
	return t.key.token.name
}

// String 返回 Token 的字符串表示
func (t *Token[T]) String() string {
	return t.key.String()
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
