package di

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnresolvedDependency 请求的键没有绑定。
	ErrUnresolvedDependency = errors.New("di: unresolved dependency")
	// ErrInvalidBindingSymbol 令牌键绑定时没有给出实现。
	ErrInvalidBindingSymbol = errors.New("di: invalid binding symbol")
	// ErrInvalidFactoryType 服务定义的作用域或实现无法识别。
	ErrInvalidFactoryType = errors.New("di: invalid factory type")
	// ErrInvalidInjectMethod 注入模式无法识别，或声明的成员无法注入。
	ErrInvalidInjectMethod = errors.New("di: invalid inject method")
	// ErrCircularDependency 构造函数参数之间出现循环。字段注入允许循环，构造函数不允许。
	ErrCircularDependency = errors.New("di: circular constructor dependency")
)

func unresolved(key Key) error {
	return fmt.Errorf("%w: %v", ErrUnresolvedDependency, key)
}

func invalidSymbol(key Key) error {
	return fmt.Errorf("%w: %v 没有可实例化的实现", ErrInvalidBindingSymbol, key)
}

func invalidFactory(key Key, impl any) error {
	return fmt.Errorf("%w: %v (impl=%T)", ErrInvalidFactoryType, key, impl)
}

func invalidInject(owner reflect.Type, member Member, reason string) error {
	return fmt.Errorf("%w: %v.%v: %s", ErrInvalidInjectMethod, owner, member, reason)
}
