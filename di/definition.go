package di

import (
	"fmt"
	"reflect"
)

// ScopeType 定义了服务的生命周期。
type ScopeType int

const (
	// ScopeTransient 每次请求创建一个新实例。
	ScopeTransient ScopeType = iota
	// ScopeSingleton 每个容器创建一个实例，首次请求时创建。
	ScopeSingleton
	// ScopeInstance 绑定一个现成的值，原样返回。
	ScopeInstance
)

func (s ScopeType) String() string {
	switch s {
	case ScopeTransient:
		return "transient"
	case ScopeSingleton:
		return "singleton"
	case ScopeInstance:
		return "instance"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ServiceDef 描述一个绑定。
type ServiceDef struct {
	Key   Key
	Scope ScopeType
	// Impl 是绑定时给出的实现：reflect.Type、构造函数或 nil。
	Impl any
	// Value 仅在 ScopeInstance 下使用。
	Value any

	factory  *factory
	disposed bool
}

// DependencyKind 区分必选与可选依赖。
type DependencyKind int

const (
	// Standard 必须能解析，否则报错。
	Standard DependencyKind = iota
	// Optional 解析不到时得到显式的"不存在"。
	Optional
)

func (k DependencyKind) String() string {
	if k == Optional {
		return "optional"
	}
	return "standard"
}

// Member 标识声明所在的成员：字段名或构造函数参数下标。
type Member struct {
	Name string
	Slot int
}

// Field 返回字段成员。
func Field(name string) Member {
	return Member{Name: name, Slot: -1}
}

// Slot 返回构造函数第 i 个参数。
func Slot(i int) Member {
	return Member{Slot: i}
}

// IsSlot 报告成员是否为构造函数参数。
func (m Member) IsSlot() bool {
	return m.Name == ""
}

func (m Member) String() string {
	if m.IsSlot() {
		return fmt.Sprintf("arg#%d", m.Slot)
	}
	return m.Name
}

// Dependency 是一条依赖声明。
type Dependency struct {
	Owner  reflect.Type
	Member Member
	Key    Key
	Kind   DependencyKind
}

// InjectMode 决定字段注入的方式。
type InjectMode int

const (
	// InjectStatic 两阶段注入：先规划整张依赖图，再统一填充字段。
	// 单例之间的循环依赖在此模式下保持引用一致。
	InjectStatic InjectMode = iota
	// InjectLazy 逐字段即时解析。
	InjectLazy
)

func (m InjectMode) String() string {
	switch m {
	case InjectStatic:
		return "static"
	case InjectLazy:
		return "lazy"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}
