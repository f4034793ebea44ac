package di

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Entry 是附加在类型成员上的一条声明：处理器类型、参数和成员名。
// 成员名为空表示声明作用于类型本身。
type Entry struct {
	Handler reflect.Type
	Params  any
	Member  string
	Class   reflect.Type
}

// Handler 是声明处理器。实现方式是嵌入 Declaration：
//
//	type routeHandler struct {
//		di.Declaration
//		Router *Router `di:""`
//	}
//
//	func (h *routeHandler) OnCreate() error { ... h.Instance, h.Member, h.Options ... }
type Handler interface {
	OnCreate() error
	OnDestroy() error
	setContext(ctx Declaration)
}

// Declaration 是处理器的基类，提供空的 OnCreate/OnDestroy 和声明上下文。
type Declaration struct {
	// Options 是声明时给出的参数。
	Options any
	// Instance 是拥有该声明的实例。
	Instance any
	// Class 是声明所在的结构体类型。
	Class reflect.Type
	// Member 是声明所在的成员名。
	Member string
}

func (d *Declaration) OnCreate() error  { return nil }
func (d *Declaration) OnDestroy() error { return nil }

func (d *Declaration) setContext(ctx Declaration) {
	*d = ctx
}

// Kind 是一种声明，由 DefineDeclarationKind 创建。
type Kind struct {
	handler reflect.Type
}

// DefineDeclarationKind 以处理器类型 H 定义一种声明。
// H 必须是嵌入了 Declaration 的结构体指针。
func DefineDeclarationKind[H Handler]() Kind {
	t := TypeOf[H]()
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("di: 声明处理器必须是结构体指针，得到 %v", t))
	}
	return Kind{handler: t}
}

// Handler 返回处理器类型。
func (k Kind) Handler() reflect.Type {
	return k.handler
}

// On 返回把该声明附加到 member 上的 Attachment。
func (k Kind) On(member string, params any) Attachment {
	return func(owner reflect.Type, _ *classInfo, entries *[]Entry) {
		*entries = append(*entries, Entry{Handler: k.handler, Params: params, Member: member, Class: owner})
	}
}

type handlerKey struct {
	c        *Container
	instance any
}

// handlers 以 (容器, 实例) 为键记录已创建的处理器。
var handlers = struct {
	sync.Mutex
	m map[handlerKey][]Handler
}{m: make(map[handlerKey][]Handler)}

// InitializeDeclarations 为 instance 上的每条声明解析处理器、设置上下文并调用 OnCreate。
// 同一实例在同一容器中只初始化一次。
//
// 零大小结构体的所有实例共享同一地址，无法按身份区分，
// 因此每次调用都会创建新的处理器并记录在同一条目下，销毁时一并销毁。
func InitializeDeclarations(instance any, c *Container) error {
	if instance == nil {
		return nil
	}
	t := reflect.TypeOf(instance)
	entries := EntriesOf(t)
	if len(entries) == 0 {
		return nil
	}
	if !t.Comparable() {
		return fmt.Errorf("%w: %v 不可比较，无法登记声明", ErrInvalidInjectMethod, t)
	}

	zeroSize := t.Kind() == reflect.Ptr && t.Elem().Size() == 0

	hk := handlerKey{c: c, instance: instance}
	handlers.Lock()
	if _, ok := handlers.m[hk]; ok && !zeroSize {
		handlers.Unlock()
		return nil
	} else if !ok {
		handlers.m[hk] = nil
	}
	handlers.Unlock()

	for _, e := range entries {
		v, err := c.Resolve(e.Handler)
		if err != nil {
			return fmt.Errorf("di: 创建声明处理器 %v 失败: %w", e.Handler, err)
		}
		h, ok := v.(Handler)
		if !ok {
			return fmt.Errorf("%w: %v 不是声明处理器", ErrInvalidFactoryType, e.Handler)
		}
		h.setContext(Declaration{Options: e.Params, Instance: instance, Class: e.Class, Member: e.Member})

		handlers.Lock()
		handlers.m[hk] = append(handlers.m[hk], h)
		handlers.Unlock()

		if err := h.OnCreate(); err != nil {
			return fmt.Errorf("di: %v.%s 声明初始化失败: %w", e.Class, e.Member, err)
		}
	}
	return nil
}

// DestroyDeclarations 逆序调用 instance 上所有处理器的 OnDestroy 并移除记录。
func DestroyDeclarations(instance any, c *Container) error {
	if instance == nil || !reflect.TypeOf(instance).Comparable() {
		return nil
	}
	hk := handlerKey{c: c, instance: instance}
	handlers.Lock()
	list, ok := handlers.m[hk]
	delete(handlers.m, hk)
	handlers.Unlock()
	if !ok {
		return nil
	}

	return destroyHandlers(list)
}

func destroyHandlers(list []Handler) error {
	var errs []error
	for i := len(list) - 1; i >= 0; i-- {
		if err := list[i].OnDestroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// destroyRemaining 销毁容器中仍有记录的处理器，
// 包括瞬态实例和 Resolve 创建的实例上的处理器。
func destroyRemaining(c *Container) error {
	handlers.Lock()
	var lists [][]Handler
	for hk, list := range handlers.m {
		if hk.c == c {
			lists = append(lists, list)
			delete(handlers.m, hk)
		}
	}
	handlers.Unlock()

	var errs []error
	for _, list := range lists {
		if err := destroyHandlers(list); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InitializeContainer 实例化所有待处理的单例并初始化它们的声明。
func InitializeContainer(c *Container) error {
	return c.FlushQueue()
}

// DestroyContainer 对容器中每个已实例化的服务执行销毁流程，
// 然后销毁其余仍登记在该容器下的声明处理器。
func DestroyContainer(c *Container) error {
	err := c.destroyAll()
	return errors.Join(err, destroyRemaining(c))
}
