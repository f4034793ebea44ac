package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/logging"
)

// ErrSectionField 声明的字段不存在或不可写。
var ErrSectionField = errors.New("config: invalid section field")

// Provide 把 cfg 绑定为 Configuration。
func Provide(cfg Configuration) di.Provider {
	return func(c *di.Container) error {
		return di.BindInstance(c, cfg)
	}
}

// ProvideOptions 把配置节 section 绑定为 Option[T] 与 OptionMonitor[T]。
func ProvideOptions[T any](section string) di.Provider {
	return func(c *di.Container) error {
		err := di.Bind[Option[T]](c, func(cfg Configuration) (Option[T], error) {
			v, err := Load[T](cfg, section)
			if err != nil {
				return nil, fmt.Errorf("config: failed to bind section '%s': %w", section, err)
			}
			return NewOption(v), nil
		})
		if err != nil {
			return err
		}
		return di.Bind[OptionMonitor[T]](c, func(cfg Configuration) OptionMonitor[T] {
			return NewOptionsCache[T](cfg, section)
		})
	}
}

// SectionOptions 是 Section 声明的参数。直接传字符串等价于 SectionOptions{Key: s}。
type SectionOptions struct {
	Key string
	// Watch 为 true 时配置重新加载后重新绑定字段
	Watch bool
}

// Section 把配置节绑定到声明所在的字段，未导出字段同样可以绑定：
//
//	type Server struct {
//		Settings ServerSettings
//	}
//
//	func init() {
//		di.Class[Server](config.Section.On("Settings", "server"))
//	}
//
// Watch 模式下普通字段在重新加载时直接覆写，没有同步；
// 需要并发读取时把字段声明为 Watched[T]，通过 Value 读取。
// 重新加载绑定失败时保留旧值并记录日志。
var Section = di.DefineDeclarationKind[*sectionHandler]()

// Watched 保存 Watch 模式下的配置节，读写都是原子的。
type Watched[T any] struct {
	p atomic.Pointer[T]
}

// Value 返回当前值，尚未绑定时返回零值。
func (w *Watched[T]) Value() T {
	if v := w.p.Load(); v != nil {
		return *v
	}
	var zero T
	return zero
}

func (w *Watched[T]) valueType() reflect.Type { return reflect.TypeFor[T]() }

func (w *Watched[T]) store(v any) {
	t := v.(T)
	w.p.Store(&t)
}

type watchedField interface {
	valueType() reflect.Type
	store(v any)
}

type sectionHandler struct {
	di.Declaration
	Config Configuration  `di:""`
	Logger logging.Logger `di:"?"`
	cancel func()
}

func (h *sectionHandler) options() SectionOptions {
	switch o := h.Options.(type) {
	case string:
		return SectionOptions{Key: o}
	case SectionOptions:
		return o
	case *SectionOptions:
		return *o
	}
	return SectionOptions{}
}

func (h *sectionHandler) OnCreate() error {
	opts := h.options()
	if err := h.bind(opts.Key); err != nil {
		return err
	}
	if rc, ok := h.Config.(Reloadable); ok && opts.Watch {
		h.cancel = rc.OnReload(func() {
			if err := h.bind(opts.Key); err != nil && h.Logger != nil {
				h.Logger.Warn("配置重新绑定失败，保留旧值",
					logging.F("class", h.Class.String()),
					logging.F("member", h.Member),
					logging.Err(err))
			}
		})
	}
	return nil
}

func (h *sectionHandler) OnDestroy() error {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	return nil
}

func (h *sectionHandler) bind(key string) error {
	field, err := h.field()
	if err != nil {
		return err
	}

	holder, watched := field.Addr().Interface().(watchedField)
	typ := field.Type()
	if watched {
		typ = holder.valueType()
	}
	target := reflect.New(typ)
	if err := h.Config.Bind(key, target.Interface()); err != nil {
		return fmt.Errorf("config: failed to bind section '%s': %w", key, err)
	}
	if watched {
		holder.store(target.Elem().Interface())
	} else {
		field.Set(target.Elem())
	}
	return nil
}

// field 返回声明字段的可写视图，未导出字段经 NewAt 取得。
func (h *sectionHandler) field() (reflect.Value, error) {
	v := reflect.ValueOf(h.Instance)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %T", ErrSectionField, h.Instance)
	}
	sf, ok := v.Elem().Type().FieldByName(h.Member)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: %v.%s", ErrSectionField, h.Class, h.Member)
	}
	field, err := v.Elem().FieldByIndexErr(sf.Index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v.%s: %v", ErrSectionField, h.Class, h.Member, err)
	}
	if !field.CanSet() {
		field = reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
	}
	return field, nil
}
