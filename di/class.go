package di

import (
	"fmt"
	"reflect"
)

// Attachment 是附加到类型上的一条声明，由 Class 统一登记。
type Attachment func(owner reflect.Type, info *classInfo, entries *[]Entry)

// Class 在结构体类型 T 上登记声明。每个类型只能调用一次，通常放在 init 中：
//
//	func init() {
//		di.Class[UserService](
//			di.Constructor(NewUserService),
//			di.Arg(0, PortToken.Key()),
//			di.Inject("Repo", RepoToken.Key()),
//			di.InjectOptional("Cache", di.KeyOf[Cache]()),
//		)
//	}
//
// 没有显式声明的字段仍然可以通过 `di` 标签声明依赖。
func Class[T any](attachments ...Attachment) {
	declareClass(TypeOf[T](), attachments)
}

// Inject 声明字段 field 依赖 key。
func Inject(field string, key Key) Attachment {
	return dependencyAttachment(Field(field), key, Standard)
}

// InjectOptional 声明字段 field 可选依赖 key。
func InjectOptional(field string, key Key) Attachment {
	return dependencyAttachment(Field(field), key, Optional)
}

// Arg 声明构造函数第 slot 个参数依赖 key。
func Arg(slot int, key Key) Attachment {
	return dependencyAttachment(Slot(slot), key, Standard)
}

// OptionalArg 声明构造函数第 slot 个参数可选依赖 key。
func OptionalArg(slot int, key Key) Attachment {
	return dependencyAttachment(Slot(slot), key, Optional)
}

func dependencyAttachment(member Member, key Key, kind DependencyKind) Attachment {
	return func(owner reflect.Type, info *classInfo, _ *[]Entry) {
		addDependency(info, Dependency{Owner: owner, Member: member, Key: key, Kind: kind})
	}
}

// Constructor 登记类型的构造函数。绑定该类型且未给出实现时使用它。
// fn 必须返回 *T 或 (*T, error)。
func Constructor(fn any) Attachment {
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func || ft.NumOut() == 0 || ft.NumOut() > 2 {
		panic(fmt.Sprintf("di: 无效的构造函数 %T", fn))
	}
	if ft.NumOut() == 2 && ft.Out(1) != errorType {
		panic(fmt.Sprintf("di: 构造函数 %T 的第二个返回值必须是 error", fn))
	}
	return func(owner reflect.Type, info *classInfo, _ *[]Entry) {
		if ownerType(ft.Out(0)) != owner {
			panic(fmt.Sprintf("di: 构造函数 %T 不返回 %v", fn, owner))
		}
		info.ctor = fn
	}
}
