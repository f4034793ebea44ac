package di

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// classInfo 是某个结构体类型上登记的全部声明。
type classInfo struct {
	deps     []Dependency
	entries  []Entry
	ctor     any
	declared bool
	scanned  bool
}

// store 是进程级的声明表，以结构体类型为键。
var store = struct {
	sync.RWMutex
	classes map[reflect.Type]*classInfo
}{classes: make(map[reflect.Type]*classInfo)}

// ownerType 把指针类型归一为结构体类型。
func ownerType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// classFor 在持有写锁时调用。
func classFor(t reflect.Type) *classInfo {
	info := store.classes[t]
	if info == nil {
		info = &classInfo{}
		store.classes[t] = info
	}
	return info
}

// RegisterDependency 在 owner 的 member 上登记一条依赖声明。
// 同一成员重复登记时以最后一次为准。
func RegisterDependency(owner reflect.Type, member Member, key Key, kind DependencyKind) {
	owner = ownerType(owner)
	store.Lock()
	defer store.Unlock()
	addDependency(classFor(owner), Dependency{Owner: owner, Member: member, Key: key, Kind: kind})
}

func addDependency(info *classInfo, dep Dependency) {
	for i, d := range info.deps {
		if d.Member == dep.Member {
			info.deps[i] = dep
			return
		}
	}
	info.deps = append(info.deps, dep)
}

// DeclarationsForType 返回类型 t 自身（不含嵌入类型）的依赖声明。
func DeclarationsForType(t reflect.Type) []Dependency {
	t = ownerType(t)
	if t == nil {
		return nil
	}
	scanTags(t)

	store.RLock()
	defer store.RUnlock()
	info := store.classes[t]
	if info == nil {
		return nil
	}
	out := make([]Dependency, len(info.deps))
	copy(out, info.deps)
	return out
}

// DeclarationsForInstance 返回实例所属类型的依赖声明。
func DeclarationsForInstance(instance any) []Dependency {
	if instance == nil {
		return nil
	}
	return DeclarationsForType(reflect.TypeOf(instance))
}

// EntriesOf 返回类型 t 上附加的声明条目，包含嵌入结构体上的条目。
func EntriesOf(t reflect.Type) []Entry {
	t = ownerType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	store.RLock()
	defer store.RUnlock()
	var out []Entry
	collectEntries(t, &out, make(map[reflect.Type]bool))
	return out
}

func collectEntries(t reflect.Type, out *[]Entry, seen map[reflect.Type]bool) {
	if seen[t] {
		return
	}
	seen[t] = true
	if info := store.classes[t]; info != nil {
		*out = append(*out, info.entries...)
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if et := ownerType(f.Type); et.Kind() == reflect.Struct {
			collectEntries(et, out, seen)
		}
	}
}

func constructorOf(t reflect.Type) any {
	owner := ownerType(t)
	store.RLock()
	defer store.RUnlock()
	if info := store.classes[owner]; info != nil && info.ctor != nil {
		if reflect.TypeOf(info.ctor).Out(0) == t {
			return info.ctor
		}
	}
	return nil
}

func slotDeclarations(t reflect.Type) map[int]Dependency {
	slots := make(map[int]Dependency)
	for _, d := range DeclarationsForType(t) {
		if d.Member.IsSlot() {
			slots[d.Member.Slot] = d
		}
	}
	return slots
}

// scanTags 解析结构体字段上的 `di` 标签，每个类型只解析一次。
//
//	Repo  Repository       `di:""`          // 必选
//	Cache Cache            `di:"?"`         // 可选
//	Clock di.Lazy[Clock]   `di:",optional"` // 可选，按需解析
//
// 通过 Class 显式登记的同名成员优先于标签。
func scanTags(t reflect.Type) {
	if t.Kind() != reflect.Struct {
		return
	}
	store.RLock()
	info := store.classes[t]
	done := info != nil && info.scanned
	store.RUnlock()
	if done {
		return
	}

	store.Lock()
	defer store.Unlock()
	info = classFor(t)
	if info.scanned {
		return
	}
	info.scanned = true

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("di")
		if !ok || f.Anonymous {
			continue
		}
		kind := Standard
		for _, part := range strings.Split(tag, ",") {
			switch strings.TrimSpace(part) {
			case "?", "optional":
				kind = Optional
			}
		}
		member := Field(f.Name)
		if hasMember(info, member) {
			continue
		}
		info.deps = append(info.deps, Dependency{Owner: t, Member: member, Key: fieldKey(f.Type), Kind: kind})
	}
}

func hasMember(info *classInfo, m Member) bool {
	for _, d := range info.deps {
		if d.Member == m {
			return true
		}
	}
	return false
}

// fieldKey 返回字段默认的类型键；Lazy[T] 字段以 T 为键。
func fieldKey(t reflect.Type) Key {
	if a, ok := reflect.New(t).Interface().(accessor); ok {
		return TypeKey(a.valueType())
	}
	return TypeKey(t)
}

func declareClass(t reflect.Type, attachments []Attachment) {
	t = ownerType(t)
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("di: Class 只能用于结构体类型，得到 %v", t))
	}

	store.Lock()
	defer store.Unlock()
	info := classFor(t)
	if info.declared {
		panic(fmt.Sprintf("di: %v 重复声明", t))
	}
	info.declared = true

	entries := make([]Entry, 0, len(attachments))
	for _, attach := range attachments {
		if attach == nil {
			continue
		}
		attach(t, info, &entries)
	}
	info.entries = append(info.entries[:len(info.entries):len(info.entries)], entries...)
}
