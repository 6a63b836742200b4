package uniform

import (
	"reflect"
	"sort"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// registry 是进程级的类型注册表：Go 类型与规范名都映射到同一个描述符。
//
// registry 不加锁。约定分两个阶段：先在 init 或启动阶段完成全部 Announce，
// 然后才开始并发查找（spawn actor、收发消息）。两个阶段交叠属于使用错误。
type registry struct {
	byType map[reflect.Type]TypeInfo
	byName map[string]TypeInfo
}

var global = &registry{
	byType: make(map[reflect.Type]TypeInfo),
	byName: make(map[string]TypeInfo),
}

// Announce 把 ti 注册为类型 t 的规范描述符并返回当前生效的描述符。
//
// 先注册者胜出：t 已有描述符时，直接返回已有的那个，新的 ti 被丢弃且不可再达。
// 另一个类型已经占用了同名描述符属于编程错误，直接 panic。
func Announce(t reflect.Type, ti TypeInfo) TypeInfo {
	if existing, ok := global.byType[t]; ok {
		log.Debug("type already announced, keep the first descriptor",
			zap.String("name", existing.Name()), zap.Stringer("type", t))
		return existing
	}
	if ti.Type() != t {
		log.Panic("descriptor does not describe the announced type",
			zap.String("name", ti.Name()), zap.Stringer("descriptor", ti.Type()), zap.Stringer("type", t))
	}
	if other, ok := global.byName[ti.Name()]; ok {
		log.Panic("type name already taken by another type",
			zap.String("name", ti.Name()), zap.Stringer("existing", other.Type()), zap.Stringer("type", t))
	}
	global.byType[t] = ti
	global.byName[ti.Name()] = ti
	return ti
}

// AnnounceType 是 Announce 的泛型写法。
func AnnounceType[T any](ti TypeInfo) TypeInfo {
	return Announce(reflect.TypeOf((*T)(nil)).Elem(), ti)
}

// AnnounceDefault 用默认策略注册 T。
func AnnounceDefault[T any]() TypeInfo {
	return AnnounceType[T](Default[T]())
}

// ByType 按 Go 类型查找描述符。
func ByType(t reflect.Type) (TypeInfo, error) {
	if ti, ok := lookupType(t); ok {
		return ti, nil
	}
	return nil, ErrTypeNotAnnounced.GenWithStackByArgs(CanonicalName(t))
}

// ByName 按规范名查找描述符。
func ByName(name string) (TypeInfo, error) {
	if ti, ok := global.byName[name]; ok {
		return ti, nil
	}
	return nil, ErrTypeNotAnnounced.GenWithStackByArgs(name)
}

// Lookup 返回 T 的描述符。
func Lookup[T any]() (TypeInfo, error) {
	return ByType(reflect.TypeOf((*T)(nil)).Elem())
}

// TypeID 返回 T 的描述符；T 未注册属于不可恢复的错误，直接 panic。
// 同一个 T 每次得到同一个指针。
func TypeID[T any]() TypeInfo {
	ti, err := Lookup[T]()
	if err != nil {
		panic(err)
	}
	return ti
}

// Instances 返回全部已注册的描述符，按名字排序。
func Instances() []TypeInfo {
	out := make([]TypeInfo, 0, len(global.byName))
	for _, ti := range global.byName {
		out = append(out, ti)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func lookupType(t reflect.Type) (TypeInfo, bool) {
	ti, ok := global.byType[t]
	return ti, ok
}
