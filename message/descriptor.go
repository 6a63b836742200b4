package message

import (
	"github.com/pingcap/errors"

	"uniactor/uniform"
)

// DescriptorName 是消息在线上的类型名。
const DescriptorName = "@<>"

// messageImpl 把消息写成一个元素序列，每个元素是自描述的对象。
type messageImpl struct{}

func (messageImpl) Serialize(m *Message, sink uniform.Serializer) error {
	n := m.Size()
	return uniform.WithSequence(sink, n, func() error {
		for i := 0; i < n; i++ {
			e := m.t.elems[i]
			if err := e.ti.Serialize(e.ptr, sink); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
}

func (messageImpl) Deserialize(m *Message, source uniform.Deserializer) error {
	return uniform.ReadSequence(source, func(n int) error {
		elems := make([]element, 0, uniform.PreallocHint(n))
		for i := 0; i < n; i++ {
			o, err := uniform.ReadAny(source)
			if err != nil {
				return errors.Trace(err)
			}
			elems = append(elems, element{ti: o.Type, ptr: o.Value})
		}
		m.Release()
		if n > 0 {
			*m = wrap(newTuple(elems))
		}
		return nil
	})
}

func (messageImpl) Equal(a, b *Message) bool { return a.Equal(*b) }

// Clone 对消息而言是共享存储，不做深拷贝。
func (messageImpl) Clone(dst, src *Message) { *dst = src.Copy() }

var descriptor = uniform.AnnounceType[Message](uniform.Custom[Message](DescriptorName, messageImpl{}))

// Descriptor 返回 Message 的描述符。
func Descriptor() uniform.TypeInfo { return descriptor }
