package mailbox

// Disposition 是调度器处理一个元素后的结论。
type Disposition uint8

const (
	// Consumed 元素已被某个处理函数消费。
	Consumed Disposition = iota
	// Dropped 元素被永久丢弃。
	Dropped
	// Skipped 元素在当前行为下无法处理，保留原位，稍后再试。
	Skipped
)

func (d Disposition) String() string {
	switch d {
	case Consumed:
		return "consumed"
	case Dropped:
		return "dropped"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Cache 按到达顺序保存被跳过的元素。
//
// 跳过的元素不会被重排：每次 Invoke 都从最早的元素开始尝试，
// 被跳过的元素留在原位，因此剩余元素之间的相对顺序保持不变。
// Cache 只由所属 Actor 的处理循环访问，不加锁。
type Cache struct {
	elems []Element
}

// Push 把一个被跳过的元素追加到缓存尾部。
func (c *Cache) Push(e Element) { c.elems = append(c.elems, e) }

// Len 返回缓存中的元素个数。
func (c *Cache) Len() int { return len(c.elems) }

// Invoke 依次把缓存中的元素交给 fn：
// Consumed 移除该元素并停止；Dropped 归还消息引用、移除该元素并继续；Skipped 保留并前进。
// 返回是否有元素被消费。
func (c *Cache) Invoke(fn func(*Element) Disposition) bool {
	for i := 0; i < len(c.elems); {
		switch fn(&c.elems[i]) {
		case Consumed:
			c.remove(i)
			return true
		case Dropped:
			c.elems[i].Msg.Release()
			c.remove(i)
		default:
			i++
		}
	}
	return false
}

func (c *Cache) remove(i int) {
	copy(c.elems[i:], c.elems[i+1:])
	c.elems[len(c.elems)-1] = Element{}
	c.elems = c.elems[:len(c.elems)-1]
}

// Drain 取出并清空全部缓存元素，按到达顺序返回。
func (c *Cache) Drain() []Element {
	out := c.elems
	c.elems = nil
	return out
}
