package mailbox

import (
	"sync/atomic"
)

type segment[T any] struct {
	q    *Ring[T]
	next atomic.Pointer[segment[T]]
}

// SegmentedQueue 把多个 Ring 串成链表：尾段写满且未超过段数上限时追加新段，
// 头段读空后切换到下一段。内存随负载增长，不需要一次性预分配。
type SegmentedQueue[T any] struct {
	head   atomic.Pointer[segment[T]]
	tail   atomic.Pointer[segment[T]]
	segCap uint64
	segs   atomic.Uint64
	maxSeg uint64
}

// NewSegmentedQueue 创建分段队列，maxSegments 为 0 时按 1 处理。
func NewSegmentedQueue[T any](segmentCapacity, maxSegments uint64) *SegmentedQueue[T] {
	if maxSegments == 0 {
		maxSegments = 1
	}
	first := &segment[T]{q: NewRing[T](segmentCapacity)}
	q := &SegmentedQueue[T]{segCap: segmentCapacity, maxSeg: maxSegments}
	q.head.Store(first)
	q.tail.Store(first)
	q.segs.Store(1)
	return q
}

// Capacity 返回段容量乘以段数上限。
func (q *SegmentedQueue[T]) Capacity() uint64 { return q.segCap * q.maxSeg }

// LenSegments 返回当前段数。
func (q *SegmentedQueue[T]) LenSegments() uint64 { return q.segs.Load() }

// Enqueue 入队；所有段都满且不能再扩展时返回 false。
func (q *SegmentedQueue[T]) Enqueue(v *T) bool {
	for {
		t := q.tail.Load()
		if t.q.Enqueue(v) {
			return true
		}
		if q.segs.Load() >= q.maxSeg {
			return false
		}
		if n := t.next.Load(); n != nil {
			q.tail.CompareAndSwap(t, n)
			continue
		}
		ns := &segment[T]{q: NewRing[T](q.segCap)}
		if t.next.CompareAndSwap(nil, ns) {
			q.tail.CompareAndSwap(t, ns)
			q.segs.Add(1)
		}
	}
}

// Dequeue 出队；当前段读空时前进到下一段。
func (q *SegmentedQueue[T]) Dequeue() (*T, bool) {
	for {
		h := q.head.Load()
		if v, ok := h.q.Dequeue(); ok {
			return v, true
		}
		n := h.next.Load()
		if n == nil {
			return nil, false
		}
		if q.head.CompareAndSwap(h, n) {
			q.segs.Add(^uint64(0))
		}
	}
}
