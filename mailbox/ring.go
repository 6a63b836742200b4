package mailbox

import (
	"sync/atomic"
)

type ringCell[T any] struct {
	// seq 等于 pos 时可写，等于 pos+1 时可读
	seq atomic.Uint64
	val atomic.Pointer[T]
}

// Ring 是有界的多生产者多消费者无锁队列（Vyukov 算法）。
// 每个单元的序列号决定它当前属于生产者还是消费者，head/tail 只通过 CAS 前进。
type Ring[T any] struct {
	mask uint64
	buf  []ringCell[T]
	head atomic.Uint64
	tail atomic.Uint64
}

// NewRing 创建一个容量向上取整到 2 的幂（至少为 2）的环形队列。
func NewRing[T any](capacity uint64) *Ring[T] {
	c := uint64(2)
	for c < capacity {
		c <<= 1
	}
	r := &Ring[T]{mask: c - 1, buf: make([]ringCell[T], c)}
	for i := range r.buf {
		r.buf[i].seq.Store(uint64(i))
	}
	return r
}

// Capacity 返回实际容量。
func (r *Ring[T]) Capacity() uint64 { return uint64(len(r.buf)) }

// Enqueue 入队，队列满时返回 false。
func (r *Ring[T]) Enqueue(v *T) bool {
	for {
		pos := r.tail.Load()
		cell := &r.buf[pos&r.mask]
		switch dif := int64(cell.seq.Load()) - int64(pos); {
		case dif == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				cell.val.Store(v)
				cell.seq.Store(pos + 1)
				return true
			}
		case dif < 0:
			return false
		}
	}
}

// Dequeue 出队，队列空时返回 nil 和 false。
func (r *Ring[T]) Dequeue() (*T, bool) {
	for {
		pos := r.head.Load()
		cell := &r.buf[pos&r.mask]
		switch dif := int64(cell.seq.Load()) - int64(pos+1); {
		case dif == 0:
			if r.head.CompareAndSwap(pos, pos+1) {
				v := cell.val.Swap(nil)
				cell.seq.Store(pos + r.mask + 1)
				return v, true
			}
		case dif < 0:
			return nil, false
		}
	}
}
