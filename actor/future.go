package actor

import (
	"context"
	"sync"

	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

// Future 只完成一次的结果容器，支持回调与带期限的等待。
type Future[T any] struct {
	done   chan struct{}
	closed atomic.Bool

	mu        sync.Mutex
	result    T
	callbacks []func(T)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete 设置结果并依次调用回调，重复调用被忽略。
func (f *Future[T]) complete(v T) {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	f.mu.Lock()
	f.result = v
	cbs := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(v)
	}
}

// Done 返回在 Future 完成时关闭的通道。
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// OnComplete 注册完成回调；已经完成时在调用者 goroutine 中立即执行。
func (f *Future[T]) OnComplete(cb func(T)) {
	f.mu.Lock()
	select {
	case <-f.done:
		v := f.result
		f.mu.Unlock()
		cb(v)
		return
	default:
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// Wait 阻塞直到 Future 完成或 ctx 结束。
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result, nil
	case <-ctx.Done():
		var zero T
		return zero, errors.Trace(ctx.Err())
	}
}

// Then 在 fa 完成后对结果应用 fn，得到新的 Future。
func Then[A any, B any](fa *Future[A], fn func(A) B) *Future[B] {
	fb := newFuture[B]()
	fa.OnComplete(func(a A) { fb.complete(fn(a)) })
	return fb
}

// All 在全部输入完成后以按输入顺序排列的结果完成。
func All[T any](fs ...*Future[T]) *Future[[]T] {
	out := newFuture[[]T]()
	if len(fs) == 0 {
		out.complete(nil)
		return out
	}
	var (
		mu   sync.Mutex
		left = atomic.NewInt32(int32(len(fs)))
		vals = make([]T, len(fs))
	)
	for i, f := range fs {
		i := i
		f.OnComplete(func(v T) {
			mu.Lock()
			vals[i] = v
			mu.Unlock()
			if left.Dec() == 0 {
				out.complete(vals)
			}
		})
	}
	return out
}
