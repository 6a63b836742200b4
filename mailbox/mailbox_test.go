package mailbox

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"uniactor/message"
)

func el(v any) Element {
	return Element{Msg: message.MustMake(v)}
}

func text(e Element) string {
	return message.MustGet[string](e.Msg, 0)
}

func TestRingBasic(t *testing.T) {
	r := NewRing[int](1)
	if r.Capacity() != 2 {
		t.Fatalf("capacity: %d", r.Capacity())
	}
	a, b, c := 1, 2, 3
	if !r.Enqueue(&a) || !r.Enqueue(&b) {
		t.Fatalf("enqueue failed")
	}
	if r.Enqueue(&c) {
		t.Fatalf("ring should be full")
	}
	if v, ok := r.Dequeue(); !ok || *v != 1 {
		t.Fatalf("deq1: %v %v", v, ok)
	}
	if v, ok := r.Dequeue(); !ok || *v != 2 {
		t.Fatalf("deq2: %v %v", v, ok)
	}
	if _, ok := r.Dequeue(); ok {
		t.Fatalf("should empty")
	}
}

func TestSegmentedQueueGrow(t *testing.T) {
	q := NewSegmentedQueue[int](2, 2)
	if q.Capacity() != 4 {
		t.Fatalf("capacity: %d", q.Capacity())
	}
	vals := []int{1, 2, 3}
	for i := range vals {
		if !q.Enqueue(&vals[i]) {
			t.Fatalf("enqueue %d", i)
		}
	}
	if q.LenSegments() != 2 {
		t.Fatalf("expected grow, segments=%d", q.LenSegments())
	}
	for _, want := range vals {
		if v, ok := q.Dequeue(); !ok || *v != want {
			t.Fatalf("want %d got %v", want, v)
		}
	}
	if q.LenSegments() != 1 {
		t.Fatalf("expected shrink, segments=%d", q.LenSegments())
	}
}

func TestSegmentedQueueMaxSegmentsDefault(t *testing.T) {
	q := NewSegmentedQueue[int](2, 0)
	if q.LenSegments() != 1 || q.Capacity() != 2 {
		t.Fatalf("expected 1 segment")
	}
}

func TestSegmentedQueueFullNoGrow(t *testing.T) {
	q := NewSegmentedQueue[int](1, 1)
	a, b, c := 1, 2, 3
	if !q.Enqueue(&a) || !q.Enqueue(&b) {
		t.Fatalf("enqueue")
	}
	if q.Enqueue(&c) {
		t.Fatalf("expected full")
	}
}

func TestSegmentedQueueFollowsExistingNext(t *testing.T) {
	q := NewSegmentedQueue[int](1, 2)
	a, b, c := 1, 2, 3
	_ = q.Enqueue(&a)
	_ = q.Enqueue(&b)
	tail := q.tail.Load()
	tail.next.Store(&segment[int]{q: NewRing[int](1)})
	if !q.Enqueue(&c) {
		t.Fatalf("expected enqueue into the linked segment")
	}
	if q.tail.Load() == tail {
		t.Fatalf("tail should advance")
	}
}

func TestMailboxPriority(t *testing.T) {
	m := New(Options{Capacity: 4, UrgentCapacity: 4, MaxSegments: 1})
	defer m.Close()
	_ = m.Push(el("n1"))
	u := el("u1")
	u.Priority = 1
	_ = m.Push(u)
	_ = m.Push(el("n2"))
	for _, want := range []string{"u1", "n1", "n2"} {
		e, ok := m.Pop()
		if !ok || text(e) != want {
			t.Fatalf("want %s got %v %v", want, e.Msg, ok)
		}
	}
}

func TestMailboxElementMetadata(t *testing.T) {
	m := New(Options{})
	defer m.Close()
	e := el("req")
	e.SenderID = "sender"
	e.MID = message.NewRequestID(7)
	_ = m.Push(e)
	got, ok := m.Pop()
	if !ok || got.SenderID != "sender" || got.MID != message.NewRequestID(7) {
		t.Fatalf("metadata lost: %+v", got)
	}
}

func TestMailboxClose(t *testing.T) {
	m := New(Options{Capacity: 2, UrgentCapacity: 2, MaxSegments: 1, Policy: BackpressureDropNewest})
	if m.IsClosed() {
		t.Fatalf("should be open")
	}
	m.Close()
	m.Close()
	select {
	case <-m.Closed():
	default:
		t.Fatalf("closed channel not closed")
	}
	if err := m.Push(el("x")); !ErrMailboxClosed.Equal(err) {
		t.Fatalf("expected closed err, got %v", err)
	}
	if m.Wait() {
		t.Fatalf("wait should stop")
	}
}

func TestMailboxBlockPolicy(t *testing.T) {
	m := New(Options{Capacity: 2, UrgentCapacity: 2, MaxSegments: 1, Policy: BackpressureBlock})
	defer m.Close()
	_ = m.Push(el(int32(1)))
	_ = m.Push(el(int32(2)))
	done := make(chan struct{})
	go func() {
		_ = m.Push(el(int32(3)))
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	m.Pop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("blocked too long")
	}
}

func TestMailboxBlockCloseDuringWait(t *testing.T) {
	m := New(Options{Capacity: 2, UrgentCapacity: 2, MaxSegments: 1, Policy: BackpressureBlock})
	_ = m.Push(el(int32(1)))
	_ = m.Push(el(int32(2)))
	errCh := make(chan error, 1)
	go func() { errCh <- m.Push(el(int32(3))) }()
	time.Sleep(10 * time.Millisecond)
	m.Close()
	select {
	case err := <-errCh:
		if !ErrMailboxClosed.Equal(err) {
			t.Fatalf("unexpected: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout")
	}
}

func TestMailboxDefaultsAndLen(t *testing.T) {
	m := New(Options{})
	defer m.Close()
	if m.Len() != 0 {
		t.Fatalf("expected 0 len")
	}
	_ = m.Push(el("x"))
	if m.Len() != 1 {
		t.Fatalf("expected len 1")
	}
	m.Pop()
	if m.Len() != 0 {
		t.Fatalf("expected len 0")
	}
	if _, ok := m.Pop(); ok {
		t.Fatalf("expected empty pop")
	}
}

func TestMailboxPersistHook(t *testing.T) {
	var records [][]byte
	m := New(Options{
		Persist: func(b []byte) error {
			records = append(records, b)
			return nil
		},
		EncodeForPersist: func(e *Element) ([]byte, bool) { return []byte(text(*e)), true },
	})
	defer m.Close()
	p := el("p")
	p.Persist = true
	_ = m.Push(p)
	_ = m.Push(el("not persisted"))
	if len(records) != 1 || string(records[0]) != "p" {
		t.Fatalf("unexpected records: %q", records)
	}
}

func TestMailboxPersistEncodeSkipped(t *testing.T) {
	var called bool
	m := New(Options{
		Persist:          func([]byte) error { called = true; return nil },
		EncodeForPersist: func(*Element) ([]byte, bool) { return nil, false },
	})
	defer m.Close()
	e := el("x")
	e.Persist = true
	_ = m.Push(e)
	if called {
		t.Fatalf("should not call persist")
	}
}

func TestMailboxErrors(t *testing.T) {
	m := New(Options{Capacity: 1, UrgentCapacity: 1, MaxSegments: 1, Policy: BackpressureExpand})
	defer m.Close()
	_ = m.Push(el(int32(1)))
	_ = m.Push(el(int32(2)))
	if err := m.Push(el(int32(3))); !ErrMailboxFull.Equal(err) {
		t.Fatalf("expected full error, got %v", err)
	}
	m2 := New(Options{Capacity: 1, UrgentCapacity: 1, MaxSegments: 1, Policy: 99})
	defer m2.Close()
	if err := m2.Push(el(int32(1))); !ErrUnknownPolicy.Equal(err) {
		t.Fatalf("expected policy error, got %v", err)
	}
}

func TestMailboxWaitNotify(t *testing.T) {
	m := New(Options{Capacity: 2, UrgentCapacity: 2, MaxSegments: 1})
	defer m.Close()
	done := make(chan bool, 1)
	go func() { done <- m.Wait() }()
	_ = m.Push(el("x"))
	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("expected ok")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout")
	}
}

func TestMailboxDropNewestWhenFull(t *testing.T) {
	m := New(Options{Capacity: 1, UrgentCapacity: 1, MaxSegments: 1, Policy: BackpressureDropNewest})
	defer m.Close()
	for i := int32(0); i < 3; i++ {
		if err := m.Push(el(i)); err != nil {
			t.Fatalf("drop-newest should not fail: %v", err)
		}
	}
	if m.Len() != 2 {
		t.Fatalf("expected len 2, got %d", m.Len())
	}
}

func TestRingConcurrent(t *testing.T) {
	r := NewRing[int](1024)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v := j
				for !r.Enqueue(&v) {
				}
			}
		}()
	}
	var consumed atomic.Int64
	for k := 0; k < 2; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for consumed.Load() < 4000 {
				if _, ok := r.Dequeue(); ok {
					consumed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	if consumed.Load() != 4000 {
		t.Fatalf("consumed %d", consumed.Load())
	}
}

func TestCacheInvokeOrdering(t *testing.T) {
	var c Cache
	for _, s := range []string{"a", "b", "c", "d"} {
		c.Push(el(s))
	}
	var seen []string
	// a 被跳过，b 被丢弃，c 被消费，d 不会被访问
	consumed := c.Invoke(func(e *Element) Disposition {
		s := text(*e)
		seen = append(seen, s)
		switch s {
		case "a":
			return Skipped
		case "b":
			return Dropped
		}
		return Consumed
	})
	if !consumed {
		t.Fatalf("expected consumption")
	}
	if len(seen) != 3 || seen[2] != "c" {
		t.Fatalf("unexpected visit order: %v", seen)
	}
	if c.Len() != 2 {
		t.Fatalf("expected a and d left, len=%d", c.Len())
	}
	rest := c.Drain()
	if text(rest[0]) != "a" || text(rest[1]) != "d" {
		t.Fatalf("order not preserved")
	}
	if c.Len() != 0 {
		t.Fatalf("drain should empty cache")
	}
}

func TestCacheInvokeAllSkipped(t *testing.T) {
	var c Cache
	c.Push(el("a"))
	c.Push(el("b"))
	calls := 0
	if c.Invoke(func(*Element) Disposition { calls++; return Skipped }) {
		t.Fatalf("nothing should be consumed")
	}
	if calls != 2 || c.Len() != 2 {
		t.Fatalf("calls=%d len=%d", calls, c.Len())
	}
	if c.Invoke(func(*Element) Disposition { return Dropped }) || c.Len() != 0 {
		t.Fatalf("drop should empty cache")
	}
	if Consumed.String() != "consumed" || Disposition(9).String() != "unknown" {
		t.Fatalf("disposition names")
	}
}
