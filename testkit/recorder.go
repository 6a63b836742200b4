package testkit

import (
	"testing"
	"time"

	"uniactor/actor"
	"uniactor/message"
)

// Received 是记录器收到的一条消息。
type Received struct {
	SenderID string
	MID      message.ID
	Msg      message.Message
	// Promise 是这条消息的回复承诺；同步请求需要测试代码自己兑现
	Promise *actor.ResponsePromise
}

// Recorder 是一个把收到的每条消息转交给测试 goroutine 的 Actor。
type Recorder struct {
	t     testing.TB
	actor *actor.BaseActor
	ch    chan Received
	fail  func(string, ...any)
}

// NewRecorder 在 sys 中启动一个记录器，测试结束时自动停止。
func NewRecorder(t testing.TB, sys *actor.System) *Recorder {
	p := &Recorder{t: t, ch: make(chan Received, 1024), fail: t.Fatalf}
	a, err := sys.Spawn(actor.BaseActorOptions{
		Behavior: actor.NewBehavior(actor.OnAny(func(ctx *actor.Context, m message.Message) actor.Result {
			p.ch <- Received{SenderID: ctx.SenderID(), MID: ctx.MessageID(), Msg: m, Promise: ctx.Promise()}
			return actor.Deferred()
		})),
		// 记录器要看到链接 Actor 的退出，而不是跟着退出
		TrapExit: true,
	})
	if err != nil {
		t.Fatalf("spawn recorder: %v", err)
	}
	p.actor = a
	t.Cleanup(a.Stop)
	return p
}

// ID 返回记录器的 Actor ID。
func (p *Recorder) ID() string { return p.actor.ID() }

// Chan 返回接收通道。
func (p *Recorder) Chan() <-chan Received { return p.ch }

// Expect 等待下一条消息，默认最多 1 秒。
func (p *Recorder) Expect(timeout time.Duration) Received {
	p.t.Helper()
	if timeout <= 0 {
		timeout = time.Second
	}
	select {
	case r := <-p.ch:
		return r
	case <-time.After(timeout):
		p.fail("timeout waiting message")
		return Received{}
	}
}

// ExpectNoMessage 确认 timeout（默认 50ms）内没有消息到达。
func (p *Recorder) ExpectNoMessage(timeout time.Duration) {
	p.t.Helper()
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case r := <-p.ch:
		p.fail("unexpected message: %s", r.Msg)
	case <-time.After(timeout):
	}
}

// ExpectValue 等待下一条消息并取出它唯一的 T 类型元素。
func ExpectValue[T any](p *Recorder, timeout time.Duration) T {
	p.t.Helper()
	r := p.Expect(timeout)
	if r.Msg.Size() != 1 {
		p.fail("expected a single element, got %s", r.Msg)
		var zero T
		return zero
	}
	v, err := message.Get[T](r.Msg, 0)
	if err != nil {
		p.fail("unexpected element: %v", err)
	}
	return v
}
