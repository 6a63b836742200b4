package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"uniactor/actor"
	"uniactor/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRecorder(t *testing.T) {
	sys := actor.NewSystem()
	defer sys.Shutdown()
	p := NewRecorder(t, sys)

	if err := sys.Send(p.ID(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := ExpectValue[string](p, time.Second); got != "hello" {
		t.Fatalf("unexpected: %q", got)
	}
	p.ExpectNoMessage(10 * time.Millisecond)

	var failed int
	p.fail = func(string, ...any) { failed++ }
	if r := p.Expect(5 * time.Millisecond); !r.Msg.Empty() || failed != 1 {
		t.Fatalf("expected timeout failure")
	}
	_ = sys.Send(p.ID(), int64(1), int64(2))
	_ = ExpectValue[int64](p, 0)
	if failed != 2 {
		t.Fatalf("expected size failure")
	}
	_ = sys.Send(p.ID(), "x")
	p.ExpectNoMessage(time.Second)
	if failed != 3 {
		t.Fatalf("expected unexpected-message failure")
	}
}

func TestRecorderAnswersRequest(t *testing.T) {
	sys := actor.NewSystem()
	defer sys.Shutdown()
	p := NewRecorder(t, sys)

	go func() {
		r := p.Expect(time.Second)
		if !r.MID.IsRequest() {
			t.Errorf("expected request id, got %s", r.MID)
		}
		r.Promise.Deliver(message.MustMake("pong"))
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := sys.Request(ctx, p.ID(), "ping")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if v := message.MustGet[string](m, 0); v != "pong" {
		t.Fatalf("unexpected reply: %s", m)
	}
}

func TestChaos(t *testing.T) {
	sys := actor.NewSystem()
	defer sys.Shutdown()
	p := NewRecorder(t, sys)

	lossy := (&Chaos{DropProbability: 1, Seed: 7}).Send(sys.Send)
	if err := lossy(p.ID(), "lost"); !ErrChaosDropped.Equal(err) {
		t.Fatalf("expected dropped, got %v", err)
	}
	p.ExpectNoMessage(10 * time.Millisecond)

	clean := (&Chaos{Seed: 7}).Send(sys.Send)
	if err := clean(p.ID(), "kept"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := ExpectValue[string](p, time.Second); got != "kept" {
		t.Fatalf("unexpected: %q", got)
	}

	clk := clock.NewMock()
	slow := &Chaos{MaxDelay: time.Second, Clock: clk, Seed: 7}
	var done atomic.Bool
	go func() {
		_ = slow.Apply(func() error { done.Store(true); return nil })
	}()
	deadline := time.Now().Add(time.Second)
	for !done.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("delayed operation never ran")
		}
		clk.Add(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
}
