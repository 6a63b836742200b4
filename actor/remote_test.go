package actor

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"uniactor/message"
)

func newRemoteSystem(t *testing.T, opts ...Option) *System {
	t.Helper()
	sys := newTestSystem(t, opts...)
	require.NoError(t, sys.EnableRemote("127.0.0.1:0"))
	require.NotEmpty(t, sys.RemoteAddr())
	return sys
}

func TestRemoteRequestAndReply(t *testing.T) {
	sysA, sysB := newRemoteSystem(t), newRemoteSystem(t)
	spawn(t, sysB, BaseActorOptions{ID: "echo-b", Behavior: echo("@b")})

	sysA.SetLocation("echo-b", sysB.RemoteAddr())
	m, err := request(t, sysA, "echo-b", "hi")
	require.NoError(t, err)
	require.Equal(t, "hi@b", message.MustGet[string](m, 0))

	// 回复路径上 B 学到了 A 的请求者位置
	addr, ok := sysB.locationOf(sysA.requesterID)
	require.True(t, ok)
	require.Equal(t, sysA.RemoteAddr(), addr)
}

func TestRemoteSyncSendBetweenActors(t *testing.T) {
	sysA, sysB := newRemoteSystem(t), newRemoteSystem(t)
	spawn(t, sysB, BaseActorOptions{ID: "echo-b", Behavior: echo("@b")})
	sysA.SetLocation("echo-b", sysB.RemoteAddr())

	got := make(chan string, 1)
	a := spawn(t, sysA, BaseActorOptions{Behavior: NewBehavior(
		On1(func(ctx *Context, s string) Result {
			ctx.SyncSend("echo-b", s).Then(On1(func(_ *Context, r string) Result {
				got <- r
				return NoReply()
			}))
			return NoReply()
		}),
	)})
	require.NoError(t, sysA.Send(a.ID(), "yo"))
	select {
	case r := <-got:
		require.Equal(t, "yo@b", r)
	case <-time.After(5 * time.Second):
		t.Fatal("no remote response")
	}
}

func TestRemoteTellWithPriority(t *testing.T) {
	sysA, sysB := newRemoteSystem(t), newRemoteSystem(t)
	got := make(chan message.Message, 1)
	spawn(t, sysB, BaseActorOptions{ID: "sink", Behavior: NewBehavior(
		OnAny(func(_ *Context, m message.Message) Result {
			got <- m
			return NoReply()
		}),
	)})
	sysA.SetLocation("sink", sysB.RemoteAddr())
	require.NoError(t, sysA.Tell(nil, "sink", message.MustMake("k", int64(3), []byte{1, 2}), SendOptions{Priority: PriorityUrgent}))
	m := <-got
	require.Equal(t, "k", message.MustGet[string](m, 0))
	require.Equal(t, int64(3), message.MustGet[int64](m, 1))
	require.Equal(t, []byte{1, 2}, message.MustGet[[]byte](m, 2))
}

func TestRemoteRejectsUnknownTarget(t *testing.T) {
	sysA, sysB := newRemoteSystem(t), newRemoteSystem(t)
	sysA.SetLocation("ghost", sysB.RemoteAddr())
	err := sysA.Send("ghost", "boo")
	require.True(t, ErrRemoteRejected.Equal(err), "%v", err)

	sysA.SetLocation("ghost", "")
	_, ok := sysA.locationOf("ghost")
	require.False(t, ok)
}

func TestRemoteDisabled(t *testing.T) {
	sys := newTestSystem(t)
	sys.SetLocation("far", "127.0.0.1:1")
	err := sys.Send("far", "x")
	require.True(t, ErrRemoteDisabled.Equal(err), "%v", err)
	require.NoError(t, sys.StopRemote())
}

func TestRemoteBreakerOpensForDeadPeer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := lis.Addr().String()
	require.NoError(t, lis.Close())

	sys := newRemoteSystem(t, WithBreaker(1, time.Minute), WithDeliverTimeout(time.Second))
	sys.SetLocation("lost", dead)
	require.Error(t, sys.Send("lost", "x"))
	require.Equal(t, 1.0, testutil.ToFloat64(sys.metrics.remoteFailures.WithLabelValues(dead)))
	require.Equal(t, "open", sys.breakerFor("peer:"+dead).State())

	err = sys.Send("lost", "x")
	require.True(t, ErrCircuitOpen.Equal(err), "%v", err)
	require.Equal(t, 1.0, testutil.ToFloat64(sys.metrics.remoteFailures.WithLabelValues(dead)))
}

func TestEnableRemoteTwice(t *testing.T) {
	sys := newRemoteSystem(t)
	addr := sys.RemoteAddr()
	require.NoError(t, sys.EnableRemote("127.0.0.1:0"))
	require.Equal(t, addr, sys.RemoteAddr())
	require.NoError(t, sys.StopRemote())
	require.Empty(t, sys.RemoteAddr())
	require.NoError(t, sys.StopRemote())
}
