package actor

import (
	"context"
	"testing"
	"time"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestFuture(t *testing.T) {
	f := newFuture[int]()
	doubled := Then(f, func(v int) int { return v * 2 })
	var seen []int
	f.OnComplete(func(v int) { seen = append(seen, v) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	require.Equal(t, context.DeadlineExceeded, errors.Cause(err))

	f.complete(21)
	f.complete(99)
	v, err := doubled.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, []int{21}, seen)

	// 已完成的 Future 立即执行回调
	f.OnComplete(func(v int) { seen = append(seen, v) })
	require.Equal(t, []int{21, 21}, seen)
}

func TestFutureAll(t *testing.T) {
	fs := []*Future[string]{newFuture[string](), newFuture[string](), newFuture[string]()}
	all := All(fs...)
	fs[2].complete("c")
	fs[0].complete("a")
	select {
	case <-all.Done():
		t.Fatal("completed before every input")
	default:
	}
	fs[1].complete("b")
	vals, err := all.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, vals)

	empty, err := All[string]().Wait(context.Background())
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewCircuitBreaker(3, time.Minute)
	require.Equal(t, "closed", b.State())

	b.OnFailure(now)
	b.OnFailure(now)
	require.True(t, b.Allow(now))
	b.OnSuccess()
	b.OnFailure(now)
	b.OnFailure(now)
	require.Equal(t, "closed", b.State())
	b.OnFailure(now)
	require.Equal(t, "open", b.State())
	require.False(t, b.Allow(now.Add(30*time.Second)))

	later := now.Add(time.Minute)
	require.True(t, b.Allow(later))
	require.Equal(t, "half-open", b.State())
	require.False(t, b.Allow(later), "only one trial request in half-open")

	b.OnFailure(later)
	require.Equal(t, "open", b.State())
	require.False(t, b.Allow(later.Add(time.Second)))

	again := later.Add(2 * time.Minute)
	require.True(t, b.Allow(again))
	b.OnSuccess()
	require.Equal(t, "closed", b.State())
	require.True(t, b.Allow(again))
}

func TestCircuitBreakerDefaults(t *testing.T) {
	b := NewCircuitBreaker(0, 0)
	require.Equal(t, uint64(50), b.threshold)
	require.Equal(t, 30*time.Second, b.openFor)
}

func TestStringers(t *testing.T) {
	require.Equal(t, "normal", ExitNormal.String())
	require.Equal(t, "unreachable", ExitUnreachable.String())
	require.Equal(t, "user_defined(2)", (ExitUserDefined + 2).String())
	require.Equal(t, "unknown(3)", ExitReason(3).String())
	require.Equal(t, "stopping", ActorStateStopping.String())
	require.Equal(t, "unknown", ActorState(9).String())
	require.Equal(t, "sync_response", classSyncResponse.String())
}
