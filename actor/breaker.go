package actor

import (
	"time"

	"go.uber.org/atomic"
)

type breakerState uint32

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker 是基于连续失败计数的断路器，用于远程节点与外部请求的目标。
//
//   - closed -> open：连续失败达到阈值
//   - open -> half-open：打开时长超过 openFor
//   - half-open：只放行一个探测请求，成功则关闭，失败则重新打开
//
// 时间由调用方传入，便于用模拟时钟测试。
type CircuitBreaker struct {
	failures      atomic.Uint64
	state         atomic.Uint32
	openedAt      atomic.Int64
	halfOpenTrial atomic.Bool

	threshold uint64
	openFor   time.Duration
}

// NewCircuitBreaker 创建断路器，零值参数取默认值（阈值 50，打开 30s）。
func NewCircuitBreaker(threshold uint64, openFor time.Duration) *CircuitBreaker {
	if threshold == 0 {
		threshold = 50
	}
	if openFor == 0 {
		openFor = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, openFor: openFor}
}

// State 返回当前状态的名字。
func (b *CircuitBreaker) State() string { return breakerState(b.state.Load()).String() }

// Allow 报告在 now 时刻是否放行一个请求。
func (b *CircuitBreaker) Allow(now time.Time) bool {
	switch breakerState(b.state.Load()) {
	case breakerClosed:
		return true
	case breakerOpen:
		if now.Sub(time.Unix(0, b.openedAt.Load())) < b.openFor {
			return false
		}
		if b.state.CompareAndSwap(uint32(breakerOpen), uint32(breakerHalfOpen)) {
			b.halfOpenTrial.Store(false)
		}
		return b.halfOpenTrial.CompareAndSwap(false, true)
	case breakerHalfOpen:
		return b.halfOpenTrial.CompareAndSwap(false, true)
	}
	return false
}

// OnSuccess 记录一次成功并关闭断路器。
func (b *CircuitBreaker) OnSuccess() {
	b.failures.Store(0)
	b.state.Store(uint32(breakerClosed))
	b.halfOpenTrial.Store(false)
}

// OnFailure 记录一次失败；半开状态下的失败立即重新打开。
func (b *CircuitBreaker) OnFailure(now time.Time) {
	if breakerState(b.state.Load()) == breakerHalfOpen || b.failures.Inc() >= b.threshold {
		b.openedAt.Store(now.UnixNano())
		b.state.Store(uint32(breakerOpen))
		b.halfOpenTrial.Store(false)
	}
}
