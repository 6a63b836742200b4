package actor

import (
	"time"

	"uniactor/message"
	"uniactor/uniform"
)

// ResultKind 区分处理函数返回结果的三种形态。
type ResultKind uint8

const (
	// ResultAnswered 直接给出回复（可以为空）。
	ResultAnswered ResultKind = iota + 1
	// ResultDelegated 把回复义务交给本 Actor 另一个尚未完成的同步请求。
	ResultDelegated
	// ResultDeferred 处理函数已经通过 Context.Promise 取走承诺，稍后自行回复。
	ResultDeferred
)

func (k ResultKind) String() string {
	switch k {
	case ResultAnswered:
		return "answered"
	case ResultDelegated:
		return "delegated"
	case ResultDeferred:
		return "deferred"
	}
	return "invalid"
}

// Result 是处理函数的返回值。零值不是合法结果。
type Result struct {
	kind     ResultKind
	msg      message.Message
	delegate message.ID
}

// Kind 返回结果形态。
func (r Result) Kind() ResultKind { return r.kind }

// Message 返回 ResultAnswered 结果携带的回复。
func (r Result) Message() message.Message { return r.msg }

// Reply 用给定的值构造回复；值必须是已注册的类型，否则 panic。
func Reply(vals ...any) Result {
	return Result{kind: ResultAnswered, msg: message.MustMake(vals...)}
}

// ReplyMessage 直接以 m 作为回复。
func ReplyMessage(m message.Message) Result {
	return Result{kind: ResultAnswered, msg: m}
}

// NoReply 表示处理完成但没有回复内容。
// 如果当前消息是尚未应答的同步请求，会自动回一个空消息。
func NoReply() Result { return Result{kind: ResultAnswered} }

// Delegate 表示当前请求的回复由本 Actor 发出的请求 id 的响应处理结果决定。
func Delegate(id message.ID) Result {
	return Result{kind: ResultDelegated, delegate: id.RequestID()}
}

// Deferred 表示回复将通过 Context.Promise 取得的承诺在稍后送达。
func Deferred() Result { return Result{kind: ResultDeferred} }

// Case 是行为中的一条模式：元素类型序列、可选的守卫和处理函数。
type Case struct {
	types []uniform.TypeInfo
	any   bool
	guard func(message.Message) bool
	fn    func(*Context, message.Message) Result
}

// When 为模式附加守卫，守卫返回 false 时视为不匹配。
func (c Case) When(guard func(message.Message) bool) Case {
	c.guard = guard
	return c
}

func (c Case) match(m message.Message) bool {
	if !c.any && !m.Match(c.types...) {
		return false
	}
	return c.guard == nil || c.guard(m)
}

// On0 匹配空消息。
func On0(fn func(*Context) Result) Case {
	return Case{fn: func(ctx *Context, _ message.Message) Result { return fn(ctx) }}
}

// On1 匹配恰好一个 A 类型元素的消息。A 必须已注册。
func On1[A any](fn func(*Context, A) Result) Case {
	return Case{
		types: []uniform.TypeInfo{uniform.TypeID[A]()},
		fn: func(ctx *Context, m message.Message) Result {
			return fn(ctx, *m.At(0).(*A))
		},
	}
}

// On2 匹配 (A, B) 两个元素的消息。
func On2[A, B any](fn func(*Context, A, B) Result) Case {
	return Case{
		types: []uniform.TypeInfo{uniform.TypeID[A](), uniform.TypeID[B]()},
		fn: func(ctx *Context, m message.Message) Result {
			return fn(ctx, *m.At(0).(*A), *m.At(1).(*B))
		},
	}
}

// On3 匹配 (A, B, C) 三个元素的消息。
func On3[A, B, C any](fn func(*Context, A, B, C) Result) Case {
	return Case{
		types: []uniform.TypeInfo{uniform.TypeID[A](), uniform.TypeID[B](), uniform.TypeID[C]()},
		fn: func(ctx *Context, m message.Message) Result {
			return fn(ctx, *m.At(0).(*A), *m.At(1).(*B), *m.At(2).(*C))
		},
	}
}

// OnAny 匹配任意消息。
func OnAny(fn func(*Context, message.Message) Result) Case {
	return Case{any: true, fn: fn}
}

// Behavior 是有序的模式列表，第一个匹配的模式胜出，可带一个空闲超时。
type Behavior struct {
	cases     []Case
	timeout   time.Duration
	onTimeout func(*Context)
}

// NewBehavior 用给定的模式构造行为。
func NewBehavior(cases ...Case) *Behavior {
	return &Behavior{cases: cases}
}

// After 设置空闲超时：d 时间内没有消费任何消息时调用 fn。
// 每消费一条消息都会重新计时，旧的超时自动失效。
func (b *Behavior) After(d time.Duration, fn func(*Context)) *Behavior {
	b.timeout = d
	b.onTimeout = fn
	return b
}

// Timeout 返回空闲超时，0 表示没有设置。
func (b *Behavior) Timeout() time.Duration {
	if b.onTimeout == nil {
		return 0
	}
	return b.timeout
}

func (b *Behavior) invoke(ctx *Context, m message.Message) (Result, bool) {
	for _, c := range b.cases {
		if !c.match(m) {
			continue
		}
		r := c.fn(ctx, m)
		if r.kind == 0 {
			r.kind = ResultAnswered
		}
		return r, true
	}
	return Result{}, false
}
