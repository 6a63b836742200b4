package actor

import (
	"time"

	"uniactor/mailbox"
	"uniactor/message"
)

// Context 是处理一条邮箱元素期间的执行上下文。
// 它只能在所属 Actor 的处理循环中使用，不应在处理函数返回后保存；
// 需要稍后回复时，用 Promise 取出承诺再保存承诺本身。
type Context struct {
	self *BaseActor
	// elem 当前元素，启动回调与超时回调中为 nil
	elem *mailbox.Element
	// forward 非空时，当前处理函数的结果转交给这个承诺（委托链）
	forward *ResponsePromise
}

// Self 返回当前 Actor。
func (c *Context) Self() *BaseActor { return c.self }

// System 返回当前 Actor 所属的系统。
func (c *Context) System() *System { return c.self.system }

// SenderID 返回当前消息发送者的 ID，匿名发送时为空。
func (c *Context) SenderID() string {
	if c.elem == nil {
		return ""
	}
	return c.elem.SenderID
}

// MessageID 返回当前消息的 ID。
func (c *Context) MessageID() message.ID {
	if c.elem == nil {
		return 0
	}
	return c.elem.MID
}

// Message 返回当前消息。被消费的元素不会归还引用，处理函数可以直接保留它；
// 修改前存储仍被其他持有者共享时会先复制。
func (c *Context) Message() message.Message {
	if c.elem == nil {
		return message.Empty()
	}
	return c.elem.Msg
}

// fetchPromise 取出当前元素的回复承诺：委托链上的承诺优先，
// 其次是尚未应答的请求，最后是带发送者的异步消息。取出后元素被标记为已应答。
func (c *Context) fetchPromise() *ResponsePromise {
	if c.forward != nil {
		p := c.forward
		c.forward = nil
		return p
	}
	e := c.elem
	if e == nil || e.MID.IsResponse() || e.MID.IsAnswered() || e.SenderID == "" {
		return nil
	}
	if e.MID.IsRequest() {
		p := newPromise(c.self.system, c.self.id, e.SenderID, e.MID.ResponseID())
		e.MID = e.MID.MarkAsAnswered()
		return p
	}
	return newPromise(c.self.system, c.self.id, e.SenderID, 0)
}

// pendingPromise 只在仍欠着一个同步回复时返回承诺。
func (c *Context) pendingPromise() *ResponsePromise {
	if c.forward != nil {
		return c.fetchPromise()
	}
	if e := c.elem; e != nil && e.MID.IsRequest() && !e.MID.IsAnswered() {
		return c.fetchPromise()
	}
	return nil
}

// Promise 取走当前消息的回复承诺，处理函数随后应返回 Deferred()。
// 当前消息不需要回复（或已被取走）时返回一个无效承诺，对它 Deliver 没有效果。
func (c *Context) Promise() *ResponsePromise {
	if p := c.fetchPromise(); p != nil {
		return p
	}
	return &ResponsePromise{}
}

// Send 以当前 Actor 为发送者向 to 发送异步消息。
func (c *Context) Send(to string, vals ...any) error {
	m, err := message.Make(vals...)
	if err != nil {
		return err
	}
	defer m.Release()
	return c.self.system.Tell(c.self, to, m, SendOptions{})
}

// SendMessage 同 Send，直接发送已构造好的消息。
func (c *Context) SendMessage(to string, m message.Message) error {
	return c.self.system.Tell(c.self, to, m, SendOptions{})
}

// DelayedSend 在 d 之后（按系统时钟）以当前 Actor 为发送者发送消息。
func (c *Context) DelayedSend(d time.Duration, to string, vals ...any) error {
	m, err := message.Make(vals...)
	if err != nil {
		return err
	}
	c.self.system.delayedTell(d, c.self.id, to, m)
	m.Release()
	return nil
}

// SyncSend 向 to 发出同步请求，用返回句柄的 Then 安装响应处理。
// 在响应到达之前，当前 Actor 跳过（保留）所有普通消息。
func (c *Context) SyncSend(to string, vals ...any) *RequestHandle {
	m, err := message.Make(vals...)
	if err != nil {
		panic(err)
	}
	defer m.Release()
	return c.self.syncSend(to, m, 0)
}

// SyncSendMessage 同 SyncSend，直接发送已构造好的消息。
func (c *Context) SyncSendMessage(to string, m message.Message) *RequestHandle {
	return c.self.syncSend(to, m, 0)
}

// TimedSyncSend 同 SyncSend，但在 d 之后如果仍未收到响应，
// 以 SyncTimeoutMsg 作为响应交给处理函数。
func (c *Context) TimedSyncSend(d time.Duration, to string, vals ...any) *RequestHandle {
	m, err := message.Make(vals...)
	if err != nil {
		panic(err)
	}
	defer m.Release()
	return c.self.syncSend(to, m, d)
}

// Become 用 b 替换当前的普通行为。
func (c *Context) Become(b *Behavior) { c.self.become(b, true) }

// BecomeKeep 把 b 压在当前行为之上，Unbecome 后恢复旧行为。
func (c *Context) BecomeKeep(b *Behavior) { c.self.become(b, false) }

// Unbecome 弹出最上面的普通行为，行为栈为空时 Actor 正常退出。
func (c *Context) Unbecome() { c.self.unbecome() }

// Quit 让 Actor 在当前消息处理完成后以 reason 退出。
func (c *Context) Quit(reason ExitReason) { c.self.quit(reason) }

// TrapExit 设置是否把链接 Actor 的退出信号当作普通消息处理。
func (c *Context) TrapExit(on bool) { c.self.trapExit = on }

// Link 与 other 建立双向链接，任何一方退出时另一方收到 ExitMsg。
func (c *Context) Link(other string) { c.self.system.link(c.self.id, other) }

// Unlink 解除与 other 的链接。
func (c *Context) Unlink(other string) { c.self.system.unlink(c.self.id, other) }

// Monitor 监视 other，other 退出时当前 Actor 收到 DownMsg。
func (c *Context) Monitor(other string) { c.self.system.monitor(c.self.id, other) }

// Demonitor 取消对 other 的监视。
func (c *Context) Demonitor(other string) { c.self.system.demonitor(c.self.id, other) }
