package actor

import (
	"context"

	"uniactor/message"
)

// Ref 是对 Actor 的轻量引用，只持有 ID 与所属系统。
// 目标可以在本地，也可以在 SetLocation 登记过的远程节点上。
type Ref struct {
	sys *System
	id  string
}

// Ref 返回指向 id 的引用。
func (s *System) Ref(id string) Ref { return Ref{sys: s, id: id} }

// ID 返回目标 ID。
func (r Ref) ID() string { return r.id }

// Send 匿名发送异步消息。
func (r Ref) Send(vals ...any) error { return r.sys.Send(r.id, vals...) }

// Request 发出同步请求并等待响应。
func (r Ref) Request(ctx context.Context, vals ...any) (message.Message, error) {
	return r.sys.Request(ctx, r.id, vals...)
}

// Alive 报告目标是否是本地正在运行的 Actor。
func (r Ref) Alive() bool {
	_, ok := r.sys.registry.Get(r.id)
	return ok
}
