package actor

import (
	"context"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"uniactor/mailbox"
	"uniactor/message"
)

// RequestHandle 是 Actor 发出的一个同步请求。
type RequestHandle struct {
	self *BaseActor
	id   message.ID
	// entry 已安装的响应处理，Then 之前为 nil
	entry *stackEntry
}

// ID 返回请求 ID。
func (h *RequestHandle) ID() message.ID { return h.id }

// Then 安装响应处理并把它压到行为栈顶。
// 响应没有匹配任何模式时触发同步失败回调；SyncTimeoutMsg 与 SyncExitedMsg 也作为响应交给这里。
func (h *RequestHandle) Then(cases ...Case) *RequestHandle {
	if h.entry != nil {
		h.entry.bhvr = NewBehavior(append(h.entry.bhvr.cases, cases...)...)
		return h
	}
	h.entry = &stackEntry{bhvr: NewBehavior(cases...), awaited: h.id.ResponseID()}
	h.self.stack = append(h.self.stack, h.entry)
	return h
}

// Delegate 把当前消息的回复义务交给这个请求：响应原样（或经 Then 的处理结果）转交给原请求方。
func (h *RequestHandle) Delegate() Result {
	if h.entry == nil {
		h.Then(OnAny(func(_ *Context, m message.Message) Result { return ReplyMessage(m) }))
	}
	return Delegate(h.id)
}

func (a *BaseActor) syncSend(to string, m message.Message, timeout time.Duration) *RequestHandle {
	a.requestSeq++
	id := message.NewRequestID(a.requestSeq)
	h := &RequestHandle{self: a, id: id}
	err := a.system.deliver(to, mailbox.Element{SenderID: a.id, MID: id, Msg: m})
	if err != nil {
		log.Debug("sync request undeliverable", zap.String("actor", a.id), zap.String("to", to), zap.Error(err))
		_ = a.enqueue(mailbox.Element{
			Priority: uint8(PriorityUrgent),
			SenderID: to,
			MID:      id.ResponseID(),
			Msg:      message.Of1(SyncExitedMsg{Source: to, Reason: ExitUnreachable}),
		})
		return h
	}
	if timeout > 0 {
		a.system.clock.AfterFunc(timeout, func() {
			_ = a.enqueue(mailbox.Element{
				Priority: uint8(PriorityUrgent),
				SenderID: a.id,
				MID:      id.ResponseID(),
				Msg:      message.Of1(SyncTimeoutMsg{}),
			})
		})
	}
	return h
}

// RequestResult 是 RequestAsync 的结果。
type RequestResult struct {
	Msg message.Message
	Err error
}

// RequestAsync 从 Actor 外部向 to 发出同步请求，返回在响应到达时完成的 Future。
// 目标退出或无法送达时 Future 以错误完成；调用方负责超时（见 Request）。
func (s *System) RequestAsync(to string, m message.Message) (*Future[RequestResult], message.ID) {
	f := newFuture[RequestResult]()
	b := s.breakerFor(to)
	if !b.Allow(s.clock.Now()) {
		f.complete(RequestResult{Err: ErrCircuitOpen.GenWithStackByArgs(to)})
		return f, 0
	}
	id := message.NewRequestID(s.requestSeq.Inc())
	start := s.clock.Now()
	s.trackPending(id, f)
	f.OnComplete(func(r RequestResult) {
		s.metrics.requestLatency.Observe(s.clock.Since(start).Seconds())
		if r.Err != nil {
			b.OnFailure(s.clock.Now())
		} else {
			b.OnSuccess()
		}
	})
	if err := s.deliver(to, mailbox.Element{SenderID: s.requesterID, MID: id, Msg: m}); err != nil {
		s.completePending(id, RequestResult{Err: errors.Trace(err)})
	}
	return f, id
}

// Request 向 to 发出同步请求并阻塞等待响应，期限由 ctx 控制。
// 目标在处理请求前退出时返回 ErrActorExited。
func (s *System) Request(ctx context.Context, to string, vals ...any) (message.Message, error) {
	m, err := message.Make(vals...)
	if err != nil {
		return message.Message{}, err
	}
	defer m.Release()
	return s.RequestMessage(ctx, to, m)
}

// RequestMessage 同 Request，直接发送已构造好的消息。
func (s *System) RequestMessage(ctx context.Context, to string, m message.Message) (message.Message, error) {
	f, id := s.RequestAsync(to, m)
	r, err := f.Wait(ctx)
	if err != nil {
		if s.completePending(id, RequestResult{Err: ErrRequestTimeout.GenWithStackByArgs(id, to)}) {
			return message.Message{}, ErrRequestTimeout.GenWithStackByArgs(id, to)
		}
		// 响应与超时同时到达时以响应为准
		r, _ = f.Wait(context.Background())
	}
	return r.Msg, r.Err
}

// trackPending 登记一个等待响应的 Future。
func (s *System) trackPending(id message.ID, f *Future[RequestResult]) {
	s.pendingMu.Lock()
	s.pending[id] = f
	s.pendingMu.Unlock()
}

// completePending 以 r 完成 id 对应的 Future，返回是否找到。
func (s *System) completePending(id message.ID, r RequestResult) bool {
	s.pendingMu.Lock()
	f, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()
	if ok {
		f.complete(r)
	}
	return ok
}

// onResponse 处理发往系统请求者的响应元素。
func (s *System) onResponse(e mailbox.Element) {
	if !e.MID.IsResponse() {
		log.Debug("drop non-response element sent to requester", zap.String("from", e.SenderID), zap.Stringer("mid", e.MID))
		e.Msg.Release()
		return
	}
	r := RequestResult{Msg: e.Msg}
	if e.Msg.Size() == 1 && e.Msg.TypeAt(0) == syncExitedType {
		ex := message.MustGet[SyncExitedMsg](e.Msg, 0)
		r = RequestResult{Err: ErrActorExited.GenWithStackByArgs(ex.Source, ex.Reason)}
	}
	if r.Err != nil {
		e.Msg.Release()
	}
	if !s.completePending(e.MID.RequestID(), r) {
		log.Debug("drop expired response", zap.String("from", e.SenderID), zap.Stringer("mid", e.MID))
		r.Msg.Release()
	}
}
