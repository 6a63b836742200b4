package actor

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"uniactor/mailbox"
	"uniactor/message"
)

// msgClass 是调度前根据内容与消息 ID 对元素做的分类。
type msgClass uint8

const (
	classNormalExit msgClass = iota + 1
	classNonNormalExit
	classExpiredTimeout
	classInactiveTimeout
	classExpiredSyncResponse
	classTimeout
	classTimeoutResponse
	classSyncResponse
	classOrdinary
)

var classNames = [...]string{
	classNormalExit:          "normal_exit",
	classNonNormalExit:       "non_normal_exit",
	classExpiredTimeout:      "expired_timeout",
	classInactiveTimeout:     "inactive_timeout",
	classExpiredSyncResponse: "expired_sync_response",
	classTimeout:             "timeout",
	classTimeoutResponse:     "timeout_response",
	classSyncResponse:        "sync_response",
	classOrdinary:            "ordinary",
}

func (c msgClass) String() string {
	if int(c) < len(classNames) && classNames[c] != "" {
		return classNames[c]
	}
	return "invalid"
}

// classify 按优先级依次检查：退出信号、超时、同步超时响应、响应、普通消息。
func (a *BaseActor) classify(e *mailbox.Element) msgClass {
	m := e.Msg
	if m.Size() == 1 {
		switch m.TypeAt(0) {
		case exitType:
			em := m.At(0).(*ExitMsg)
			a.system.unlinkOne(a.id, em.Source)
			if !a.trapExit {
				if em.Reason != ExitNormal {
					return classNonNormalExit
				}
				return classNormalExit
			}
		case timeoutType:
			id := m.At(0).(*TimeoutMsg).ID
			switch {
			case a.isActiveTimeout(id):
				return classTimeout
			case a.waitsForTimeout(id):
				return classInactiveTimeout
			}
			return classExpiredTimeout
		case syncTimeoutType:
			if e.MID.IsResponse() {
				return classTimeoutResponse
			}
		}
	}
	if e.MID.IsResponse() {
		if a.awaits(e.MID) {
			return classSyncResponse
		}
		return classExpiredSyncResponse
	}
	return classOrdinary
}

// dispatch 对一个元素做一次调度尝试，返回它的去向。
func (a *BaseActor) dispatch(e *mailbox.Element) (d mailbox.Disposition) {
	cls := a.classify(e)
	defer func() {
		a.system.metrics.dispatched.WithLabelValues(cls.String(), d.String()).Inc()
	}()
	switch cls {
	case classNonNormalExit:
		em := e.Msg.At(0).(*ExitMsg)
		log.Debug("linked actor exited abnormally",
			zap.String("actor", a.id), zap.String("source", em.Source), zap.Stringer("reason", em.Reason))
		a.quit(em.Reason)
		return mailbox.Dropped
	case classNormalExit, classExpiredTimeout, classExpiredSyncResponse:
		log.Debug("drop mailbox element",
			zap.String("actor", a.id), zap.Stringer("class", cls), zap.Stringer("mid", e.MID))
		return mailbox.Dropped
	case classInactiveTimeout:
		return mailbox.Skipped
	case classTimeout:
		top := a.top()
		awaited := top.awaited
		a.guard(func() { top.bhvr.onTimeout(&Context{self: a}) })
		if awaited.Valid() {
			a.removeSync(awaited)
		}
		return a.consumed()
	case classTimeoutResponse, classSyncResponse:
		awaited := a.awaitedResponse()
		if !awaited.Valid() || e.MID != awaited {
			if a.awaits(e.MID) {
				return mailbox.Skipped
			}
			return mailbox.Dropped
		}
		matched := a.invoke(a.top(), e)
		if !matched && cls == classSyncResponse {
			a.syncFailure(e)
		}
		a.removeSync(awaited)
		return a.consumed()
	case classOrdinary:
		if a.awaitedResponse().Valid() {
			return mailbox.Skipped
		}
		if !a.invoke(a.top(), e) {
			return mailbox.Skipped
		}
		return a.consumed()
	}
	log.Panic("unknown message class", zap.Uint8("class", uint8(cls)), zap.String("actor", a.id))
	return mailbox.Dropped
}

// consumed 在消费一条元素后检查行为栈并为栈顶重新计时。
func (a *BaseActor) consumed() mailbox.Disposition {
	if len(a.stack) == 0 {
		a.quit(ExitNormal)
	} else if !a.exiting() {
		a.armTimeout()
	}
	return mailbox.Consumed
}

// invoke 用 entry 的行为处理 e 并兑现回复协议，返回是否有模式匹配。
// 处理函数 panic 时回绝尚未应答的请求并以 ExitUnhandledException 退出。
func (a *BaseActor) invoke(entry *stackEntry, e *mailbox.Element) (matched bool) {
	ctx := &Context{self: a, elem: e, forward: entry.forward}
	defer func() {
		if r := recover(); r != nil {
			log.Error("actor handler panicked",
				zap.String("actor", a.id), zap.Stringer("mid", e.MID), zap.Any("panic", r), zap.Stack("stack"))
			if p := ctx.pendingPromise(); p != nil {
				p.Deliver(message.Of1(SyncExitedMsg{Source: a.id, Reason: ExitUnhandledException}))
			}
			a.quit(ExitUnhandledException)
			matched = true
		}
	}()
	res, ok := entry.bhvr.invoke(ctx, e.Msg)
	if !ok {
		if p := ctx.forward; p != nil {
			// 委托链上的处理没有匹配，仍然保证原请求方收到回复
			ctx.forward = nil
			p.Deliver(message.Empty())
		}
		return false
	}
	a.handleResult(ctx, res)
	return true
}

// handleResult 按结果形态兑现回复承诺。
func (a *BaseActor) handleResult(ctx *Context, r Result) {
	switch r.kind {
	case ResultAnswered:
		if r.msg.Empty() {
			if p := ctx.pendingPromise(); p != nil {
				log.Warn("actor did not reply to a synchronous request",
					zap.String("actor", a.id), zap.Stringer("mid", ctx.MessageID()))
				p.Deliver(message.Empty())
			}
			return
		}
		if p := ctx.fetchPromise(); p != nil {
			p.Deliver(r.msg)
			return
		}
		log.Debug("drop result without receiver", zap.String("actor", a.id), zap.Stringer("mid", ctx.MessageID()))
	case ResultDelegated:
		p := ctx.fetchPromise()
		if p == nil {
			log.Warn("delegation without a pending reply", zap.String("actor", a.id), zap.Stringer("to", r.delegate))
			return
		}
		entry := a.syncEntry(r.delegate.ResponseID())
		if entry == nil || entry.forward != nil {
			log.Warn("delegate to unknown request, acknowledge with empty reply",
				zap.String("actor", a.id), zap.Stringer("to", r.delegate))
			p.Deliver(message.Empty())
			return
		}
		entry.forward = p
	case ResultDeferred:
		if p := ctx.pendingPromise(); p != nil {
			log.Warn("deferred result without fetching the promise",
				zap.String("actor", a.id), zap.Stringer("mid", ctx.MessageID()))
			p.Deliver(message.Empty())
		}
	default:
		log.Panic("invalid handler result", zap.String("actor", a.id), zap.Stringer("kind", r.kind))
	}
}

// syncFailure 在同步响应没有匹配任何模式时调用失败回调。
func (a *BaseActor) syncFailure(e *mailbox.Element) {
	a.system.metrics.syncFailures.Inc()
	if a.onSyncFailure == nil {
		log.Warn("sync failure: response matched no handler",
			zap.String("actor", a.id), zap.String("from", e.SenderID), zap.Stringer("mid", e.MID),
			zap.Stringer("msg", e.Msg))
		return
	}
	a.guard(func() { a.onSyncFailure(&Context{self: a, elem: e}) })
}
