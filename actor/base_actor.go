package actor

import (
	"os"
	"sync"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"uniactor/mailbox"
	"uniactor/message"
	"uniactor/persistence"
)

// stackEntry 是行为栈中的一项。
// awaited 为零时是普通行为；否则是等待该响应 ID 的同步响应处理。
type stackEntry struct {
	bhvr      *Behavior
	awaited   message.ID
	timeoutID uint32
	// forward 非空时，处理结果转交给这个承诺
	forward *ResponsePromise
}

// BaseActorOptions 配置 BaseActor 实例。
type BaseActorOptions struct {
	// ID 可选的稳定标识符，为空时生成新 ID
	ID string
	// Name 可选的名字，注册到 System 注册表中
	Name string
	// Mailbox 邮箱容量、背压与持久化配置
	Mailbox mailbox.Options
	// Behavior 初始行为
	Behavior *Behavior
	// OnStart 在处理第一条消息之前、在 Actor 自己的 goroutine 中调用
	OnStart func(*Context)
	// OnSyncFailure 同步响应没有匹配任何模式时调用，默认只记录日志
	OnSyncFailure func(*Context)
	// TrapExit 初始是否捕获退出信号
	TrapExit bool
}

// BaseActor 是运行在独立 goroutine 中的 Actor：
// 一次取出一条邮箱元素交给调度器，被跳过的元素进入缓存，
// 每消费一条元素后按到达顺序把缓存重新交给调度器。
//
// 除 links/monitors 外，下面的状态只由处理循环访问。
type BaseActor struct {
	id     string
	name   string
	system *System
	mb     *mailbox.Mailbox
	cache  mailbox.Cache
	wal    *persistence.WAL

	stack         []*stackEntry
	timeoutSeq    uint32
	requestSeq    uint64
	trapExit      bool
	onStart       func(*Context)
	onSyncFailure func(*Context)

	state  atomic.Uint32
	reason atomic.Uint32

	// mu 保护 links、monitors 与 exited，其他 Actor 会并发修改它们
	mu       sync.Mutex
	links    map[string]struct{}
	monitors map[string]struct{}
	exited   bool

	startOnce sync.Once
	done      chan struct{}
}

// NewBaseActor 构造一个绑定到 sys 的 Actor，尚未启动。
// 系统启用了持久化且邮箱没有自带持久化钩子时，为该 Actor 打开 WAL，启动时重放。
func NewBaseActor(sys *System, opts BaseActorOptions) *BaseActor {
	a := &BaseActor{
		id:            opts.ID,
		name:          opts.Name,
		system:        sys,
		trapExit:      opts.TrapExit,
		onStart:       opts.OnStart,
		onSyncFailure: opts.OnSyncFailure,
		links:         make(map[string]struct{}),
		monitors:      make(map[string]struct{}),
		done:          make(chan struct{}),
	}
	if a.id == "" {
		a.id = NewActorID()
	}
	if opts.Behavior != nil {
		a.stack = append(a.stack, &stackEntry{bhvr: opts.Behavior})
	}
	if sys.persistDir != "" && opts.Mailbox.Persist == nil {
		if err := os.MkdirAll(sys.persistDir, 0o755); err != nil {
			log.Warn("create persist dir failed", zap.String("dir", sys.persistDir), zap.Error(err))
		} else if wal, err := persistence.Open(sys.actorWALPath(a.id)); err != nil {
			log.Warn("open actor wal failed", zap.String("actor", a.id), zap.Error(err))
		} else {
			a.wal = wal
			opts.Mailbox.Persist = wal.Append
			opts.Mailbox.EncodeForPersist = encodeRecord
		}
	}
	a.mb = mailbox.New(opts.Mailbox)
	a.state.Store(uint32(ActorStateNew))
	return a
}

func encodeRecord(e *mailbox.Element) ([]byte, bool) {
	b, err := persistence.EncodeRecord(e.SenderID, uint64(e.MID), e.Msg)
	if err != nil {
		log.Warn("encode wal record failed", zap.String("sender", e.SenderID), zap.Error(err))
		return nil, false
	}
	return b, true
}

// ID 返回 Actor 的唯一标识符。
func (a *BaseActor) ID() string { return a.id }

// Name 返回注册名（可能为空）。
func (a *BaseActor) Name() string { return a.name }

// State 返回生命周期状态。
func (a *BaseActor) State() ActorState { return ActorState(a.state.Load()) }

// ExitReason 返回退出原因，运行中为 ExitNotExited。
func (a *BaseActor) ExitReason() ExitReason { return ExitReason(a.reason.Load()) }

// Done 返回在 Actor 完全停止后关闭的通道。
func (a *BaseActor) Done() <-chan struct{} { return a.done }

// Backlog 返回邮箱中排队元素的近似个数，不含跳过缓存。
func (a *BaseActor) Backlog() int64 { return a.mb.Len() }

// Start 重放 WAL（如有）、注册并启动处理循环。多次调用只生效一次。
func (a *BaseActor) Start() {
	a.startOnce.Do(func() {
		if a.wal != nil {
			a.replay()
		}
		a.system.registry.Register(a.id, a.name, a)
		a.state.Store(uint32(ActorStateRunning))
		go a.run()
	})
}

func (a *BaseActor) replay() {
	recs, err := a.wal.Replay()
	if err != nil {
		log.Warn("replay actor wal failed", zap.String("actor", a.id), zap.Error(err))
		return
	}
	for _, b := range recs {
		rec, err := persistence.DecodeRecord(b)
		if err != nil {
			log.Warn("skip undecodable wal record", zap.String("actor", a.id), zap.Error(err))
			continue
		}
		_ = a.mb.Push(mailbox.Element{SenderID: rec.SenderID, MID: message.FromIntegerValue(rec.MID), Msg: rec.Msg})
	}
	// 重放的元素已经回到邮箱，不再需要保留
	if err := a.wal.Truncate(); err != nil {
		log.Warn("truncate actor wal failed", zap.String("actor", a.id), zap.Error(err))
	}
	log.Debug("actor wal replayed", zap.String("actor", a.id), zap.Int("records", len(recs)))
}

// Stop 以 ExitUserShutdown 结束 Actor 并等待处理循环退出。多次调用是安全的。
func (a *BaseActor) Stop() {
	a.quit(ExitUserShutdown)
	a.mb.Close()
	if a.State() == ActorStateNew {
		a.startOnce.Do(func() { a.terminate() })
	}
	<-a.done
}

// quit 记录第一个退出原因，处理循环在当前元素之后退出。
func (a *BaseActor) quit(reason ExitReason) {
	if reason == ExitNotExited {
		return
	}
	a.reason.CompareAndSwap(uint32(ExitNotExited), uint32(reason))
}

func (a *BaseActor) exiting() bool { return a.ExitReason() != ExitNotExited }

// enqueue 把元素推入邮箱。
func (a *BaseActor) enqueue(e mailbox.Element) error {
	return errors.Trace(a.mb.Push(e))
}

// run 是 Actor 的处理循环。
func (a *BaseActor) run() {
	defer a.terminate()
	if a.onStart != nil {
		a.guard(func() { a.onStart(&Context{self: a}) })
	}
	if len(a.stack) == 0 {
		a.quit(ExitNormal)
	}
	a.armTimeout()
	for !a.exiting() {
		e, ok := a.mb.Pop()
		if !ok {
			if !a.mb.Wait() {
				a.quit(ExitUserShutdown)
			}
			continue
		}
		a.system.metrics.messagesIn.Inc()
		switch a.dispatch(&e) {
		case mailbox.Consumed:
			for !a.exiting() && a.cache.Invoke(a.dispatch) {
			}
		case mailbox.Dropped:
			e.Msg.Release()
		case mailbox.Skipped:
			a.cache.Push(e)
		}
	}
}

// guard 执行不属于任何处理函数的回调，panic 时以 ExitUnhandledException 退出。
func (a *BaseActor) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("actor callback panicked", zap.String("actor", a.id), zap.Any("panic", r), zap.Stack("stack"))
			a.quit(ExitUnhandledException)
		}
	}()
	fn()
}

// terminate 在处理循环结束后清理：回绝排队的请求、通知链接与监视者、注销。
func (a *BaseActor) terminate() {
	a.quit(ExitUserShutdown)
	reason := a.ExitReason()
	a.state.Store(uint32(ActorStateStopping))

	a.mu.Lock()
	a.exited = true
	links, monitors := a.links, a.monitors
	a.links, a.monitors = nil, nil
	a.mu.Unlock()

	a.system.registry.Unregister(a.id, a.name)
	a.mb.Close()
	bounce := func(e mailbox.Element) {
		if e.MID.IsRequest() && !e.MID.IsAnswered() && e.SenderID != "" {
			newPromise(a.system, a.id, e.SenderID, e.MID.ResponseID()).
				Deliver(message.Of1(SyncExitedMsg{Source: a.id, Reason: reason}))
		}
		e.Msg.Release()
	}
	for _, e := range a.cache.Drain() {
		bounce(e)
	}
	for {
		e, ok := a.mb.Pop()
		if !ok {
			break
		}
		bounce(e)
	}
	for id := range links {
		a.system.unlinkOne(id, a.id)
		a.system.notify(a.id, id, message.Of1(ExitMsg{Source: a.id, Reason: reason}))
	}
	for id := range monitors {
		a.system.notify(a.id, id, message.Of1(DownMsg{Source: a.id, Reason: reason}))
	}
	a.stack = nil
	if a.wal != nil {
		if err := a.wal.Close(); err != nil {
			log.Warn("close actor wal failed", zap.String("actor", a.id), zap.Error(err))
		}
	}
	a.state.Store(uint32(ActorStateStopped))
	log.Debug("actor terminated", zap.String("actor", a.id), zap.String("name", a.name), zap.Stringer("reason", reason))
	close(a.done)
	a.system.notifyFailure(a.id, reason)
}

// addLink 记录与 other 的链接；已退出时返回 false 和退出原因。
func (a *BaseActor) addLink(other string) (bool, ExitReason) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.exited {
		return false, a.ExitReason()
	}
	a.links[other] = struct{}{}
	return true, ExitNotExited
}

func (a *BaseActor) removeLink(other string) {
	a.mu.Lock()
	delete(a.links, other)
	a.mu.Unlock()
}

// addMonitor 记录监视者；已退出时返回 false 和退出原因。
func (a *BaseActor) addMonitor(watcher string) (bool, ExitReason) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.exited {
		return false, a.ExitReason()
	}
	a.monitors[watcher] = struct{}{}
	return true, ExitNotExited
}

func (a *BaseActor) removeMonitor(watcher string) {
	a.mu.Lock()
	delete(a.monitors, watcher)
	a.mu.Unlock()
}

// top 返回栈顶，栈为空时返回 nil。
func (a *BaseActor) top() *stackEntry {
	if len(a.stack) == 0 {
		return nil
	}
	return a.stack[len(a.stack)-1]
}

// awaitedResponse 是栈顶在等待的响应 ID，栈顶是普通行为时无效。
func (a *BaseActor) awaitedResponse() message.ID {
	if t := a.top(); t != nil {
		return t.awaited
	}
	return 0
}

// awaits 报告栈中是否有处理在等待 mid。
func (a *BaseActor) awaits(mid message.ID) bool {
	return a.syncEntry(mid) != nil
}

func (a *BaseActor) syncEntry(mid message.ID) *stackEntry {
	for i := len(a.stack) - 1; i >= 0; i-- {
		if e := a.stack[i]; e.awaited.Valid() && e.awaited == mid {
			return e
		}
	}
	return nil
}

// removeSync 移除等待 mid 的处理。
func (a *BaseActor) removeSync(mid message.ID) {
	for i := len(a.stack) - 1; i >= 0; i-- {
		if a.stack[i].awaited == mid {
			a.stack = append(a.stack[:i], a.stack[i+1:]...)
			return
		}
	}
}

func (a *BaseActor) isActiveTimeout(id uint32) bool {
	t := a.top()
	return t != nil && id != 0 && t.timeoutID == id
}

// waitsForTimeout 报告 id 是否属于一个被压住、尚未激活的行为。
func (a *BaseActor) waitsForTimeout(id uint32) bool {
	for i := 0; i < len(a.stack)-1; i++ {
		if a.stack[i].timeoutID == id {
			return true
		}
	}
	return false
}

// become 安装新的普通行为，discard 为 true 时先移除最上面的普通行为。
func (a *BaseActor) become(b *Behavior, discard bool) {
	if discard {
		a.popOrdinary()
	}
	a.stack = append(a.stack, &stackEntry{bhvr: b})
}

func (a *BaseActor) unbecome() { a.popOrdinary() }

func (a *BaseActor) popOrdinary() {
	for i := len(a.stack) - 1; i >= 0; i-- {
		if !a.stack[i].awaited.Valid() {
			a.stack = append(a.stack[:i], a.stack[i+1:]...)
			return
		}
	}
}

// armTimeout 为栈顶行为申请新的超时 ID 并按系统时钟调度 TimeoutMsg，旧 ID 随之失效。
func (a *BaseActor) armTimeout() {
	t := a.top()
	if t == nil {
		return
	}
	d := t.bhvr.Timeout()
	if d <= 0 {
		t.timeoutID = 0
		return
	}
	a.timeoutSeq++
	if a.timeoutSeq == 0 {
		a.timeoutSeq = 1
	}
	id := a.timeoutSeq
	t.timeoutID = id
	a.system.clock.AfterFunc(d, func() {
		_ = a.enqueue(mailbox.Element{SenderID: a.id, Msg: message.Of1(TimeoutMsg{ID: id})})
	})
}
