package actor

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"uniactor/config"
	"uniactor/mailbox"
	"uniactor/message"
)

// System 是 Actor 的运行时容器：
//   - 本地注册表，按 ID 和名字查找
//   - 从 Actor 外部发起的请求与响应关联
//   - 出站限流、按目标的断路器
//   - 可选的 WAL 持久化、指标服务与远程传输
//
// 一个进程通常只需要一个 System；测试中可以创建多个互相通信。
type System struct {
	registry *Registry
	clock    clock.Clock
	limiter  *rate.Limiter
	metrics  *Metrics

	// requesterID 是外部请求的发送者 ID，响应按它路由回 pending
	requesterID string
	requestSeq  atomic.Uint64
	pendingMu   sync.Mutex
	pending     map[message.ID]*Future[RequestResult]

	breakerMu        sync.Mutex
	breakers         map[string]*CircuitBreaker
	breakerThreshold uint64
	breakerOpenFor   time.Duration

	persistDir     string
	mailboxOpts    mailbox.Options
	deliverTimeout time.Duration

	locMu     sync.RWMutex
	locations map[string]string

	// mu 保护 remote 与指标服务的启停
	mu         sync.Mutex
	remote     *remoteTransport
	metricsSrv *http.Server
	metricsLis net.Listener

	failMu  sync.Mutex
	failSub []func(actorID string, reason ExitReason)

	stopped atomic.Bool
}

// Option 定制 NewSystem 创建的系统。
type Option func(*System)

// WithClock 替换系统时钟，测试中可传入 clock.NewMock()。
func WithClock(c clock.Clock) Option {
	return func(s *System) { s.clock = c }
}

// WithMailbox 设置 Spawn 时邮箱配置的默认值。
func WithMailbox(opts mailbox.Options) Option {
	return func(s *System) { s.mailboxOpts = opts }
}

// WithBreaker 设置断路器的失败阈值与打开时长。
func WithBreaker(threshold uint64, openFor time.Duration) Option {
	return func(s *System) {
		s.breakerThreshold = threshold
		s.breakerOpenFor = openFor
	}
}

// WithDeliverTimeout 设置单次远程投递的超时。
func WithDeliverTimeout(d time.Duration) Option {
	return func(s *System) { s.deliverTimeout = d }
}

// NewSystem 创建一个新的 Actor 系统。
func NewSystem(opts ...Option) *System {
	s := &System{
		registry:       NewRegistry(),
		clock:          clock.New(),
		limiter:        rate.NewLimiter(rate.Inf, 0),
		requesterID:    "requester-" + NewActorID(),
		pending:        make(map[message.ID]*Future[RequestResult]),
		breakers:       make(map[string]*CircuitBreaker),
		locations:      make(map[string]string),
		deliverTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s)
	return s
}

// NewSystemFromConfig 按配置创建系统，并按需启用持久化、限流、远程传输与指标服务。
// 启用某一部分失败时，已启用的部分会被关闭。
func NewSystemFromConfig(cfg *config.Config, opts ...Option) (*System, error) {
	if err := cfg.Adjust(); err != nil {
		return nil, err
	}
	base := []Option{
		WithMailbox(cfg.Mailbox.Options()),
		WithBreaker(cfg.Remote.BreakerThreshold, time.Duration(cfg.Remote.BreakerOpenFor)),
		WithDeliverTimeout(time.Duration(cfg.Remote.DeliverTimeout)),
	}
	s := NewSystem(append(base, opts...)...)
	if cfg.PersistDir != "" {
		s.EnablePersistence(cfg.PersistDir)
	}
	if cfg.RateLimit.QPS > 0 {
		s.EnableRateLimit(cfg.RateLimit.QPS, cfg.RateLimit.Burst)
	}
	if cfg.Remote.ListenAddr != "" {
		if err := s.EnableRemote(cfg.Remote.ListenAddr); err != nil {
			return nil, multierr.Append(err, s.Shutdown())
		}
	}
	if cfg.Metrics.Addr != "" {
		if _, err := s.EnableMetrics(cfg.Metrics.Addr); err != nil {
			return nil, multierr.Append(err, s.Shutdown())
		}
	}
	return s, nil
}

// Registry 返回本地注册表。
func (s *System) Registry() *Registry { return s.registry }

// Clock 返回系统时钟。
func (s *System) Clock() clock.Clock { return s.clock }

// Spawn 创建并启动一个 Actor。邮箱配置中的零值字段取系统默认值。
func (s *System) Spawn(opts BaseActorOptions) (*BaseActor, error) {
	if s.stopped.Load() {
		return nil, ErrSystemStopped.GenWithStackByArgs()
	}
	mb := &opts.Mailbox
	if mb.Capacity == 0 {
		mb.Capacity = s.mailboxOpts.Capacity
	}
	if mb.UrgentCapacity == 0 {
		mb.UrgentCapacity = s.mailboxOpts.UrgentCapacity
	}
	if mb.MaxSegments == 0 {
		mb.MaxSegments = s.mailboxOpts.MaxSegments
	}
	if mb.Policy == mailbox.BackpressureExpand {
		mb.Policy = s.mailboxOpts.Policy
	}
	a := NewBaseActor(s, opts)
	a.Start()
	return a, nil
}

// FindByID 按 ID 查找本地 Actor。
func (s *System) FindByID(id string) (*BaseActor, bool) { return s.registry.Get(id) }

// FindByName 按注册名查找本地 Actor。
func (s *System) FindByName(name string) (*BaseActor, bool) { return s.registry.GetByName(name) }

// EnablePersistence 在 dir 下为之后创建的每个 Actor 打开 WAL，Actor 启动时重放。
func (s *System) EnablePersistence(dir string) { s.persistDir = dir }

func (s *System) actorWALPath(actorID string) string {
	return filepath.Join(s.persistDir, actorID+".wal")
}

// EnableRateLimit 把出站投递限制为每秒 qps 个，允许 burst 个突发。
func (s *System) EnableRateLimit(qps float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	s.limiter.SetBurst(burst)
	s.limiter.SetLimit(rate.Limit(qps))
}

// SetQPS 调整限流速率，qps 不大于 0 时取消限流。
func (s *System) SetQPS(qps float64) {
	if qps <= 0 {
		s.limiter.SetLimit(rate.Inf)
		return
	}
	if s.limiter.Burst() < 1 {
		s.limiter.SetBurst(int(qps) + 1)
	}
	s.limiter.SetLimit(rate.Limit(qps))
}

// deliver 把元素交给 to：本地 Actor、本系统的外部请求者，或已登记位置的远程节点。
// 本地投递时元素持有消息的一个新引用，调用方之后修改自己的句柄会先复制。
func (s *System) deliver(to string, e mailbox.Element) error {
	if err := s.limiter.Wait(context.Background()); err != nil {
		return errors.Trace(err)
	}
	s.metrics.messagesOut.Inc()
	if a, ok := s.registry.Get(to); ok {
		e.Msg = e.Msg.Copy()
		if err := a.enqueue(e); err != nil {
			e.Msg.Release()
			return err
		}
		return nil
	}
	if to == s.requesterID {
		e.Msg = e.Msg.Copy()
		s.onResponse(e)
		return nil
	}
	if addr, ok := s.locationOf(to); ok {
		return s.remoteDeliver(addr, to, e)
	}
	return ErrActorNotFound.GenWithStackByArgs(to)
}

// Tell 以 from（可以为 nil）的名义向 to 发送异步消息。
func (s *System) Tell(from *BaseActor, to string, m message.Message, opts SendOptions) error {
	e := mailbox.Element{Priority: uint8(opts.Priority), Msg: m, Persist: opts.Persist}
	if from != nil {
		e.SenderID = from.id
	}
	return s.deliver(to, e)
}

// Send 匿名向 to 发送由 vals 构造的异步消息。
func (s *System) Send(to string, vals ...any) error {
	m, err := message.Make(vals...)
	if err != nil {
		return err
	}
	defer m.Release()
	return s.Tell(nil, to, m, SendOptions{})
}

// SendMessage 匿名向 to 发送已构造好的消息。
func (s *System) SendMessage(to string, m message.Message) error {
	return s.Tell(nil, to, m, SendOptions{})
}

// notify 经紧急通道投递系统消息，目标不存在时忽略。
func (s *System) notify(from, to string, m message.Message) {
	err := s.deliver(to, mailbox.Element{Priority: uint8(PriorityUrgent), SenderID: from, Msg: m})
	if err != nil {
		log.Debug("drop system message", zap.String("from", from), zap.String("to", to),
			zap.Stringer("msg", m), zap.Error(err))
	}
}

// delayedTell 在 d 之后投递 m；等待期间持有一个引用，调用方可以继续修改自己的句柄。
func (s *System) delayedTell(d time.Duration, from, to string, m message.Message) {
	held := m.Copy()
	s.clock.AfterFunc(d, func() {
		defer held.Release()
		if err := s.deliver(to, mailbox.Element{SenderID: from, Msg: held}); err != nil {
			log.Debug("drop delayed message", zap.String("from", from), zap.String("to", to), zap.Error(err))
		}
	})
}

// link 建立 self 与 other 的双向链接。other 不存在或已退出时，self 立即收到 ExitMsg。
func (s *System) link(self, other string) {
	if self == other {
		return
	}
	me, ok := s.registry.Get(self)
	if !ok {
		return
	}
	target, ok := s.registry.Get(other)
	if !ok {
		s.notify(other, self, message.Of1(ExitMsg{Source: other, Reason: ExitUnreachable}))
		return
	}
	if ok, reason := target.addLink(self); !ok {
		s.notify(other, self, message.Of1(ExitMsg{Source: other, Reason: reason}))
		return
	}
	if ok, _ := me.addLink(other); !ok {
		target.removeLink(self)
	}
}

func (s *System) unlink(self, other string) {
	s.unlinkOne(self, other)
	s.unlinkOne(other, self)
}

// unlinkOne 只从 holder 一侧移除到 other 的链接。
func (s *System) unlinkOne(holder, other string) {
	if a, ok := s.registry.Get(holder); ok {
		a.removeLink(other)
	}
}

// monitor 让 watcher 监视 target。target 不存在或已退出时，watcher 立即收到 DownMsg。
func (s *System) monitor(watcher, target string) {
	a, ok := s.registry.Get(target)
	if !ok {
		s.notify(target, watcher, message.Of1(DownMsg{Source: target, Reason: ExitUnreachable}))
		return
	}
	if ok, reason := a.addMonitor(watcher); !ok {
		s.notify(target, watcher, message.Of1(DownMsg{Source: target, Reason: reason}))
	}
}

func (s *System) demonitor(watcher, target string) {
	if a, ok := s.registry.Get(target); ok {
		a.removeMonitor(watcher)
	}
}

// breakerFor 获取或创建目标的断路器。
func (s *System) breakerFor(id string) *CircuitBreaker {
	s.breakerMu.Lock()
	defer s.breakerMu.Unlock()
	b, ok := s.breakers[id]
	if !ok {
		b = NewCircuitBreaker(s.breakerThreshold, s.breakerOpenFor)
		s.breakers[id] = b
	}
	return b
}

// SubscribeFailures 订阅 Actor 的异常退出（除 ExitNormal 与 ExitUserShutdown 之外的原因）。
func (s *System) SubscribeFailures(fn func(actorID string, reason ExitReason)) {
	s.failMu.Lock()
	s.failSub = append(s.failSub, fn)
	s.failMu.Unlock()
}

func (s *System) notifyFailure(actorID string, reason ExitReason) {
	if reason == ExitNormal || reason == ExitUserShutdown {
		return
	}
	s.failMu.Lock()
	subs := append([]func(string, ExitReason){}, s.failSub...)
	s.failMu.Unlock()
	for _, fn := range subs {
		fn(actorID, reason)
	}
}

// Shutdown 停止所有本地 Actor、远程传输与指标服务，未完成的外部请求以 ErrSystemStopped 结束。
// 多次调用是安全的。
func (s *System) Shutdown() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	var wg sync.WaitGroup
	for _, a := range s.registry.Snapshot() {
		wg.Add(1)
		go func(a *BaseActor) {
			defer wg.Done()
			a.Stop()
		}(a)
	}
	wg.Wait()

	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[message.ID]*Future[RequestResult])
	s.pendingMu.Unlock()
	for _, f := range pending {
		f.complete(RequestResult{Err: ErrSystemStopped.GenWithStackByArgs()})
	}

	err := multierr.Combine(s.StopRemote(), s.stopMetrics())
	log.Info("actor system shut down", zap.Error(err))
	return err
}
