package actor

import (
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"uniactor/uniform"
)

// RestartStrategy 决定一个子 Actor 异常退出后哪些子 Actor 被重启。
type RestartStrategy uint8

const (
	// OneForOne 只重启退出的子 Actor。
	OneForOne RestartStrategy = iota
	// OneForAll 重启全部子 Actor。
	OneForAll
	// RestForOne 重启退出的子 Actor 以及在它之后启动的子 Actor。
	RestForOne
)

// BackoffFunc 返回第 retry 次（从 0 开始）重启前的等待时间。
type BackoffFunc func(retry int) time.Duration

// ExponentialBackoff 从 base 开始每次翻倍，不超过 max。零值取 50ms 与 5s。
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if max <= 0 {
		max = 5 * time.Second
	}
	return func(retry int) time.Duration {
		d := base
		for i := 0; i < retry; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		return d
	}
}

// ChildFactory 创建一个尚未启动的子 Actor，每次重启都会调用。
type ChildFactory func(sys *System) *BaseActor

// restartChild 是监督者延迟发给自己的重启指令。
// Gen 与子项当前的代数不一致时说明指令已被更新的重启取代。
type restartChild struct {
	Index int64
	Gen   int64
}

var _ = uniform.AnnounceComposeNamed[restartChild]("@restart",
	uniform.Field(func(r *restartChild) *int64 { return &r.Index }),
	uniform.Field(func(r *restartChild) *int64 { return &r.Gen }),
)

type childEntry struct {
	name    string
	factory ChildFactory
	actor   *BaseActor
	retries int
	gen     int64
}

// SupervisorOptions 配置监督者。
type SupervisorOptions struct {
	// Name 监督者自身的注册名
	Name     string
	Strategy RestartStrategy
	// MaxRetries 每个子 Actor 的最大重启次数，默认 10
	MaxRetries int
	// Backoff 默认 ExponentialBackoff(50ms, 5s)
	Backoff BackoffFunc
}

// Supervisor 是监视一组子 Actor 的 Actor。子 Actor 以非正常原因退出时，
// 它收到 DownMsg，按策略经过退避延迟后用工厂重新创建子 Actor。
// 正常退出和 Stop 引起的退出不会触发重启。
type Supervisor struct {
	sys        *System
	self       *BaseActor
	strategy   RestartStrategy
	maxRetries int
	backoff    BackoffFunc

	mu       sync.Mutex
	children []*childEntry

	restarts atomic.Uint64
}

// NewSupervisor 创建并启动一个监督者。
func NewSupervisor(sys *System, opts SupervisorOptions) (*Supervisor, error) {
	s := &Supervisor{
		sys:        sys,
		strategy:   opts.Strategy,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
	if s.maxRetries == 0 {
		s.maxRetries = 10
	}
	if s.backoff == nil {
		s.backoff = ExponentialBackoff(50*time.Millisecond, 5*time.Second)
	}
	self, err := sys.Spawn(BaseActorOptions{
		Name: opts.Name,
		Behavior: NewBehavior(
			On1(func(ctx *Context, m DownMsg) Result {
				s.onDown(ctx, m)
				return NoReply()
			}),
			On1(func(ctx *Context, r restartChild) Result {
				s.restart(r)
				return NoReply()
			}),
		),
	})
	if err != nil {
		return nil, err
	}
	s.self = self
	return s, nil
}

// ID 返回监督者自身的 Actor ID。
func (s *Supervisor) ID() string { return s.self.id }

// Spawn 用 factory 创建、启动并监视一个名为 name 的子 Actor。
func (s *Supervisor) Spawn(name string, factory ChildFactory) (*BaseActor, error) {
	if s.sys.stopped.Load() {
		return nil, ErrSystemStopped.GenWithStackByArgs()
	}
	a := s.start(name, factory)
	s.mu.Lock()
	s.children = append(s.children, &childEntry{name: name, factory: factory, actor: a})
	s.mu.Unlock()
	s.sys.monitor(s.self.id, a.id)
	return a, nil
}

func (s *Supervisor) start(name string, factory ChildFactory) *BaseActor {
	a := factory(s.sys)
	if a.name == "" {
		a.name = name
	}
	a.Start()
	return a
}

// Child 返回名为 name 的子 Actor 的当前实例。
func (s *Supervisor) Child(name string) (*BaseActor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.children {
		if c.name == name {
			return c.actor, c.actor != nil
		}
	}
	return nil, false
}

// RestartCount 返回已完成的重启次数。
func (s *Supervisor) RestartCount() uint64 { return s.restarts.Load() }

// Stop 先停止监督者，再停止全部子 Actor。
func (s *Supervisor) Stop() {
	s.self.Stop()
	s.mu.Lock()
	children := make([]*BaseActor, 0, len(s.children))
	for _, c := range s.children {
		if c.actor != nil {
			children = append(children, c.actor)
		}
	}
	s.mu.Unlock()
	for _, a := range children {
		a.Stop()
	}
}

func (s *Supervisor) onDown(ctx *Context, m DownMsg) {
	if m.Reason == ExitNormal || m.Reason == ExitUserShutdown {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, c := range s.children {
		if c.actor != nil && c.actor.id == m.Source {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	first, last := idx, idx
	switch s.strategy {
	case OneForAll:
		first, last = 0, len(s.children)-1
	case RestForOne:
		last = len(s.children) - 1
	}
	log.Info("child actor failed",
		zap.String("supervisor", s.self.id), zap.String("child", s.children[idx].name),
		zap.Stringer("reason", m.Reason), zap.Int("restarts", last-first+1))
	for i := first; i <= last; i++ {
		c := s.children[i]
		c.retries++
		if c.retries > s.maxRetries {
			log.Warn("child exceeded max restarts, giving up",
				zap.String("supervisor", s.self.id), zap.String("child", c.name), zap.Int("retries", c.retries-1))
			continue
		}
		c.gen++
		delay := s.backoff(c.retries - 1)
		if err := ctx.DelayedSend(delay, s.self.id, restartChild{Index: int64(i), Gen: c.gen}); err != nil {
			log.Warn("schedule child restart failed", zap.String("child", c.name), zap.Error(err))
		}
	}
}

func (s *Supervisor) restart(r restartChild) {
	s.mu.Lock()
	if r.Index < 0 || int(r.Index) >= len(s.children) || s.children[r.Index].gen != r.Gen {
		s.mu.Unlock()
		return
	}
	c := s.children[r.Index]
	old := c.actor
	c.actor = nil
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	a := s.start(c.name, c.factory)

	s.mu.Lock()
	c.actor = a
	s.mu.Unlock()
	s.sys.monitor(s.self.id, a.id)
	s.restarts.Inc()
	s.sys.metrics.restarts.Inc()
	log.Debug("child actor restarted", zap.String("child", c.name), zap.String("id", a.id))
}
