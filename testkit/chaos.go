package testkit

import (
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
)

// ErrChaosDropped 表示操作被故障注入丢弃。
var ErrChaosDropped = errors.Normalize("operation dropped by chaos", errors.RFCCodeText("UNIACTOR:ErrChaosDropped"))

// Chaos 在测试中按概率丢弃或延迟一次投递，用来检验断路器、超时和重试路径。
type Chaos struct {
	// DropProbability 丢弃概率（0.0-1.0）
	DropProbability float64
	// MaxDelay 最大随机延迟，经由 Clock 等待
	MaxDelay time.Duration
	// Clock 默认真实时钟
	Clock clock.Clock
	// Seed 随机种子，0 时使用当前时间
	Seed int64

	once sync.Once
	mu   sync.Mutex
	rnd  *rand.Rand
}

func (c *Chaos) init() {
	c.once.Do(func() {
		seed := c.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		c.rnd = rand.New(rand.NewSource(seed))
		if c.Clock == nil {
			c.Clock = clock.New()
		}
	})
}

// Apply 可能丢弃 fn（返回 ErrChaosDropped），也可能在随机延迟后执行它。
func (c *Chaos) Apply(fn func() error) error {
	c.init()
	c.mu.Lock()
	drop := c.DropProbability > 0 && c.rnd.Float64() < c.DropProbability
	var delay time.Duration
	if !drop && c.MaxDelay > 0 {
		delay = time.Duration(c.rnd.Int63n(int64(c.MaxDelay)))
	}
	c.mu.Unlock()
	if drop {
		return ErrChaosDropped.GenWithStackByArgs()
	}
	if delay > 0 {
		c.Clock.Sleep(delay)
	}
	return fn()
}

// Send 返回一个经过故障注入的发送函数，可以替换测试中的 System.Send。
func (c *Chaos) Send(send func(to string, values ...any) error) func(to string, values ...any) error {
	return func(to string, values ...any) error {
		return c.Apply(func() error { return send(to, values...) })
	}
}
