package mailbox

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"uniactor/message"
)

var (
	// ErrMailboxClosed 当向已关闭的邮箱推送消息时返回此错误。
	ErrMailboxClosed = errors.Normalize("mailbox closed", errors.RFCCodeText("UNIACTOR:ErrMailboxClosed"))
	// ErrMailboxFull 在 BackpressureExpand 策略下队列已满。
	ErrMailboxFull = errors.Normalize("mailbox full", errors.RFCCodeText("UNIACTOR:ErrMailboxFull"))
	// ErrUnknownPolicy 背压策略取值非法。
	ErrUnknownPolicy = errors.Normalize("unknown backpressure policy %d", errors.RFCCodeText("UNIACTOR:ErrUnknownPolicy"))
)

// BackpressurePolicy 定义邮箱满时的背压策略。
type BackpressurePolicy uint8

const (
	// BackpressureExpand 扩展策略：入队直到达到容量，然后返回错误。
	BackpressureExpand BackpressurePolicy = iota
	// BackpressureBlock 阻塞策略：阻塞发送者直到有空间或邮箱关闭。
	BackpressureBlock
	// BackpressureDropNewest 丢弃策略：邮箱满时静默丢弃新消息。
	BackpressureDropNewest
)

// PersistHook 在 Element.Persist 为 true 时接收编码后的元素。
type PersistHook func([]byte) error

// Element 是邮箱中的一个元素：消息本身、发送者与同步请求关联用的消息 ID。
type Element struct {
	// Priority 0 为普通通道，非 0 进入紧急通道
	Priority uint8
	// SenderID 发送者的 Actor ID，匿名发送时为空
	SenderID string
	// MID 区分异步消息、同步请求与同步响应
	MID message.ID
	Msg message.Message
	// Persist 入队前是否写入持久化钩子
	Persist bool
}

// Mailbox 是一个双队列邮箱，包含紧急通道和普通通道。
// 紧急通道用于响应与系统消息，普通通道用于常规消息。
type Mailbox struct {
	urgent *SegmentedQueue[Element]
	normal *SegmentedQueue[Element]
	policy BackpressurePolicy
	// closed 关闭信号通道
	closed chan struct{}
	// notify 新消息通知通道，容量为 1
	notify chan struct{}
	size   atomic.Int64

	persist PersistHook
	encode  func(*Element) ([]byte, bool)
}

// Options 配置邮箱的容量、背压策略和可选的持久化。
type Options struct {
	// Capacity 普通队列的段容量，默认 65536
	Capacity uint64
	// UrgentCapacity 紧急队列的段容量，默认 1024
	UrgentCapacity uint64
	// MaxSegments 最大分段数，默认 8
	MaxSegments uint64
	Policy      BackpressurePolicy
	Persist     PersistHook
	// EncodeForPersist 把元素编码为持久化记录，返回 false 表示跳过
	EncodeForPersist func(*Element) ([]byte, bool)
}

// New 创建一个新的邮箱，零值字段取默认配置。
func New(opts Options) *Mailbox {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = 65536
	}
	uc := opts.UrgentCapacity
	if uc == 0 {
		uc = 1024
	}
	ms := opts.MaxSegments
	if ms == 0 {
		ms = 8
	}
	return &Mailbox{
		urgent:  NewSegmentedQueue[Element](uc, ms),
		normal:  NewSegmentedQueue[Element](capacity, ms),
		policy:  opts.Policy,
		closed:  make(chan struct{}),
		notify:  make(chan struct{}, 1),
		persist: opts.Persist,
		encode:  opts.EncodeForPersist,
	}
}

// Closed 返回一个在邮箱关闭时被关闭的通道。
func (m *Mailbox) Closed() <-chan struct{} { return m.closed }

// IsClosed 报告邮箱是否已关闭。
func (m *Mailbox) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Close 关闭邮箱并解除等待者的阻塞。
// 关闭后不能再推送消息，但可以继续弹出已入队的消息。
func (m *Mailbox) Close() {
	select {
	case <-m.closed:
	default:
		close(m.closed)
	}
}

func (m *Mailbox) signal() {
	m.size.Add(1)
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Push 根据优先级和背压策略将元素入队。
// 设置了 Persist 且配置了持久化钩子时，先写持久化记录。
func (m *Mailbox) Push(e Element) error {
	if m.IsClosed() {
		return ErrMailboxClosed.GenWithStackByArgs()
	}
	if e.Persist && m.persist != nil && m.encode != nil {
		if b, ok := m.encode(&e); ok {
			if err := m.persist(b); err != nil {
				log.Warn("persist mailbox element failed", zap.String("sender", e.SenderID), zap.Error(err))
			}
		}
	}
	q := m.normal
	if e.Priority != 0 {
		q = m.urgent
	}
	switch m.policy {
	case BackpressureExpand:
		if q.Enqueue(&e) {
			m.signal()
			return nil
		}
		return ErrMailboxFull.GenWithStackByArgs()
	case BackpressureDropNewest:
		if q.Enqueue(&e) {
			m.signal()
		} else {
			log.Debug("mailbox full, drop newest element", zap.String("sender", e.SenderID))
		}
		return nil
	case BackpressureBlock:
		backoff := time.Microsecond
		for {
			if q.Enqueue(&e) {
				m.signal()
				return nil
			}
			if m.IsClosed() {
				return ErrMailboxClosed.GenWithStackByArgs()
			}
			runtime.Gosched()
			time.Sleep(backoff)
			if backoff < 2*time.Millisecond {
				backoff *= 2
			}
		}
	default:
		return ErrUnknownPolicy.GenWithStackByArgs(m.policy)
	}
}

// Pop 弹出一个元素，紧急通道优先。
func (m *Mailbox) Pop() (Element, bool) {
	if v, ok := m.urgent.Dequeue(); ok && v != nil {
		m.size.Add(-1)
		return *v, true
	}
	if v, ok := m.normal.Dequeue(); ok && v != nil {
		m.size.Add(-1)
		return *v, true
	}
	return Element{}, false
}

// Len 返回队列中元素的近似数量。
func (m *Mailbox) Len() int64 { return m.size.Load() }

// Wait 阻塞直到至少有一个元素入队或邮箱关闭。
// 返回 false 表示邮箱已关闭。
func (m *Mailbox) Wait() bool {
	select {
	case <-m.notify:
		return true
	case <-m.closed:
		return false
	}
}
