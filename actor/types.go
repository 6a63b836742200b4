package actor

// Priority 决定元素进入邮箱的哪条通道。
type Priority uint8

const (
	// PriorityNormal 普通通道。
	PriorityNormal Priority = iota
	// PriorityUrgent 紧急通道，响应、退出与监视通知走这里。
	PriorityUrgent
)

// ActorState 描述 Actor 实例的生命周期状态。
type ActorState uint32

const (
	// ActorStateNew 尚未启动。
	ActorStateNew ActorState = iota
	// ActorStateRunning 处理循环正在运行。
	ActorStateRunning
	// ActorStateStopping 已经决定退出，正在清理。
	ActorStateStopping
	// ActorStateStopped 已完全停止。
	ActorStateStopped
)

func (s ActorState) String() string {
	switch s {
	case ActorStateNew:
		return "new"
	case ActorStateRunning:
		return "running"
	case ActorStateStopping:
		return "stopping"
	case ActorStateStopped:
		return "stopped"
	}
	return "unknown"
}

// SendOptions 控制一次投递的通道与持久化。
type SendOptions struct {
	Priority Priority
	// Persist 为 true 且目标启用了 WAL 时，入队前先落盘
	Persist bool
}
