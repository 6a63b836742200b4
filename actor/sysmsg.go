package actor

import (
	"strconv"

	"uniactor/uniform"
)

// ExitReason 描述 Actor 退出的原因。
type ExitReason uint32

const (
	// ExitNotExited 表示 Actor 仍在运行。
	ExitNotExited ExitReason = 0
	// ExitNormal 正常退出：行为栈为空，或者用户主动以正常原因退出。
	ExitNormal ExitReason = 1
	// ExitUnhandledException 处理函数发生 panic。
	ExitUnhandledException ExitReason = 2
	// ExitUnhandledSyncFailure 同步响应没有匹配的处理函数，且失败回调选择退出。
	ExitUnhandledSyncFailure ExitReason = 4
	// ExitUserShutdown 由 Stop 或系统关闭触发。
	ExitUserShutdown ExitReason = 0x10
	// ExitUnreachable 目标不存在或无法送达。
	ExitUnreachable ExitReason = 0x101
	// ExitUserDefined 之后的取值留给用户自定义。
	ExitUserDefined ExitReason = 0x10000
)

func (r ExitReason) String() string {
	switch r {
	case ExitNotExited:
		return "not_exited"
	case ExitNormal:
		return "normal"
	case ExitUnhandledException:
		return "unhandled_exception"
	case ExitUnhandledSyncFailure:
		return "unhandled_sync_failure"
	case ExitUserShutdown:
		return "user_shutdown"
	case ExitUnreachable:
		return "unreachable"
	}
	if r >= ExitUserDefined {
		return "user_defined(" + strconv.FormatUint(uint64(r-ExitUserDefined), 10) + ")"
	}
	return "unknown(" + strconv.FormatUint(uint64(r), 10) + ")"
}

// ExitMsg 在 Actor 退出时发给所有链接的 Actor。
type ExitMsg struct {
	Source string
	Reason ExitReason
}

// DownMsg 在 Actor 退出时发给所有监视者。
type DownMsg struct {
	Source string
	Reason ExitReason
}

// TimeoutMsg 是行为超时发给自己的消息，ID 用来判断超时是否已被取代。
type TimeoutMsg struct {
	ID uint32
}

// SyncTimeoutMsg 在带超时的同步请求过期时，作为响应投递给请求方。
type SyncTimeoutMsg struct{}

// SyncExitedMsg 在请求未被处理而目标已退出（或无法送达）时作为响应返回。
type SyncExitedMsg struct {
	Source string
	Reason ExitReason
}

var (
	exitType = uniform.AnnounceComposeNamed[ExitMsg]("@exit",
		uniform.Field(func(m *ExitMsg) *string { return &m.Source }),
		uniform.Field(func(m *ExitMsg) *ExitReason { return &m.Reason }),
	)
	downType = uniform.AnnounceComposeNamed[DownMsg]("@down",
		uniform.Field(func(m *DownMsg) *string { return &m.Source }),
		uniform.Field(func(m *DownMsg) *ExitReason { return &m.Reason }),
	)
	timeoutType = uniform.AnnounceComposeNamed[TimeoutMsg]("@timeout",
		uniform.Field(func(m *TimeoutMsg) *uint32 { return &m.ID }),
	)
	syncTimeoutType = uniform.AnnounceComposeNamed[SyncTimeoutMsg]("@sync_timeout")
	syncExitedType  = uniform.AnnounceComposeNamed[SyncExitedMsg]("@sync_exited",
		uniform.Field(func(m *SyncExitedMsg) *string { return &m.Source }),
		uniform.Field(func(m *SyncExitedMsg) *ExitReason { return &m.Reason }),
	)
)
