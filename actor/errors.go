package actor

import "github.com/pingcap/errors"

var (
	// ErrActorNotFound 目标 Actor 在本地注册表和已知远程位置中都不存在。
	ErrActorNotFound = errors.Normalize(
		"actor %s not found",
		errors.RFCCodeText("UNIACTOR:ErrActorNotFound"),
	)
	// ErrCircuitOpen 目标的断路器处于打开状态，请求被直接拒绝。
	ErrCircuitOpen = errors.Normalize(
		"circuit breaker open for %s",
		errors.RFCCodeText("UNIACTOR:ErrCircuitOpen"),
	)
	// ErrRequestTimeout 同步请求在调用方的期限内没有收到响应。
	ErrRequestTimeout = errors.Normalize(
		"request %s to %s timed out",
		errors.RFCCodeText("UNIACTOR:ErrRequestTimeout"),
	)
	// ErrActorExited 请求在被处理前目标已经退出。
	ErrActorExited = errors.Normalize(
		"actor %s exited with reason %s",
		errors.RFCCodeText("UNIACTOR:ErrActorExited"),
	)
	ErrRemoteDisabled = errors.Normalize(
		"remote transport is not enabled",
		errors.RFCCodeText("UNIACTOR:ErrRemoteDisabled"),
	)
	// ErrRemoteRejected 对端收到了信封但拒绝投递。
	ErrRemoteRejected = errors.Normalize(
		"remote %s rejected delivery: %s",
		errors.RFCCodeText("UNIACTOR:ErrRemoteRejected"),
	)
	ErrSystemStopped = errors.Normalize(
		"actor system is shut down",
		errors.RFCCodeText("UNIACTOR:ErrSystemStopped"),
	)
)
