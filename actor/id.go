package actor

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

var (
	// nodeID 区分进程，取随机 UUID 的前 12 个十六进制字符。
	nodeID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	// idCounter 进程内递增的序号
	idCounter atomic.Uint64
)

// NodeID 返回当前进程的节点标识，它是本进程生成的所有 Actor ID 的后缀。
func NodeID() string { return nodeID }

// NewActorID 生成一个新的全局唯一 Actor ID。
// 格式：时间戳(8 字节) + 计数器(8 字节) 的十六进制，后接节点标识，共 44 个字符。
func NewActorID() string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint64(b[8:], idCounter.Inc())
	return hex.EncodeToString(b[:]) + nodeID
}
