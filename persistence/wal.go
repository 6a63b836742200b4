package persistence

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/pingcap/errors"
)

// ErrCorruptRecord 记录校验和不匹配。
var ErrCorruptRecord = errors.Normalize(
	"corrupt wal record at offset %d in %s",
	errors.RFCCodeText("UNIACTOR:ErrCorruptRecord"),
)

const headerSize = 8

// WAL 是一个 Actor 邮箱的预写日志。
// 记录格式：[4 字节小端长度][4 字节 CRC32][负载]。
// 文件末尾不完整的记录（写到一半时崩溃）视为日志结束。
type WAL struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open 打开或创建 path 处的 WAL，写入总是追加到末尾。
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &WAL{f: f, path: path}, nil
}

// Path 返回文件路径。
func (w *WAL) Path() string { return w.path }

// Close 关闭文件，可以多次调用。
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return errors.Trace(err)
}

// Append 追加一条记录，空负载被忽略。
func (w *WAL) Append(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errors.Trace(os.ErrClosed)
	}
	buf := make([]byte, headerSize+len(b))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(b)))
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(b))
	copy(buf[headerSize:], b)
	_, err := w.f.Write(buf)
	return errors.Trace(err)
}

// Replay 从头按顺序读出所有完整记录。
func (w *WAL) Replay() ([][]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil, errors.Trace(os.ErrClosed)
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Trace(err)
	}
	var (
		out    [][]byte
		hdr    [headerSize]byte
		offset int64
	)
	for {
		if _, err := io.ReadFull(w.f, hdr[:]); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(hdr[:4])
		sum := binary.LittleEndian.Uint32(hdr[4:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(w.f, buf); err != nil {
			break
		}
		if crc32.ChecksumIEEE(buf) != sum {
			return nil, ErrCorruptRecord.GenWithStackByArgs(offset, w.path)
		}
		offset += int64(headerSize) + int64(n)
		if n > 0 {
			out = append(out, buf)
		}
	}
	return out, nil
}

// Truncate 丢弃全部记录，通常在重放完成、记录已重新入队之后调用。
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errors.Trace(os.ErrClosed)
	}
	return errors.Trace(w.f.Truncate(0))
}
