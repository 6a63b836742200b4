package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pingcap/errors"

	"uniactor/message"
)

func TestWALAppendReplay(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "a.wal"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()
	_ = w.Append([]byte("x"))
	_ = w.Append(nil)
	_ = w.Append([]byte("yy"))
	recs, err := w.Replay()
	if err != nil || len(recs) != 2 || string(recs[0]) != "x" || string(recs[1]) != "yy" {
		t.Fatalf("replay: %v %#v", err, recs)
	}
	// 重放之后继续追加
	_ = w.Append([]byte("z"))
	recs, err = w.Replay()
	if err != nil || len(recs) != 3 || string(recs[2]) != "z" {
		t.Fatalf("replay after append: %v %#v", err, recs)
	}
	_ = w.Close()
	if _, err := w.Replay(); errors.Cause(err) != os.ErrClosed {
		t.Fatalf("expected closed err, got: %v", err)
	}
	if err := w.Append([]byte("x")); errors.Cause(err) != os.ErrClosed {
		t.Fatalf("expected closed append err, got: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestWALOpenError(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestWALTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = w.Append([]byte("keep"))
	_ = w.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("openfile: %v", err)
	}
	// 只写了一半的记录：头部声明 5 字节，实际只有 3 字节
	_, _ = f.Write([]byte{5, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3})
	_ = f.Close()

	w, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w.Close()
	recs, err := w.Replay()
	if err != nil || len(recs) != 1 || string(recs[0]) != "keep" {
		t.Fatalf("expected one record: %v %#v", err, recs)
	}
}

func TestWALCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = w.Append([]byte("payload"))
	_ = w.Close()

	b, _ := os.ReadFile(path)
	b[len(b)-1] ^= 0xff
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w.Close()
	if _, err := w.Replay(); !ErrCorruptRecord.Equal(err) {
		t.Fatalf("expected corrupt record, got: %v", err)
	}
}

func TestWALTruncate(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "e.wal"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()
	_ = w.Append([]byte("a"))
	if err := w.Truncate(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = w.Append([]byte("b"))
	recs, err := w.Replay()
	if err != nil || len(recs) != 1 || string(recs[0]) != "b" {
		t.Fatalf("replay after truncate: %v %#v", err, recs)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	msg := message.MustMake("put", int64(7), []byte("ab"))
	b, err := EncodeRecord("sender-1", 42, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rec, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.SenderID != "sender-1" || rec.MID != 42 || !rec.Msg.Equal(msg) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := DecodeRecord([]byte{0xc1}); err == nil {
		t.Fatalf("expected decode error")
	}
}
