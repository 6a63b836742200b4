package persistence

import (
	"github.com/pingcap/errors"
	"github.com/vmihailenco/msgpack/v5"

	"uniactor/codec/bincodec"
	"uniactor/message"
)

// Record 是 WAL 中一条邮箱元素。
type Record struct {
	SenderID string
	MID      uint64
	Msg      message.Message
}

type wireRecord struct {
	Sender  string `msgpack:"s"`
	MID     uint64 `msgpack:"m"`
	Payload []byte `msgpack:"p"`
}

// EncodeRecord 编码一条记录，消息以二进制格式写入 Payload。
func EncodeRecord(sender string, mid uint64, msg message.Message) ([]byte, error) {
	payload, err := bincodec.Marshal(message.Descriptor(), &msg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	b, err := msgpack.Marshal(&wireRecord{Sender: sender, MID: mid, Payload: payload})
	return b, errors.Trace(err)
}

// DecodeRecord 解码 EncodeRecord 的输出。消息中的类型必须已在本进程注册。
func DecodeRecord(b []byte) (Record, error) {
	var w wireRecord
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return Record{}, errors.Trace(err)
	}
	rec := Record{SenderID: w.Sender, MID: w.MID}
	if err := bincodec.UnmarshalInto(w.Payload, message.Descriptor(), &rec.Msg); err != nil {
		return Record{}, errors.Trace(err)
	}
	return rec, nil
}
