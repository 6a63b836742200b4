package message

import "github.com/pingcap/errors"

var (
	// ErrTypeMismatch 按类型访问消息元素时类型不符。
	ErrTypeMismatch = errors.Normalize(
		"element %d type mismatch: expected %s, actual %s",
		errors.RFCCodeText("UNIACTOR:ErrTypeMismatch"),
	)
	// ErrIndexOutOfRange 元素下标越界。
	ErrIndexOutOfRange = errors.Normalize(
		"element index %d out of range [0, %d)",
		errors.RFCCodeText("UNIACTOR:ErrIndexOutOfRange"),
	)
	// ErrUnsupportedValue Builder 拒绝的值：nil、指针、函数、通道。
	ErrUnsupportedValue = errors.Normalize(
		"unsupported message value of kind %s",
		errors.RFCCodeText("UNIACTOR:ErrUnsupportedValue"),
	)
)
