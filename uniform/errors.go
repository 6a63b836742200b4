package uniform

import "github.com/pingcap/errors"

// 类型系统相关的错误。这些错误不会被重试，也不会在本地恢复，
// 一律向上传播给发起序列化/反序列化/构造的调用方。
var (
	// ErrTypeNotAnnounced 查找一个从未 announce 过的类型。
	ErrTypeNotAnnounced = errors.Normalize(
		"type %s is not announced",
		errors.RFCCodeText("UNIACTOR:ErrTypeNotAnnounced"),
	)
	// ErrTypeNameMismatch 反序列化时线上的类型名与当前描述符不一致。
	ErrTypeNameMismatch = errors.Normalize(
		"type name mismatch: expected %s, found %s",
		errors.RFCCodeText("UNIACTOR:ErrTypeNameMismatch"),
	)
	// ErrTagMismatch 对 Primitive 做类型化访问时标签不符。
	ErrTagMismatch = errors.Normalize(
		"primitive tag mismatch: expected %s, actual %s",
		errors.RFCCodeText("UNIACTOR:ErrTagMismatch"),
	)
	// ErrMalformedInput 输入流无法按约定解析。
	ErrMalformedInput = errors.Normalize(
		"malformed input: %s",
		errors.RFCCodeText("UNIACTOR:ErrMalformedInput"),
	)
	// ErrUnsupportedType 默认策略无法处理的 Go 类型（指针、chan、func 等）。
	ErrUnsupportedType = errors.Normalize(
		"unsupported type %s",
		errors.RFCCodeText("UNIACTOR:ErrUnsupportedType"),
	)
	// ErrInvalidAtom atom 字面量超长或含有非法字符。
	ErrInvalidAtom = errors.Normalize(
		"invalid atom %q: %s",
		errors.RFCCodeText("UNIACTOR:ErrInvalidAtom"),
	)
)
