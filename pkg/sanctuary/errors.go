package sanctuary

import "errors"

var (
	// ErrPlacementExhausted 在重试上限内找不到空闲格子
	ErrPlacementExhausted = errors.New("placement exhausted")

	// ErrUnknownIdentity 目录无法解析实体ID
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrMalformedState 持久化数据格式错误（调用方应回退到安全默认值）
	ErrMalformedState = errors.New("malformed persisted state")
)

// isUnknown 判断错误是否为无法解析的实体
func isUnknown(err error) bool {
	return errors.Is(err, ErrUnknownIdentity)
}
