package ipc

import "errors"

var (
	// ErrChannelTimeout 命令在超时窗口内没有等到响应
	ErrChannelTimeout = errors.New("ipc: command timed out")

	// ErrChannelClosed 底层连接未建立或已断开
	ErrChannelClosed = errors.New("ipc: channel closed")

	// ErrStaleSession 调用方持有的会话令牌已失效（引擎重启后）
	ErrStaleSession = errors.New("ipc: stale session token")

	// ErrEngineError 引擎对命令返回了错误结果
	ErrEngineError = errors.New("ipc: engine rejected command")
)
