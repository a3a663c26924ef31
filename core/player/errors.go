package player

import "errors"

var (
	// ErrDuplicateTrack 队列中已存在相同定位串的曲目，插入被拒绝
	ErrDuplicateTrack = errors.New("player: duplicate track in queue")

	// ErrResolutionFailed 外部解析工具未能产出可播放地址
	ErrResolutionFailed = errors.New("player: stream resolution failed")

	// ErrEngineLost 引擎进程/连接已死亡，等待监督者重建会话
	ErrEngineLost = errors.New("player: engine lost")

	// ErrInvalidIndex 队列下标越界
	ErrInvalidIndex = errors.New("player: queue index out of range")
)
