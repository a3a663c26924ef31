package model

// PlayerStatus 播放器状态机的状态
type PlayerStatus string

const (
	StatusIdle    PlayerStatus = "idle"
	StatusLoading PlayerStatus = "loading"
	StatusPlaying PlayerStatus = "playing"
	StatusPaused  PlayerStatus = "paused"
	StatusStopped PlayerStatus = "stopped"
	StatusError   PlayerStatus = "error"
)

// LoopMode 循环模式
type LoopMode string

const (
	LoopNone   LoopMode = "none"   // 播完移除
	LoopSingle LoopMode = "single" // 单曲循环
	LoopAll    LoopMode = "all"    // 列表循环
)

// ParseLoopMode 解析循环模式字符串，非法值回退到 none
func ParseLoopMode(s string) LoopMode {
	switch LoopMode(s) {
	case LoopSingle:
		return LoopSingle
	case LoopAll:
		return LoopAll
	default:
		return LoopNone
	}
}

// StatusSnapshot 对外只读的状态投影，按需刷新，从不推送
type StatusSnapshot struct {
	State      PlayerStatus `json:"state"`
	Position   float64      `json:"position"`
	Duration   float64      `json:"duration"`
	Volume     int          `json:"volume"`
	Paused     bool         `json:"paused"`
	LoopMode   LoopMode     `json:"loopMode"`
	QueueLen   int          `json:"queueLen"`
	QueueIndex int          `json:"queueIndex"`
	Current    *Track       `json:"current,omitempty"`
	LastError  string       `json:"lastError,omitempty"`
}
