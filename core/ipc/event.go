package ipc

import "encoding/json"

// 引擎异步事件名
const (
	EventStartFile      = "start-file"      // 开始加载新文件
	EventEndFile        = "end-file"        // 当前文件播放结束
	EventPropertyChange = "property-change" // 被观察属性发生变化
	EventIdle           = "idle"            // 引擎进入空闲
	EventEngineLost     = "engine-lost"     // 连接断开/进程退出（由监听器合成，只派发一次）
)

// 结束原因（end-file 事件的 reason 字段）
const (
	ReasonEOF   = "eof"   // 自然播完
	ReasonStop  = "stop"  // 停止命令
	ReasonError = "error" // 加载或解码失败
)

// Event 解码后的引擎事件
type Event struct {
	Name     string // 事件名
	Reason   string // 结束原因，仅 end-file
	Path     string // 关联的资源定位串，仅 start-file / end-file
	EntryID  int64  // 引擎侧单调递增的加载序号，0=未知；用于事件去重
	Property string // 属性名，仅 property-change
	Value    any    // 属性值，仅 property-change
}

// EventHandler 事件处理器。按引擎发出的顺序被调用，
// 处理器需容忍重复投递。
type EventHandler func(Event)

// wireFrame 线上帧。请求帧带 request_id；响应帧回显 request_id；
// 事件帧带 event 且无 request_id。
type wireFrame struct {
	// 响应字段
	RequestID int64           `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	// 事件字段
	Event   string          `json:"event,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Path    string          `json:"path,omitempty"`
	EntryID int64           `json:"playlist_entry_id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// wireRequest 请求帧
type wireRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}
