package broadcast

import (
	"strings"
	"time"
)

// Transport 客户端接入方式
type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

// Profile 能力档位：决定该客户端的队列深度、块大小和心跳节奏
type Profile struct {
	Name              string
	ChunkSize         int           // 单块字节数
	QueueDepth        int           // 有界队列深度
	HeartbeatInterval time.Duration // 心跳间隔
}

var (
	// ProfileGeneral 普通客户端：大块低频心跳，省开销
	ProfileGeneral = Profile{
		Name:              "general",
		ChunkSize:         32 * 1024,
		QueueDepth:        64,
		HeartbeatInterval: 30 * time.Second,
	}

	// ProfileConstrained 受限客户端（移动端/嵌入式）：小块高频心跳，避免长时间缓冲停顿
	ProfileConstrained = Profile{
		Name:              "constrained",
		ChunkSize:         4 * 1024,
		QueueDepth:        16,
		HeartbeatInterval: 5 * time.Second,
	}

	// ProfileWebSocket WebSocket客户端：中等块，心跳走ping帧
	ProfileWebSocket = Profile{
		Name:              "websocket",
		ChunkSize:         16 * 1024,
		QueueDepth:        32,
		HeartbeatInterval: 15 * time.Second,
	}
)

// 受限设备的UA特征
var constrainedUAHints = []string{
	"android", "iphone", "ipad", "mobile", "silk", "kindle", "raspberry", "curl",
}

// ClientHint 连接时可用的客户端特征
type ClientHint struct {
	Transport    Transport
	UserAgent    string
	ProfileParam string // 显式 ?profile= 覆盖，优先级最高
}

// Classify 把客户端特征映射到能力档位
func Classify(hint ClientHint) Profile {
	switch strings.ToLower(hint.ProfileParam) {
	case "constrained":
		return ProfileConstrained
	case "general":
		return ProfileGeneral
	}

	if hint.Transport == TransportWebSocket {
		return ProfileWebSocket
	}

	ua := strings.ToLower(hint.UserAgent)
	for _, h := range constrainedUAHints {
		if strings.Contains(ua, h) {
			return ProfileConstrained
		}
	}
	return ProfileGeneral
}
