package server

import (
	"net/http"
	"time"

	"PulseFM/core/broadcast"
	"PulseFM/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// WebSocketStreamHandler GET /ws/stream 二进制帧推送音频。
// 心跳标记转成ws ping帧，其余与HTTP流一致。
func (h *APIHandler) WebSocketStreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	client := h.broadcaster.Attach(streamClientHint(r, broadcast.TransportWebSocket))
	defer h.broadcaster.Detach(client.ID)

	// 读泵只用于断开探测，收到什么都丢掉
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.broadcaster.Detach(client.ID)
				return
			}
		}
	}()

	for {
		select {
		case <-client.Done():
			return
		case frame := <-client.Frames():
			switch {
			case frame.IsEOS():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of stream"),
					time.Now().Add(wsWriteTimeout))
				return
			case frame.IsHeartbeat():
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			default:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
					logger.Debug("websocket stream write failed",
						logger.String("client", client.ID),
						logger.ErrorField(err))
					return
				}
			}
		}
	}
}
