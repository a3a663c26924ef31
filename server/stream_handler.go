package server

import (
	"net/http"

	"PulseFM/core/broadcast"
	"PulseFM/logger"
)

// streamClientHint 从请求提取分档特征，?profile= 显式覆盖优先
func streamClientHint(r *http.Request, transport broadcast.Transport) broadcast.ClientHint {
	return broadcast.ClientHint{
		Transport:    transport,
		UserAgent:    r.UserAgent(),
		ProfileParam: r.URL.Query().Get("profile"),
	}
}

// StreamHandler GET /stream 持续开着的分块音频字节流。
// 每个连接挂一个广播消费端，节奏互不影响；心跳只用于维持
// 消费循环的活性，不向线上写任何字节。
func (h *APIHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := h.broadcaster.Attach(streamClientHint(r, broadcast.TransportHTTP))
	defer h.broadcaster.Detach(client.ID)

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case frame := <-client.Frames():
			switch {
			case frame.IsEOS():
				logger.Debug("stream client finished",
					logger.String("client", client.ID),
					logger.Int64("lastSeq", client.LastSeq()))
				return
			case frame.IsHeartbeat():
				// 静默期的活性标记；线上的keepalive由传输层自己处理
				continue
			default:
				if _, err := w.Write(frame.Data); err != nil {
					logger.Debug("stream client write failed",
						logger.String("client", client.ID),
						logger.ErrorField(err))
					return
				}
				flusher.Flush()
			}
		}
	}
}
