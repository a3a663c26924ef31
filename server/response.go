package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"PulseFM/core/ipc"
	"PulseFM/core/player"
	"PulseFM/logger"
)

// apiError 结构化失败结果，错误从不让进程退出
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Warn("response encode failed", logger.ErrorField(err))
		}
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError 把内部错误映射到错误码和HTTP状态
func writeError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal"
	)
	switch {
	case errors.Is(err, player.ErrDuplicateTrack):
		status, code = http.StatusConflict, "duplicate_track"
	case errors.Is(err, player.ErrResolutionFailed):
		status, code = http.StatusUnprocessableEntity, "resolution_failed"
	case errors.Is(err, player.ErrInvalidIndex):
		status, code = http.StatusBadRequest, "invalid_index"
	case errors.Is(err, player.ErrEngineLost):
		status, code = http.StatusServiceUnavailable, "engine_lost"
	case errors.Is(err, ipc.ErrChannelTimeout):
		status, code = http.StatusGatewayTimeout, "channel_timeout"
	case errors.Is(err, ipc.ErrChannelClosed), errors.Is(err, ipc.ErrStaleSession):
		status, code = http.StatusServiceUnavailable, "channel_closed"
	case errors.Is(err, ipc.ErrEngineError):
		status, code = http.StatusBadGateway, "engine_error"
	}
	writeJSON(w, status, apiError{Code: code, Message: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, apiError{Code: "bad_request", Message: msg})
}
