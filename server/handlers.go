package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"PulseFM/core/broadcast"
	"PulseFM/core/player"
	"PulseFM/model"
	"PulseFM/repository"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	controller  *player.Controller
	broadcaster *broadcast.Broadcaster
	historyRepo repository.HistoryRepository // 可为 nil
}

// NewAPIHandler 创建API处理器
func NewAPIHandler(
	controller *player.Controller,
	broadcaster *broadcast.Broadcaster,
	historyRepo repository.HistoryRepository,
) *APIHandler {
	return &APIHandler{
		controller:  controller,
		broadcaster: broadcaster,
		historyRepo: historyRepo,
	}
}

// StatusHandler GET /api/status 只读状态快照
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Snapshot(r.Context()))
}

type playRequest struct {
	Locator string `json:"locator"`
	Index   *int   `json:"index"`
}

// PlayHandler POST /api/play 按定位串或队列下标播放
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	var err error
	switch {
	case req.Index != nil:
		err = h.controller.PlayIndex(*req.Index)
	case req.Locator != "":
		err = h.controller.Play(req.Locator)
	default:
		writeBadRequest(w, "locator or index required")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

// PauseHandler POST /api/pause
func (h *APIHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Pause(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

// ResumeHandler POST /api/resume
func (h *APIHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Resume(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

// StopHandler POST /api/stop
func (h *APIHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

// NextHandler POST /api/next
func (h *APIHandler) NextHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Next(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

// PrevHandler POST /api/prev
func (h *APIHandler) PrevHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Prev(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type seekRequest struct {
	Position float64 `json:"position"`
}

// SeekHandler POST /api/seek 跳到绝对位置
func (h *APIHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.controller.Seek(req.Position); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type volumeRequest struct {
	Volume int `json:"volume"`
}

// VolumeHandler POST /api/volume
func (h *APIHandler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.controller.SetVolume(req.Volume); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type loopRequest struct {
	Mode string `json:"mode"`
}

// LoopHandler POST /api/loop 设置循环模式
func (h *APIHandler) LoopHandler(w http.ResponseWriter, r *http.Request) {
	var req loopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	h.controller.SetLoopMode(model.ParseLoopMode(req.Mode))
	writeOK(w)
}

// ResetHandler POST /api/reset 从Error状态复位
func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	h.controller.Reset()
	writeOK(w)
}

type queueAddRequest struct {
	Locator string `json:"locator"`
	Next    bool   `json:"next"` // true=插到当前曲之后
}

// QueueHandler GET/POST/DELETE /api/queue
func (h *APIHandler) QueueHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"tracks": h.controller.QueueTracks(),
		})

	case http.MethodPost:
		var req queueAddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		if req.Locator == "" {
			writeBadRequest(w, "locator required")
			return
		}
		track := player.TrackFromLocator(req.Locator)
		var err error
		if req.Next {
			err = h.controller.InsertNext(track)
		} else {
			err = h.controller.Append(track)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)

	case http.MethodDelete:
		idxStr := r.URL.Query().Get("index")
		if idxStr == "" {
			h.controller.ClearQueue()
			writeOK(w)
			return
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			writeBadRequest(w, "invalid index")
			return
		}
		if err := h.controller.Remove(idx); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// QueueNextHandler POST /api/queue/next 插到当前曲之后
func (h *APIHandler) QueueNextHandler(w http.ResponseWriter, r *http.Request) {
	var req queueAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Locator == "" {
		writeBadRequest(w, "locator required")
		return
	}
	if err := h.controller.InsertNext(player.TrackFromLocator(req.Locator)); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ReorderHandler PUT /api/queue/reorder
func (h *APIHandler) ReorderHandler(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.controller.Reorder(req.From, req.To); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

// HistoryHandler GET /api/history 播放历史（?sort=top 按次数）
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.historyRepo == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}
	n := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 100 {
			n = v
		}
	}

	if r.URL.Query().Get("sort") == "top" {
		items, err := h.historyRepo.Top(r.Context(), n)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	items, err := h.historyRepo.Recent(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
