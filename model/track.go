package model

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// TrackKind 曲目类型
type TrackKind string

const (
	KindLocal  TrackKind = "local"  // 本地文件
	KindStream TrackKind = "stream" // 在线串流（YouTube等）
)

// Track 播放队列中的一条曲目。
// 放入队列后不可变，Locator 是其唯一标识。
type Track struct {
	Locator      string    `json:"locator"`                // 本地路径或远程URL
	Title        string    `json:"title"`
	Kind         TrackKind `json:"kind"`
	Duration     float64   `json:"duration,omitempty"`     // 秒，0=未知
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"` // 缩略图（仅串流）
	ResolvedURL  string    `json:"-"`                      // 解析后的可播放地址，不暴露给API
	AddedAt      time.Time `json:"addedAt"`
}

// NewLocalTrack 从本地文件路径创建曲目，标题取自文件名
func NewLocalTrack(path string) Track {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return Track{
		Locator: path,
		Title:   name,
		Kind:    KindLocal,
		AddedAt: time.Now(),
	}
}

// NewStreamTrack 从远程URL创建曲目，标题等元数据在解析后回填
func NewStreamTrack(rawURL string) Track {
	t := Track{
		Locator: rawURL,
		Kind:    KindStream,
		AddedAt: time.Now(),
	}
	if id := t.VideoID(); id != "" {
		t.ThumbnailURL = "https://img.youtube.com/vi/" + id + "/maxresdefault.jpg"
	}
	return t
}

// IsStream 是否为串流曲目
func (t Track) IsStream() bool { return t.Kind == KindStream }

// Resolved 串流曲目是否已完成解析（本地曲目恒为真）
func (t Track) Resolved() bool { return t.Kind != KindStream || t.ResolvedURL != "" }

// PlayableURL 交给引擎加载的地址：串流用解析结果，本地用路径
func (t Track) PlayableURL() string {
	if t.IsStream() && t.ResolvedURL != "" {
		return t.ResolvedURL
	}
	return t.Locator
}

// VideoID 从 YouTube URL 提取视频ID，兼容 watch/shorts/embed/youtu.be 链接
func (t Track) VideoID() string {
	u, err := url.Parse(t.Locator)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	path := u.Path

	switch {
	case strings.Contains(host, "youtube.com") && strings.Contains(path, "watch"):
		return u.Query().Get("v")
	case strings.Contains(host, "youtube.com") && strings.HasPrefix(path, "/shorts/"):
		return strings.SplitN(strings.TrimPrefix(path, "/shorts/"), "/", 2)[0]
	case strings.Contains(host, "youtube.com") && strings.HasPrefix(path, "/embed/"):
		return strings.SplitN(strings.TrimPrefix(path, "/embed/"), "/", 2)[0]
	case strings.Contains(host, "youtu.be"):
		return strings.SplitN(strings.TrimPrefix(path, "/"), "?", 2)[0]
	}
	return ""
}
