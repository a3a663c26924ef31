package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"PulseFM/logger"
	"PulseFM/model"
)

// Resolved 解析工具的产出：可播放地址加元数据
type Resolved struct {
	StreamURL    string  `json:"streamUrl"`
	Title        string  `json:"title"`
	Duration     float64 `json:"duration"`
	ThumbnailURL string  `json:"thumbnailUrl"`
}

// Resolver 远程定位串的解析接口。
// 串流曲目播放前同步调用，失败以播放失败上报，队列不变。
type Resolver interface {
	Resolve(ctx context.Context, locator string) (Resolved, error)
}

// ResolveCache 解析结果缓存。解析出的地址上游会过期，缓存带TTL。
type ResolveCache interface {
	Get(ctx context.Context, locator string) (Resolved, bool)
	Put(ctx context.Context, locator string, r Resolved)
}

// YTDLPResolver 通过 yt-dlp 解析远程定位串
type YTDLPResolver struct {
	path    string
	timeout time.Duration
	cache   ResolveCache // 可为 nil
}

// NewYTDLPResolver 创建解析器，cache 传 nil 则不走缓存
func NewYTDLPResolver(path string, timeout time.Duration, cache ResolveCache) *YTDLPResolver {
	return &YTDLPResolver{path: path, timeout: timeout, cache: cache}
}

// ytdlpInfo yt-dlp -j 输出中用到的字段
type ytdlpInfo struct {
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail"`
}

// Resolve 解析定位串。先查缓存，未命中时执行 yt-dlp 并回填缓存。
func (r *YTDLPResolver) Resolve(ctx context.Context, locator string) (Resolved, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, locator); ok {
			logger.Debug("resolve cache hit", logger.String("locator", locator))
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := []string{
		"-j",
		"--no-playlist",
		"-f", "bestaudio",
		locator,
	}
	cmd := exec.CommandContext(ctx, r.path, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.Warn("yt-dlp failed",
			logger.String("locator", locator),
			logger.String("stderr", stderr.String()),
			logger.ErrorField(err))
		return Resolved{}, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return Resolved{}, fmt.Errorf("%w: bad metadata: %v", ErrResolutionFailed, err)
	}
	if info.URL == "" {
		return Resolved{}, fmt.Errorf("%w: no playable url in metadata", ErrResolutionFailed)
	}

	resolved := Resolved{
		StreamURL:    info.URL,
		Title:        info.Title,
		Duration:     info.Duration,
		ThumbnailURL: info.Thumbnail,
	}
	if r.cache != nil {
		r.cache.Put(ctx, locator, resolved)
	}
	return resolved, nil
}

// applyResolved 把解析结果回填到曲目上
func applyResolved(t model.Track, r Resolved) model.Track {
	t.ResolvedURL = r.StreamURL
	if r.Title != "" {
		t.Title = r.Title
	}
	if r.Duration > 0 {
		t.Duration = r.Duration
	}
	if r.ThumbnailURL != "" {
		t.ThumbnailURL = r.ThumbnailURL
	}
	return t
}
