package cache

import (
	"context"
	"encoding/json"

	"PulseFM/model"

	"github.com/redis/go-redis/v9"
)

const (
	recentKey    = "recent:plays"
	recentMaxLen = 50
)

// RecentPlays 最近播放的Redis封顶列表
type RecentPlays struct {
	client *redis.Client
}

// NewRecentPlays 创建最近播放缓存
func NewRecentPlays(client *redis.Client) *RecentPlays {
	return &RecentPlays{client: client}
}

// Push 记录一次播放，列表只保留最近若干条
func (r *RecentPlays) Push(ctx context.Context, t model.Track) error {
	if r.client == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, recentMaxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

// List 最近播放的前n条
func (r *RecentPlays) List(ctx context.Context, n int) ([]model.Track, error) {
	if r.client == nil {
		return nil, nil
	}
	if n <= 0 || n > recentMaxLen {
		n = recentMaxLen
	}
	items, err := r.client.LRange(ctx, recentKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	tracks := make([]model.Track, 0, len(items))
	for _, item := range items {
		var t model.Track
		if err := json.Unmarshal([]byte(item), &t); err == nil {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}
