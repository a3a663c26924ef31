package repository

import (
	"context"
	"time"

	"PulseFM/cache"
	"PulseFM/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryRepository 播放历史仓储接口
type HistoryRepository interface {
	Record(ctx context.Context, t model.Track) error
	Top(ctx context.Context, n int) ([]model.PlayHistory, error)
	Recent(ctx context.Context, n int) ([]model.Track, error)
}

// GormHistoryRepository MySQL落库 + Redis最近播放列表
type GormHistoryRepository struct {
	db     *gorm.DB
	recent *cache.RecentPlays // 可为 nil
}

// NewGormHistoryRepository 创建历史仓储
func NewGormHistoryRepository(db *gorm.DB, recent *cache.RecentPlays) *GormHistoryRepository {
	return &GormHistoryRepository{db: db, recent: recent}
}

// Record 记录一次播放：按定位串聚合，播放次数+1
func (r *GormHistoryRepository) Record(ctx context.Context, t model.Track) error {
	if r.recent != nil {
		_ = r.recent.Push(ctx, t)
	}
	if r.db == nil {
		return nil
	}

	entry := model.PlayHistory{
		Locator:      t.Locator,
		Title:        t.Title,
		Kind:         t.Kind,
		ThumbnailURL: t.ThumbnailURL,
		PlayCount:    1,
		LastPlayedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "locator"}},
		DoUpdates: clause.Assignments(map[string]any{
			"play_count":     gorm.Expr("play_count + 1"),
			"last_played_at": time.Now(),
			"title":          entry.Title,
			"thumbnail_url":  entry.ThumbnailURL,
		}),
	}).Create(&entry).Error
}

// Top 按播放次数取前n条
func (r *GormHistoryRepository) Top(ctx context.Context, n int) ([]model.PlayHistory, error) {
	if r.db == nil {
		return nil, nil
	}
	var out []model.PlayHistory
	err := r.db.WithContext(ctx).
		Order("play_count DESC, last_played_at DESC").
		Limit(n).
		Find(&out).Error
	return out, err
}

// Recent 最近播放（优先走Redis列表，Redis不可用时退回数据库）
func (r *GormHistoryRepository) Recent(ctx context.Context, n int) ([]model.Track, error) {
	if r.recent != nil {
		if tracks, err := r.recent.List(ctx, n); err == nil && len(tracks) > 0 {
			return tracks, nil
		}
	}
	if r.db == nil {
		return nil, nil
	}
	var rows []model.PlayHistory
	if err := r.db.WithContext(ctx).
		Order("last_played_at DESC").
		Limit(n).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	tracks := make([]model.Track, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, model.Track{
			Locator:      row.Locator,
			Title:        row.Title,
			Kind:         row.Kind,
			ThumbnailURL: row.ThumbnailURL,
		})
	}
	return tracks, nil
}
