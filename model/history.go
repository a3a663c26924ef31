package model

import "time"

// PlayHistory 播放历史记录，按 Locator 聚合（播放次数 + 最近播放时间）
type PlayHistory struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Locator      string    `json:"locator" gorm:"uniqueIndex;size:512;not null"`
	Title        string    `json:"title" gorm:"size:255"`
	Kind         TrackKind `json:"kind" gorm:"size:16"`
	ThumbnailURL string    `json:"thumbnailUrl" gorm:"size:512"`
	PlayCount    int64     `json:"playCount" gorm:"not null;default:1"`
	LastPlayedAt time.Time `json:"lastPlayedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (PlayHistory) TableName() string { return "play_history" }
