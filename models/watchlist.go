package models

import (
	"gorm.io/gorm"
)

// WatchlistEntry is a ticker the system has been asked to keep refreshed
type WatchlistEntry struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Ticker  string `gorm:"index;size:32;not null" json:"ticker"`
	AddedAt int64  `gorm:"index" json:"addedAt"` // epoch millis
}

// TableName keeps the table name stable regardless of naming strategy
func (WatchlistEntry) TableName() string {
	return "watchlist"
}

// TrackedTicker is the read-only view of a watchlist entry consumed by the refresh scheduler
type TrackedTicker struct {
	ID     uint
	Ticker string
}

// MigrateWatchlistModels runs database migrations for watchlist models
func MigrateWatchlistModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&WatchlistEntry{},
	)
}
