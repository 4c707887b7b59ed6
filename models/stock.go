package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// StockPrice is the last known price of a ticker. One row per uppercase ticker,
// overwritten in place on every successful refresh.
type StockPrice struct {
	Ticker    string  `gorm:"primaryKey;size:32" json:"ticker" bson:"_id"`
	Price     float64 `gorm:"not null" json:"price" bson:"price"`
	FetchedAt int64   `gorm:"not null" json:"fetchedAt" bson:"fetched_at"` // epoch millis
}

// TableName keeps the table name stable regardless of naming strategy
func (StockPrice) TableName() string {
	return "stocks"
}

// FetchedTime returns FetchedAt as a time.Time
func (s StockPrice) FetchedTime() time.Time {
	return time.UnixMilli(s.FetchedAt)
}

// PriceUpdate is one record of a broadcast batch. Built fresh every tick, never persisted.
type PriceUpdate struct {
	ID        uint    `json:"id"`
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // epoch millis
}

// PriceHistoryPoint is a single successful refresh recorded in the price history log
type PriceHistoryPoint struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	FetchedAt int64   `json:"fetchedAt"`
}

// NormalizeTicker returns the storage key for a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// MigrateStockModels runs database migrations for stock-related models
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&StockPrice{},
	)
}
