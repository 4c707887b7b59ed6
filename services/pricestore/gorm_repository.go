package pricestore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_watchlist_backend/models"
)

// GormRepository stores prices in the stocks table (Postgres or SQLite).
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Find returns the record for an uppercase ticker
func (r *GormRepository) Find(ctx context.Context, ticker string) (*models.StockPrice, error) {
	var rec models.StockPrice
	err := r.db.WithContext(ctx).Where("ticker = ?", ticker).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load price for %s: %w", ticker, err)
	}
	return &rec, nil
}

// Upsert inserts or overwrites the record in a single statement
func (r *GormRepository) Upsert(ctx context.Context, rec *models.StockPrice) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "fetched_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save price for %s: %w", rec.Ticker, err)
	}
	return nil
}
