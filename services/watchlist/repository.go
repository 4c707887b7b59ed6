package watchlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"stock_watchlist_backend/models"
)

var (
	ErrNotFound      = errors.New("watchlist entry not found")
	ErrInvalidTicker = errors.New("ticker must not be blank")
)

// Repository manages watchlist rows. The same ticker may be added more than once;
// each add is its own row.
type Repository struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewRepository(db *gorm.DB, clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repository{db: db, clock: clock}
}

// Add stores an uppercase ticker stamped with the current time
func (r *Repository) Add(ctx context.Context, ticker string) (*models.WatchlistEntry, error) {
	key := models.NormalizeTicker(ticker)
	if key == "" {
		return nil, ErrInvalidTicker
	}

	entry := &models.WatchlistEntry{Ticker: key, AddedAt: r.clock.Now().UnixMilli()}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to add %s to watchlist: %w", key, err)
	}
	return entry, nil
}

// List returns every entry, newest first
func (r *Repository) List(ctx context.Context) ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	err := r.db.WithContext(ctx).
		Order("added_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return entries, nil
}

// ListTracked returns the tickers the refresh loop should update, newest first.
func (r *Repository) ListTracked(ctx context.Context) ([]models.TrackedTicker, error) {
	var tracked []models.TrackedTicker
	err := r.db.WithContext(ctx).
		Model(&models.WatchlistEntry{}).
		Select("id", "ticker").
		Order("added_at DESC").
		Order("id DESC").
		Scan(&tracked).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked tickers: %w", err)
	}
	return tracked, nil
}

// DeleteByID removes one row; ErrNotFound when it does not exist
func (r *Repository) DeleteByID(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.WatchlistEntry{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete watchlist entry %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByTicker removes every row for the ticker and returns how many were deleted
func (r *Repository) DeleteByTicker(ctx context.Context, ticker string) (int64, error) {
	key := models.NormalizeTicker(ticker)
	if key == "" {
		return 0, ErrInvalidTicker
	}

	res := r.db.WithContext(ctx).Where("ticker = ?", key).Delete(&models.WatchlistEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete %s from watchlist: %w", key, res.Error)
	}
	return res.RowsAffected, nil
}
