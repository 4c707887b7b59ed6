package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_watchlist_backend/models"
	"stock_watchlist_backend/services/watchlist"
)

type WatchlistStore interface {
	Add(ctx context.Context, ticker string) (*models.WatchlistEntry, error)
	List(ctx context.Context) ([]models.WatchlistEntry, error)
	DeleteByID(ctx context.Context, id uint) error
	DeleteByTicker(ctx context.Context, ticker string) (int64, error)
}

// WatchlistController manages the watched tickers
type WatchlistController struct {
	repo   WatchlistStore
	logger *zap.Logger
}

func NewWatchlistController(repo WatchlistStore, logger *zap.Logger) *WatchlistController {
	return &WatchlistController{repo: repo, logger: logger}
}

type entryResource struct {
	models.WatchlistEntry
	Links Links `json:"_links"`
}

// Add adds a ticker to the watchlist
// POST /watchlist?ticker=
func (wc *WatchlistController) Add(c *gin.Context) {
	ticker := c.Query("ticker")
	if strings.TrimSpace(ticker) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}

	entry, err := wc.repo.Add(c.Request.Context(), ticker)
	if err != nil {
		wc.logger.Error("failed to add watchlist entry", zap.String("ticker", ticker), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add to watchlist"})
		return
	}

	c.JSON(http.StatusOK, entryResource{
		WatchlistEntry: *entry,
		Links:          Links{"watchlist": {Href: absoluteURL(c, "/watchlist", nil)}},
	})
}

// List returns the watchlist, newest first
// GET /watchlist
func (wc *WatchlistController) List(c *gin.Context) {
	entries, err := wc.repo.List(c.Request.Context())
	if err != nil {
		wc.logger.Error("failed to list watchlist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load watchlist"})
		return
	}

	listURL := absoluteURL(c, "/watchlist", nil)
	resources := make([]entryResource, 0, len(entries))
	for _, e := range entries {
		resources = append(resources, entryResource{
			WatchlistEntry: e,
			Links:          Links{"watchlist": {Href: listURL}},
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"_embedded": gin.H{"watchlistEntryList": resources},
		"_links":    Links{"self": {Href: listURL}},
	})
}

// DeleteByID removes one entry
// DELETE /watchlist/:id
func (wc *WatchlistController) DeleteByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	wc.deleteByID(c, uint(id))
}

// DeleteByTicker removes every entry for a ticker
// DELETE /watchlist?ticker=
func (wc *WatchlistController) DeleteByTicker(c *gin.Context) {
	ticker := c.Query("ticker")
	if strings.TrimSpace(ticker) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}
	wc.deleteByTicker(c, ticker)
}

// Remove deletes by id when given, otherwise by ticker
// POST /watchlist/remove?id=|ticker=
func (wc *WatchlistController) Remove(c *gin.Context) {
	if raw := c.Query("id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		wc.deleteByID(c, uint(id))
		return
	}

	if ticker := c.Query("ticker"); strings.TrimSpace(ticker) != "" {
		wc.deleteByTicker(c, ticker)
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "id or ticker required"})
}

func (wc *WatchlistController) deleteByID(c *gin.Context, id uint) {
	err := wc.repo.DeleteByID(c.Request.Context(), id)
	if errors.Is(err, watchlist.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "watchlist entry not found"})
		return
	}
	if err != nil {
		wc.logger.Error("failed to delete watchlist entry", zap.Uint("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete watchlist entry"})
		return
	}
	c.Status(http.StatusOK)
}

func (wc *WatchlistController) deleteByTicker(c *gin.Context, ticker string) {
	n, err := wc.repo.DeleteByTicker(c.Request.Context(), ticker)
	if err != nil {
		wc.logger.Error("failed to delete watchlist ticker", zap.String("ticker", ticker), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete watchlist entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
