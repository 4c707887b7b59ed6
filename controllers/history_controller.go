package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_watchlist_backend/models"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type HistoryReader interface {
	Recent(ctx context.Context, ticker string, limit int) ([]models.PriceHistoryPoint, error)
}

// HistoryController serves the price history log. A nil reader means history is disabled.
type HistoryController struct {
	history HistoryReader
	logger  *zap.Logger
}

func NewHistoryController(history HistoryReader, logger *zap.Logger) *HistoryController {
	return &HistoryController{history: history, logger: logger}
}

// GetHistory returns recent refreshes of a ticker, newest first
// GET /stock/history?ticker=&limit=
func (hc *HistoryController) GetHistory(c *gin.Context) {
	if hc.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price history is disabled"})
		return
	}

	ticker := models.NormalizeTicker(c.Query("ticker"))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	limit = min(limit, maxHistoryLimit)

	points, err := hc.history.Recent(c.Request.Context(), ticker, limit)
	if err != nil {
		hc.logger.Error("failed to read price history", zap.String("ticker", ticker), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read price history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker": ticker,
		"data":   points,
		"count":  len(points),
	})
}
