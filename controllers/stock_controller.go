package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_watchlist_backend/models"
	"stock_watchlist_backend/services/pricestore"
)

// PriceLookup resolves a ticker to its cached or freshly fetched price
type PriceLookup interface {
	Lookup(ctx context.Context, ticker string) (*models.StockPrice, error)
}

// StockController handles price lookups
type StockController struct {
	prices PriceLookup
	logger *zap.Logger
}

// NewStockController creates a new stock controller
func NewStockController(prices PriceLookup, logger *zap.Logger) *StockController {
	return &StockController{prices: prices, logger: logger}
}

type stockResource struct {
	models.StockPrice
	Links Links `json:"_links"`
}

// GetStock returns the price of a ticker, fetching it on a cache miss
// GET /stock?ticker=
func (sc *StockController) GetStock(c *gin.Context) {
	rec, ok := sc.lookup(c, "failed to fetch price")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, stockResource{
		StockPrice: *rec,
		Links: Links{
			"self":             {Href: absoluteURL(c, "/stock", tickerQuery(c.Query("ticker")))},
			"add-to-watchlist": {Href: absoluteURL(c, "/watchlist", tickerQuery(c.Query("ticker")))},
		},
	})
}

// Search looks up a ticker and links to adding it to the watchlist
// GET /search?ticker=
func (sc *StockController) Search(c *gin.Context) {
	rec, ok := sc.lookup(c, "failed to fetch")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, stockResource{
		StockPrice: *rec,
		Links: Links{
			"add-to-watchlist": {Href: absoluteURL(c, "/watchlist", tickerQuery(c.Query("ticker")))},
		},
	})
}

func (sc *StockController) lookup(c *gin.Context, unavailableMsg string) (*models.StockPrice, bool) {
	ticker := c.Query("ticker")
	if strings.TrimSpace(ticker) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return nil, false
	}

	rec, err := sc.prices.Lookup(c.Request.Context(), ticker)
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, pricestore.ErrInvalidTicker):
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
	case errors.Is(err, pricestore.ErrUnavailable):
		sc.logger.Warn("price lookup failed", zap.String("ticker", ticker), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": unavailableMsg})
	default:
		sc.logger.Error("price lookup error", zap.String("ticker", ticker), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load price"})
	}
	return nil, false
}
