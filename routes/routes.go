package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stock_watchlist_backend/controllers"
)

// Handlers holds everything the router serves
type Handlers struct {
	Stock     *controllers.StockController
	Watchlist *controllers.WatchlistController
	History   *controllers.HistoryController
	Health    *controllers.HealthController

	// WebSocket serves the real-time price stream
	WebSocket http.HandlerFunc
	// Metrics serves the Prometheus scrape endpoint
	Metrics http.Handler
	// LookupLimit guards endpoints that may call the quote source
	LookupLimit gin.HandlerFunc
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	lookup := []gin.HandlerFunc{}
	if h.LookupLimit != nil {
		lookup = append(lookup, h.LookupLimit)
	}

	// Stock routes
	router.GET("/stock", append(lookup, h.Stock.GetStock)...)
	router.GET("/search", append(lookup, h.Stock.Search)...)
	router.GET("/stock/history", h.History.GetHistory)

	// Watchlist routes
	watchlist := router.Group("/watchlist")
	{
		watchlist.POST("", h.Watchlist.Add)
		watchlist.GET("", h.Watchlist.List)
		watchlist.DELETE("", h.Watchlist.DeleteByTicker)
		watchlist.DELETE("/:id", h.Watchlist.DeleteByID)
		watchlist.POST("/remove", h.Watchlist.Remove)
	}

	// Real-time transport
	if h.WebSocket != nil {
		router.GET("/ws-plain", gin.WrapF(h.WebSocket))
	}
}
