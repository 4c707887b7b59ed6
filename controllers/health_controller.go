package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether one dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// HealthController serves liveness and readiness checks
type HealthController struct {
	checks      map[string]ReadinessCheck
	subscribers interface{ Count() int }
}

func NewHealthController(subscribers interface{ Count() int }) *HealthController {
	return &HealthController{checks: make(map[string]ReadinessCheck), subscribers: subscribers}
}

// AddCheck registers a dependency checked by /ready
func (hc *HealthController) AddCheck(name string, check ReadinessCheck) {
	hc.checks[name] = check
}

// Health is the liveness check; it always returns OK while the server runs
// GET /health
func (hc *HealthController) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if hc.subscribers != nil {
		resp["subscribers"] = hc.subscribers.Count()
	}
	c.JSON(http.StatusOK, resp)
}

// Ready runs every readiness check
// GET /ready
func (hc *HealthController) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range hc.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"failed": failed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
