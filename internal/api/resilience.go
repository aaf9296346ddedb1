package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ResilienceHandler struct {
	deps Dependencies
}

func NewResilienceHandler(deps Dependencies) *ResilienceHandler {
	return &ResilienceHandler{deps: deps}
}

// GetBreakerStates exposes every circuit breaker's current state.
func (h *ResilienceHandler) GetBreakerStates(c *gin.Context) {
	if h.deps.Gateway == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"breakers": h.deps.Gateway.BreakerStates()})
}

// InvalidateTickers drops the venue's cached tickers, forcing the next scan
// cycle to fetch live data.
func (h *ResilienceHandler) InvalidateTickers(c *gin.Context) {
	if h.deps.Gateway == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway not configured"})
		return
	}
	venue := c.Query("venue")
	if venue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "venue query parameter is required"})
		return
	}
	dropped := h.deps.Gateway.InvalidateTickers(venue)
	h.deps.Logger.WithField("venue", venue).WithField("dropped", dropped).Info("Ticker cache invalidated via API")
	c.JSON(http.StatusOK, gin.H{"venue": venue, "invalidated": dropped})
}
