package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ExecutionHandler struct {
	deps Dependencies
}

func NewExecutionHandler(deps Dependencies) *ExecutionHandler {
	return &ExecutionHandler{deps: deps}
}

// GetExecutions returns recent execution records from the database, falling
// back to the executor's in-memory history when no repository is configured.
func (h *ExecutionHandler) GetExecutions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	if h.deps.Repository != nil {
		records, err := h.deps.Repository.RecentExecutions(c.Request.Context(), limit)
		if err != nil {
			h.deps.Logger.WithError(err).Error("Failed to load execution records")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load executions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(records), "executions": records})
		return
	}

	if h.deps.Executor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "executor not configured"})
		return
	}
	history := h.deps.Executor.History()
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"count": len(history), "executions": history})
}

// GetStats returns the executor's aggregate outcome statistics.
func (h *ExecutionHandler) GetStats(c *gin.Context) {
	if h.deps.Executor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "executor not configured"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Executor.Stats())
}
