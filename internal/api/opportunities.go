package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

type OpportunityHandler struct {
	deps Dependencies
}

func NewOpportunityHandler(deps Dependencies) *OpportunityHandler {
	return &OpportunityHandler{deps: deps}
}

// GetSnapshot returns the most recent scan cycle's full snapshot.
func (h *OpportunityHandler) GetSnapshot(c *gin.Context) {
	if h.deps.Scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner not running"})
		return
	}
	snapshot := h.deps.Scanner.Latest()
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scan completed yet"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetOpportunities returns the latest cycle's opportunities, optionally
// filtered to executable ones and truncated to a limit.
func (h *OpportunityHandler) GetOpportunities(c *gin.Context) {
	if h.deps.Scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner not running"})
		return
	}
	snapshot := h.deps.Scanner.Latest()
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scan completed yet"})
		return
	}

	executableOnly := c.Query("executable") == "true"
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	opportunities := make([]models.Opportunity, 0, len(snapshot.Opportunities))
	for _, opp := range snapshot.Opportunities {
		if executableOnly && !opp.Executable {
			continue
		}
		opportunities = append(opportunities, opp)
		if len(opportunities) >= limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"venue":         snapshot.Venue,
		"captured_at":   snapshot.Timestamp,
		"count":         len(opportunities),
		"opportunities": opportunities,
	})
}
