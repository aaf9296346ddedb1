package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/arbihedron/arbihedron-go/internal/database"
	"github.com/arbihedron/arbihedron-go/internal/services"
)

// Dependencies carries everything the HTTP surface reads from. Optional
// collaborators may be nil; the affected endpoints degrade gracefully.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisClient
	Repository *database.Repository
	Scanner    *services.MarketScanner
	Gateway    *services.MarketGateway
	Executor   *services.TradeExecutor
	Logger     *logrus.Logger
}

// SetupRoutes registers the monitoring and data endpoints.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	health := NewHealthHandler(deps)
	router.GET("/health", health.HealthCheck)
	router.GET("/health/live", health.LivenessCheck)
	router.GET("/health/ready", health.ReadinessCheck)

	v1 := router.Group("/api/v1")
	{
		opportunities := NewOpportunityHandler(deps)
		v1.GET("/snapshot", opportunities.GetSnapshot)
		v1.GET("/opportunities", opportunities.GetOpportunities)

		executions := NewExecutionHandler(deps)
		v1.GET("/executions", executions.GetExecutions)
		v1.GET("/executions/stats", executions.GetStats)

		resilience := NewResilienceHandler(deps)
		v1.GET("/circuit-breakers", resilience.GetBreakerStates)
		v1.POST("/cache/invalidate", resilience.InvalidateTickers)
	}
}
