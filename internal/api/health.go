package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var startTime = time.Now()

// staleScanThreshold marks the scanner unhealthy when no cycle has completed
// within this window.
const staleScanThreshold = 2 * time.Minute

type HealthHandler struct {
	deps Dependencies
}

type SystemStats struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	CPUPercent        float64 `json:"cpu_percent"`
}

type HealthResponse struct {
	Status          string            `json:"status"`
	Timestamp       time.Time         `json:"timestamp"`
	Uptime          string            `json:"uptime"`
	Services        map[string]string `json:"services"`
	CircuitBreakers map[string]string `json:"circuit_breakers,omitempty"`
	LastScan        *time.Time        `json:"last_scan,omitempty"`
	System          *SystemStats      `json:"system,omitempty"`
}

func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	services := make(map[string]string)

	if h.deps.DB != nil {
		if err := h.deps.DB.HealthCheck(c.Request.Context()); err != nil {
			services["database"] = "unhealthy: " + err.Error()
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "unhealthy: not configured"
	}

	if h.deps.Redis != nil {
		if err := h.deps.Redis.HealthCheck(c.Request.Context()); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "unhealthy: not configured"
	}

	response := HealthResponse{
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime).String(),
		Services:  services,
	}

	if h.deps.Scanner != nil {
		last := h.deps.Scanner.LastScan()
		if last.IsZero() {
			services["scanner"] = "unhealthy: no scan completed yet"
		} else {
			response.LastScan = &last
			if time.Since(last) > staleScanThreshold {
				services["scanner"] = "unhealthy: last scan too old"
			} else {
				services["scanner"] = "healthy"
			}
		}
	}

	if h.deps.Gateway != nil {
		response.CircuitBreakers = h.deps.Gateway.BreakerStates()
		services["gateway"] = "healthy"
		for name, state := range response.CircuitBreakers {
			if state == "open" {
				services["gateway"] = "unhealthy: circuit open for " + name
				break
			}
		}
	}

	response.System = collectSystemStats()

	response.Status = "healthy"
	for _, status := range services {
		if status != "healthy" {
			response.Status = "unhealthy"
			break
		}
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// LivenessCheck only confirms the process is responsive.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ReadinessCheck is stricter: the database must answer before the service
// takes traffic.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.deps.DB != nil {
		if err := h.deps.DB.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "reason": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

func collectSystemStats() *SystemStats {
	stats := &SystemStats{}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsedPercent = vm.UsedPercent
	}
	// Non-blocking sample: percent since the previous call.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	return stats
}
