package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/tradequeue/internal/faulttolerance"
)

type HealthHandler struct {
	monitor *faulttolerance.HealthMonitor
}

func NewHealthHandler(monitor *faulttolerance.HealthMonitor) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// Health reports 503 only when a check is unhealthy; degraded still serves.
func (h *HealthHandler) Health(c *gin.Context) {
	overall := h.monitor.GetOverallHealth()

	status := http.StatusOK
	if overall == faulttolerance.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":    overall,
		"checks":    h.monitor.GetHealth(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
