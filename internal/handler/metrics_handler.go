package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook/internal/dto"
	"github.com/noah-isme/gradebook/internal/service"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	sync    syncStatusSource
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, sync syncStatusSource) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, sync: sync}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports the persistence state. The gradebook keeps serving from
// memory when saving fails, so a failing backend degrades rather than fails
// readiness.
func (h *MetricsHandler) Ready(c *gin.Context) {
	resp := dto.ReadinessResponse{Status: "ready"}
	if h.sync != nil {
		resp.Sync = h.sync.Status()
		if resp.Sync.LastError != "" || resp.Sync.LoadWarning != "" {
			resp.Status = "degraded"
		}
	}
	c.JSON(http.StatusOK, resp)
}
