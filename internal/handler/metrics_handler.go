package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetcircle/shuttle-ops-api/internal/service"
	"github.com/fleetcircle/shuttle-ops-api/pkg/response"
)

// MetricsHandler exposes the scrape endpoint, an admin snapshot and the
// health probe.
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

func (h *MetricsHandler) unavailable(c *gin.Context) bool {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return true
	}
	return false
}

// Prometheus serves the Prometheus scrape endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.unavailable(c) {
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Snapshot serves an aggregated JSON view of runtime metrics for admins.
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	if h.unavailable(c) {
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// Health is the readiness/liveness probe.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
