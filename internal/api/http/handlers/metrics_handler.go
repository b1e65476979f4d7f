package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/realtime"
)

// MetricsHandler exposes in-process counters and event-channel stats.
type MetricsHandler struct {
	metrics *observability.Metrics
	hub     *realtime.Hub
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metrics *observability.Metrics, hub *realtime.Hub) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, hub: hub}
}

// Get handles GET /metrics.
func (h *MetricsHandler) Get(c *fiber.Ctx) error {
	resp := fiber.Map{"http": h.metrics.Snapshot()}
	if h.hub != nil {
		resp["realtime"] = h.hub.Stats()
	}
	return c.JSON(resp)
}
