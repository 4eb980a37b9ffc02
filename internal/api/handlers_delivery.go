// handlers_delivery.go - Webhook delivery log handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultRecentDeliveries = 50
	maxRecentDeliveries     = 500
)

// DeliveryHandlerImpl implements the DeliveryHandler interface
type DeliveryHandlerImpl struct {
	log DeliveryLog
}

// NewDeliveryHandler creates a new delivery handler. A nil log means the
// delivery log is disabled and every request gets 503.
func NewDeliveryHandler(log DeliveryLog) DeliveryHandler {
	return &DeliveryHandlerImpl{log: log}
}

// HandleStats returns per-flow totals, failures and average latency
func (h *DeliveryHandlerImpl) HandleStats(c echo.Context) error {
	if h.log == nil {
		return NewServiceUnavailableError("delivery log is disabled")
	}
	stats, err := h.log.Stats(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to query delivery stats", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// HandleRecent returns the latest webhook calls, newest first
func (h *DeliveryHandlerImpl) HandleRecent(c echo.Context) error {
	if h.log == nil {
		return NewServiceUnavailableError("delivery log is disabled")
	}

	limit := defaultRecentDeliveries
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = min(n, maxRecentDeliveries)
	}

	deliveries, err := h.log.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to query deliveries", err)
	}
	return c.JSON(http.StatusOK, deliveries)
}
