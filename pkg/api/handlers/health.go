package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/verdantdigital/expressbuild/pkg/models"
)

// Pinger is a dependency checked by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and dependency health
type HealthHandler struct {
	database Pinger
	cache    Pinger
	now      func() time.Time
}

// NewHealthHandler creates a health handler. Nil dependencies are reported as disabled.
func NewHealthHandler(database, cache Pinger) *HealthHandler {
	return &HealthHandler{
		database: database,
		cache:    cache,
		now:      time.Now,
	}
}

// Health godoc
// @Summary Health check
// @Description Checks the fulfillment database and Redis
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Status:    "healthy",
		Database:  check(ctx, h.database),
		Cache:     check(ctx, h.cache),
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}

	if resp.Database == "down" || resp.Cache == "down" {
		resp.Status = "unhealthy"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}
