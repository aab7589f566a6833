package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger はコンテンツストアの疎通確認。
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)
}

func (h *HealthHandler) health(c echo.Context) error {
	if err := h.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "down",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "up",
	})
}
