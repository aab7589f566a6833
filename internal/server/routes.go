package server

import (
	"github.com/labstack/echo/v4"

	"app/internal/handler"
)

func RegisterRoutes(
	e *echo.Echo,
	checkoutH *handler.CheckoutHandler,
	webhookH *handler.WebhookHandler,
	orderH *handler.OrderHandler,
	healthH *handler.HealthHandler,
) {
	checkoutH.RegisterRoutes(e)
	webhookH.RegisterRoutes(e)
	orderH.RegisterRoutes(e)
	healthH.RegisterRoutes(e)
}
