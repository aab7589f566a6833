package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"app/internal/usecase"
)

type ReceivedResponse struct {
	Received bool `json:"received"`
}

// /webhook：プロバイダからの非同期イベント受け口
type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook", h.handle)
}

func (h *WebhookHandler) handle(c echo.Context) error {
	// 署名検証は生ボディに対して行うので、パースより先に読み切る
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")

	if err := h.uc.HandleEvent(c.Request().Context(), body, sig); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, ReceivedResponse{Received: true})
}
