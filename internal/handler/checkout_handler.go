package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"app/internal/basket"
	"app/internal/domain/model"
	"app/internal/usecase"
)

type CheckoutItemRequest struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Price     *float64 `json:"price"` // カタログ未同期はnull
	Image     string   `json:"image"`
	Quantity  int64    `json:"quantity"`
}

type CheckoutRequest struct {
	Items         []CheckoutItemRequest `json:"items"`
	CustomerName  string                `json:"customer_name"`
	CustomerEmail string                `json:"customer_email"`
	UserRef       string                `json:"user_ref"`
}

type CheckoutResponse struct {
	URL         string `json:"url"`
	OrderNumber string `json:"order_number"`
}

// /checkout：バスケットをホスト型決済セッションへ変換する
type CheckoutHandler struct {
	uc *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/checkout", h.create)
}

func (h *CheckoutHandler) create(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	items := make([]basket.Line, 0, len(req.Items))
	for _, it := range req.Items {
		p := model.ProductRef{ID: it.ProductID, Name: it.Name, Image: it.Image}
		if it.Price != nil {
			d := decimal.NewFromFloat(*it.Price)
			p.Price = &d
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, basket.Line{Product: p, Quantity: qty})
	}

	// orderNumberはチェックアウト試行ごとに新規採番（フロー全体の冪等キー）
	meta := usecase.CheckoutMetadata{
		OrderNumber:   uuid.NewString(),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		UserRef:       req.UserRef,
	}

	url, err := h.uc.CreateCheckoutSession(c.Request().Context(), items, meta)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, CheckoutResponse{URL: url, OrderNumber: meta.OrderNumber})
}
