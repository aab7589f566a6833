package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// OrderUsecase は注文の参照系（書き込みはWebhookUsecaseだけが行う）。
type OrderUsecase struct {
	orders repo.OrderRepository
}

func NewOrderUsecase(orders repo.OrderRepository) *OrderUsecase {
	return &OrderUsecase{orders: orders}
}

type OrderItemOutput struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int64   `json:"quantity"`
}

type OrderOutput struct {
	OrderNumber    string            `json:"order_number"`
	CustomerName   string            `json:"customer_name"`
	Email          string            `json:"email"`
	Status         string            `json:"status"`
	TotalPrice     float64           `json:"total_price"`
	Currency       string            `json:"currency"`
	AmountDiscount float64           `json:"amount_discount"`
	ChargeStatus   string            `json:"charge_status,omitempty"`
	ReceiptURL     string            `json:"receipt_url,omitempty"`
	OrderDate      time.Time         `json:"order_date"`
	Items          []OrderItemOutput `json:"items"`
}

// ListMyOrders は自分の注文一覧（新しい順）。
func (u *OrderUsecase) ListMyOrders(ctx context.Context, userRef string) ([]OrderOutput, error) {
	if userRef == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid user")
	}

	orders, err := u.orders.ListByUserRef(ctx, userRef)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o))
	}
	return outs, nil
}

func (u *OrderUsecase) GetByOrderNumber(ctx context.Context, orderNumber string) (OrderOutput, error) {
	if orderNumber == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order number")
	}

	o, err := u.orders.FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toOrderOutput(o), nil
}

func toOrderOutput(o model.Order) OrderOutput {
	items := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Image:     it.ImageSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		OrderNumber:    o.OrderNumber,
		CustomerName:   o.CustomerName,
		Email:          o.Email,
		Status:         string(o.Status),
		TotalPrice:     o.TotalPrice,
		Currency:       o.Currency,
		AmountDiscount: o.AmountDiscount,
		ChargeStatus:   o.ChargeStatus,
		ReceiptURL:     o.ReceiptURL,
		OrderDate:      o.OrderDate,
		Items:          items,
	}
}
