package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// rank は前進専用の遷移順。大きいほど後の状態。
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusPaid:
		return 1
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo は next への遷移が前進かどうか。
// 照合処理はpaidより後の状態をpendingやpaidへ戻してはいけない。
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	return next.rank() > s.rank()
}

// Order はコンテンツストア上の注文ドキュメント。
// orderNumber が自然キー。_id は order-<orderNumber> で決定的に振る。
type Order struct {
	ID  string `json:"_id,omitempty"`
	Rev string `json:"_rev,omitempty"`
	Typ string `json:"_type"`

	OrderNumber  string `json:"orderNumber"`
	CustomerName string `json:"customerName,omitempty"`
	Email        string `json:"email,omitempty"`
	UserRef      string `json:"userRef,omitempty"`

	StripeCheckoutSessionID string `json:"stripeCheckoutSessionId,omitempty"`
	StripeCustomerID        string `json:"stripeCustomerId,omitempty"`
	StripePaymentIntentID   string `json:"stripePaymentIntentId,omitempty"`

	TotalPrice     float64 `json:"totalPrice"`
	Currency       string  `json:"currency,omitempty"`
	AmountDiscount float64 `json:"amountDiscount"`

	Status    OrderStatus `json:"status"`
	OrderDate time.Time   `json:"orderDate"`

	// charge イベント由来の補足フィールド（statusは変えない）
	ChargeStatus   string `json:"chargeStatus,omitempty"`
	ReceiptURL     string `json:"receiptUrl,omitempty"`
	FailureMessage string `json:"failureMessage,omitempty"`

	Items []OrderItem `json:"items,omitempty"`
}

const OrderDocType = "order"

// DocumentID は orderNumber から決まるドキュメントID。
// createIfNotExists と組み合わせて同時配送でも二重作成しないため。
func DocumentID(orderNumber string) string {
	return "order-" + orderNumber
}
