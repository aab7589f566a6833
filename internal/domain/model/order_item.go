package model

// OrderItem は注文確定時点のスナップショット。
// カタログが変わっても過去の注文は変わらない。
type OrderItem struct {
	ProductID           string  `json:"productId"`
	ProductNameSnapshot string  `json:"productName,omitempty"`
	UnitPriceSnapshot   float64 `json:"unitPrice"`
	ImageSnapshot       string  `json:"image,omitempty"`
	Quantity            int64   `json:"quantity"`
}
