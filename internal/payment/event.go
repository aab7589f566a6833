package payment

import "errors"

// Webhookで扱うイベント種別。これ以外は「受理して無視」。
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventChargeSucceeded          = "charge.succeeded"
	EventChargeUpdated            = "charge.updated"
)

var ErrBadSignature = errors.New("webhook verification failed")

// CheckoutSessionEvent は session.completed のペイロード。
// Metadata がチェックアウト時に埋めた唯一の持ち回りチャネル。
type CheckoutSessionEvent struct {
	ID              string
	CustomerID      string
	PaymentIntentID string
	AmountTotal     int64 // 最小通貨単位
	AmountDiscount  int64
	Currency        string
	Metadata        map[string]string
}

// ChargeEvent は charge.succeeded / charge.updated のペイロード。
// orderNumber は乗っていない（paymentIntentで突合する）。
type ChargeEvent struct {
	ID              string
	PaymentIntentID string
	Status          string
	ReceiptURL      string
	FailureMessage  string
}

// Event は検証済みのWebhookイベント。Typeに応じてどちらかが入る。
type Event struct {
	Type    string
	Session *CheckoutSessionEvent
	Charge  *ChargeEvent
}

// EventVerifier は生ボディ＋署名ヘッダからイベントを検証・復元する。
// 検証は必ず再シリアライズ前の生バイト列に対して行うこと。
type EventVerifier interface {
	Verify(payload []byte, sigHeader string, secret string) (Event, error)
}
