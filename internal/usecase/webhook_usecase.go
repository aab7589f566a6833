package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"app/internal/domain/model"
	pay "app/internal/payment"
	repo "app/internal/repository"
)

// WebhookUsecase はプロバイダのイベントを注文ドキュメントへ冪等に反映する。
// 配送はat-least-once前提：同じイベントが何度来ても最終状態は同じになる。
type WebhookUsecase struct {
	verifier pay.EventVerifier
	orders   repo.OrderRepository
	secret   string
	log      *zerolog.Logger
}

func NewWebhookUsecase(verifier pay.EventVerifier, orders repo.OrderRepository, secret string, logger *zerolog.Logger) *WebhookUsecase {
	return &WebhookUsecase{verifier: verifier, orders: orders, secret: secret, log: logger}
}

// HandleEvent は生ボディ＋署名ヘッダを検証して種別ごとに反映する。
func (u *WebhookUsecase) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	if sigHeader == "" {
		return NewHTTPError(http.StatusBadRequest, "No signature")
	}
	if u.secret == "" {
		// クライアントではなく運用側の設定ミス
		u.log.Error().Msg("webhook secret not configured")
		return NewHTTPError(http.StatusInternalServerError, "Webhook secret not configured")
	}

	ev, err := u.verifier.Verify(payload, sigHeader, u.secret)
	if err != nil {
		if errors.Is(err, pay.ErrBadSignature) {
			u.log.Warn().Err(err).Msg("webhook verification failed")
			return NewHTTPError(http.StatusBadRequest, "Webhook verification failed")
		}
		u.log.Error().Err(err).Msg("webhook event decode failed")
		return NewHTTPError(http.StatusBadRequest, "invalid event payload")
	}

	switch ev.Type {
	case pay.EventCheckoutSessionCompleted:
		return u.applySessionCompleted(ctx, ev.Session)
	case pay.EventChargeSucceeded, pay.EventChargeUpdated:
		return u.applyCharge(ctx, ev.Charge)
	default:
		// 知らない種別は受理して無視（プロバイダは購読外のものも送ってくる）
		u.log.Info().Str("event_type", ev.Type).Msg("unhandled event type")
		return nil
	}
}

// applySessionCompleted は注文のcreate-or-patch。
// 決済はこのイベント時点で完了済みなので、作る時からstatusはpaid。
func (u *WebhookUsecase) applySessionCompleted(ctx context.Context, s *pay.CheckoutSessionEvent) error {
	orderNumber := s.Metadata["orderNumber"]
	if orderNumber == "" {
		// 支払い済みなのに注文を辿れない＝契約不整合。黙って捨てない。
		u.log.Error().Str("session_id", s.ID).Msg("completed session without orderNumber")
		return NewHTTPError(http.StatusBadRequest, "Missing orderNumber in metadata")
	}

	items := u.parseLineSnapshot(orderNumber, s.Metadata["products"])
	total := fromMinor(s.AmountTotal)
	discount := fromMinor(s.AmountDiscount)

	existing, err := u.orders.FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, repo.ErrNotFound) {
		order := model.Order{
			OrderNumber:             orderNumber,
			CustomerName:            s.Metadata["customerName"],
			Email:                   s.Metadata["customerEmail"],
			UserRef:                 s.Metadata["userRef"],
			StripeCheckoutSessionID: s.ID,
			StripeCustomerID:        s.CustomerID,
			StripePaymentIntentID:   s.PaymentIntentID,
			TotalPrice:              total,
			Currency:                s.Currency,
			AmountDiscount:          discount,
			Status:                  model.OrderStatusPaid,
			OrderDate:               time.Now().UTC(),
			Items:                   items,
		}
		if err := u.orders.Create(ctx, order); err != nil {
			return u.persistenceError(err, "create order", orderNumber)
		}
		u.log.Info().
			Str("order_number", orderNumber).
			Int("item_count", len(items)).
			Msg("order created from completed session")
		return nil
	}
	if err != nil {
		return u.persistenceError(err, "find order", orderNumber)
	}

	fields := map[string]any{
		"stripeCheckoutSessionId": s.ID,
		"stripeCustomerId":        s.CustomerID,
		"stripePaymentIntentId":   s.PaymentIntentID,
		"totalPrice":              total,
		"amountDiscount":          discount,
		"currency":                s.Currency,
		"items":                   items,
	}
	// 前進専用：shipped以降の注文をpaidへ巻き戻さない
	if existing.Status == model.OrderStatusPaid || existing.Status.CanAdvanceTo(model.OrderStatusPaid) {
		fields["status"] = string(model.OrderStatusPaid)
	}

	// openしたリビジョンを添えてCAS patch。不一致は再配送に任せる。
	if err := u.orders.Patch(ctx, existing.ID, existing.Rev, fields); err != nil {
		return u.persistenceError(err, "patch order", orderNumber)
	}

	u.log.Info().Str("order_number", orderNumber).Msg("order marked paid")
	return nil
}

// applyCharge は領収書・チャージ状態の補足更新。statusは触らない。
func (u *WebhookUsecase) applyCharge(ctx context.Context, ch *pay.ChargeEvent) error {
	if ch.PaymentIntentID == "" {
		u.log.Warn().Str("charge_id", ch.ID).Msg("charge event without payment intent")
		return nil
	}

	existing, err := u.orders.FindByPaymentIntentID(ctx, ch.PaymentIntentID)
	if errors.Is(err, repo.ErrNotFound) {
		// chargeはsession.completedより先に届くことがある。注文未作成は正常系。
		u.log.Warn().
			Str("charge_id", ch.ID).
			Str("payment_intent_id", ch.PaymentIntentID).
			Msg("order not found for charge")
		return nil
	}
	if err != nil {
		return u.persistenceError(err, "find order by payment intent", ch.PaymentIntentID)
	}

	fields := map[string]any{
		"chargeStatus": ch.Status,
		"receiptUrl":   ch.ReceiptURL,
	}
	if ch.FailureMessage != "" {
		fields["failureMessage"] = ch.FailureMessage
	} else {
		fields["failureMessage"] = nil
	}

	if err := u.orders.Patch(ctx, existing.ID, existing.Rev, fields); err != nil {
		return u.persistenceError(err, "patch charge details", existing.OrderNumber)
	}

	u.log.Info().
		Str("order_number", existing.OrderNumber).
		Str("charge_status", ch.Status).
		Msg("charge details updated")
	return nil
}

// metadataLine は歴史的なフィールド名ゆれを全部受ける。
type metadataLine struct {
	Product  string  `json:"product"`
	LegacyID string  `json:"_id"`
	AltID    string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int64   `json:"quantity"`
}

// resolveProductID は product → _id → id の順で最初にあるものを使う。
// 上流スキーマ変更の名残り（技術的負債）。
func resolveProductID(m metadataLine) string {
	switch {
	case m.Product != "":
		return m.Product
	case m.LegacyID != "":
		return m.LegacyID
	default:
		return m.AltID
	}
}

func (u *WebhookUsecase) parseLineSnapshot(orderNumber string, raw string) []model.OrderItem {
	if raw == "" {
		return nil
	}

	var lines []metadataLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		u.log.Warn().Err(err).
			Str("order_number", orderNumber).
			Msg("failed to parse products metadata")
		return nil
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, m := range lines {
		id := resolveProductID(m)
		if id == "" {
			u.log.Warn().Str("order_number", orderNumber).Msg("line snapshot without product id")
			continue
		}
		qty := m.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, model.OrderItem{
			ProductID:           id,
			ProductNameSnapshot: m.Name,
			UnitPriceSnapshot:   m.Price,
			ImageSnapshot:       m.Image,
			Quantity:            qty,
		})
	}
	return items
}

func (u *WebhookUsecase) persistenceError(err error, op string, key string) error {
	u.log.Error().Err(err).
		Str("operation", op).
		Str("key", key).
		Msg("content store operation failed")
	// 冪等設計なのでリトライはプロバイダの再配送に任せる
	return NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

// fromMinor は最小通貨単位から通貨単位へ（プロバイダ確定額が正）。
func fromMinor(v int64) float64 {
	return decimal.NewFromInt(v).Div(decimal.NewFromInt(100)).InexactFloat64()
}
