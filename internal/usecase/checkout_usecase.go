package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"app/internal/basket"
	pay "app/internal/payment"
)

// プロバイダのmetadata値の上限（超えたらスナップショットを縮める）
const metadataValueLimit = 500

const checkoutCurrency = "usd"

// CheckoutMetadata はチェックアウト1回分の相関情報。
// OrderNumber がフロー全体を貫く冪等キー。
type CheckoutMetadata struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	UserRef       string
}

// CheckoutUsecase はバスケットからホスト型決済セッションを組み立てる。
// 注文ドキュメントはここでは作らない（Webhook側が作る）。
type CheckoutUsecase struct {
	gateway pay.Gateway
	baseURL string
	log     *zerolog.Logger
}

func NewCheckoutUsecase(gateway pay.Gateway, baseURL string, logger *zerolog.Logger) *CheckoutUsecase {
	return &CheckoutUsecase{gateway: gateway, baseURL: baseURL, log: logger}
}

// productSnapshot はmetadata経由でWebhookに持ち回る明細スナップショット。
type productSnapshot struct {
	Product  string  `json:"product"`
	Name     string  `json:"name,omitempty"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	Quantity int64   `json:"quantity"`
}

// CreateCheckoutSession はセッションを作ってリダイレクトURLを返す。
func (u *CheckoutUsecase) CreateCheckoutSession(ctx context.Context, items []basket.Line, meta CheckoutMetadata) (string, error) {
	if meta.OrderNumber == "" || meta.CustomerEmail == "" {
		return "", NewHTTPError(http.StatusBadRequest, "invalid metadata")
	}
	if len(items) == 0 {
		return "", NewHTTPError(http.StatusBadRequest, "basket is empty")
	}

	// 価格未定の商品があるうちは外部呼び出しをしない
	for _, l := range items {
		if l.Product.Price == nil {
			return "", NewHTTPError(http.StatusBadRequest, "some items do not have a price")
		}
	}

	// 既存payerの再利用（email一致を1件だけ探す）
	customerID, err := u.gateway.FindCustomerByEmail(ctx, meta.CustomerEmail)
	if err != nil {
		u.log.Error().Err(err).
			Str("order_number", meta.OrderNumber).
			Msg("customer lookup failed")
		return "", NewHTTPError(http.StatusBadGateway, "payment provider error")
	}

	lineItems := make([]pay.SessionLineItem, 0, len(items))
	for _, l := range items {
		name := l.Product.Name
		if name == "" {
			name = "Unnamed Product"
		}
		li := pay.SessionLineItem{
			ProductID:   l.Product.ID,
			Name:        name,
			Description: "Product ID: " + l.Product.ID,
			UnitAmount:  minorUnits(*l.Product.Price),
			Currency:    checkoutCurrency,
			Quantity:    l.Quantity,
		}
		if l.Product.Image != "" {
			li.Images = []string{l.Product.Image}
		}
		lineItems = append(lineItems, li)
	}

	metadata, err := u.buildMetadata(items, meta)
	if err != nil {
		return "", NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	in := pay.SessionInput{
		CustomerID:    customerID,
		CustomerEmail: meta.CustomerEmail,
		Metadata:      metadata,
		LineItems:     lineItems,
		SuccessURL: fmt.Sprintf("%s/success?session_id={CHECKOUT_SESSION_ID}&orderNumber=%s",
			u.baseURL, meta.OrderNumber),
		CancelURL: u.baseURL + "/basket",
	}

	sess, err := u.gateway.CreateCheckoutSession(ctx, in)
	if err != nil {
		u.log.Error().Err(err).
			Str("order_number", meta.OrderNumber).
			Int("item_count", len(items)).
			Msg("checkout session creation failed")
		return "", NewHTTPError(http.StatusBadGateway, "payment provider error")
	}

	u.log.Info().
		Str("order_number", meta.OrderNumber).
		Str("session_id", sess.ID).
		Int("item_count", len(items)).
		Bool("reused_customer", customerID != "").
		Msg("checkout session created")

	return sess.URL, nil
}

// buildMetadata はorder相関情報＋明細スナップショットをmetadataに詰める。
// プロバイダはコールバックで元リクエストを返してくれないので、これが唯一の持ち回り経路。
func (u *CheckoutUsecase) buildMetadata(items []basket.Line, meta CheckoutMetadata) (map[string]string, error) {
	snaps := make([]productSnapshot, 0, len(items))
	for _, l := range items {
		price, _ := l.Product.Price.Float64()
		snaps = append(snaps, productSnapshot{
			Product:  l.Product.ID,
			Name:     l.Product.Name,
			Price:    price,
			Image:    l.Product.Image,
			Quantity: l.Quantity,
		})
	}

	enc, err := json.Marshal(snaps)
	if err != nil {
		return nil, err
	}

	// 上限超過はname/imageを落として縮める（id・価格・数量は必ず残す）
	if len(enc) > metadataValueLimit {
		for i := range snaps {
			snaps[i].Name = ""
			snaps[i].Image = ""
		}
		enc, err = json.Marshal(snaps)
		if err != nil {
			return nil, err
		}
		u.log.Warn().
			Str("order_number", meta.OrderNumber).
			Int("item_count", len(items)).
			Msg("line snapshot truncated to fit metadata limit")
	}

	return map[string]string{
		"orderNumber":   meta.OrderNumber,
		"customerName":  meta.CustomerName,
		"customerEmail": meta.CustomerEmail,
		"userRef":       meta.UserRef,
		"products":      string(enc),
	}, nil
}

// minorUnits は通貨の最小単位への変換。浮動小数の累積誤差を避けるためdecimalで丸める。
func minorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
