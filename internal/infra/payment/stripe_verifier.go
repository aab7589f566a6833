package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	pay "app/internal/payment"
)

// StripeEventVerifier は署名検証＋イベント復元。
// 検証対象はパース前の生ボディ（再シリアライズすると必ず失敗する）。
type StripeEventVerifier struct{}

func NewStripeEventVerifier() StripeEventVerifier {
	return StripeEventVerifier{}
}

func (StripeEventVerifier) Verify(payload []byte, sigHeader string, secret string) (pay.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return pay.Event{}, fmt.Errorf("%w: %v", pay.ErrBadSignature, err)
	}

	out := pay.Event{Type: string(ev.Type)}

	switch out.Type {
	case pay.EventCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return pay.Event{}, fmt.Errorf("decode checkout session payload: %w", err)
		}
		se := &pay.CheckoutSessionEvent{
			ID:          s.ID,
			AmountTotal: s.AmountTotal,
			Currency:    string(s.Currency),
			Metadata:    s.Metadata,
		}
		if s.Customer != nil {
			se.CustomerID = s.Customer.ID
		}
		if s.PaymentIntent != nil {
			se.PaymentIntentID = s.PaymentIntent.ID
		}
		if s.TotalDetails != nil {
			se.AmountDiscount = s.TotalDetails.AmountDiscount
		}
		out.Session = se

	case pay.EventChargeSucceeded, pay.EventChargeUpdated:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return pay.Event{}, fmt.Errorf("decode charge payload: %w", err)
		}
		ce := &pay.ChargeEvent{
			ID:             ch.ID,
			Status:         string(ch.Status),
			ReceiptURL:     ch.ReceiptURL,
			FailureMessage: ch.FailureMessage,
		}
		if ch.PaymentIntent != nil {
			ce.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.Charge = ce
	}

	return out, nil
}
