package payment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	pay "app/internal/payment"
)

// StripeGateway はStripe実装。クライアントはプロセスで1つ作って使い回す。
type StripeGateway struct {
	api *client.API
	log *zerolog.Logger
}

func NewStripeGateway(secretKey string, logger *zerolog.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe: secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, log: logger}, nil
}

func (g *StripeGateway) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	it := g.api.Customers.List(params)
	for it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("stripe: list customers: %w", err)
	}
	return "", nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, in pay.SessionInput) (pay.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(in.SuccessURL),
		CancelURL:           stripe.String(in.CancelURL),
	}
	params.Context = ctx

	// 既存payerがいれば再利用、いなければセッション時に作らせる
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else {
		params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}

	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	for _, li := range in.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:        stripe.String(li.Name),
			Description: stripe.String(li.Description),
			Metadata:    map[string]string{"id": li.ProductID},
		}
		if len(li.Images) > 0 {
			productData.Images = stripe.StringSlice(li.Images)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(li.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(li.Currency),
				UnitAmount:  stripe.Int64(li.UnitAmount),
				ProductData: productData,
			},
		})
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return pay.Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	g.log.Info().Str("session_id", s.ID).Msg("stripe checkout session created")
	return pay.Session{ID: s.ID, URL: s.URL}, nil
}
