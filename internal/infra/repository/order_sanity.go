package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/domain/model"
	"app/internal/infra/sanity"
	repo "app/internal/repository"
)

// OrderSanityRepository はコンテンツストア実装。
type OrderSanityRepository struct {
	client *sanity.Client
}

func NewOrderSanityRepository(client *sanity.Client) *OrderSanityRepository {
	return &OrderSanityRepository{client: client}
}

func (r *OrderSanityRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	return r.findOne(ctx,
		`*[_type == "order" && orderNumber == $orderNumber][0]`,
		map[string]any{"orderNumber": orderNumber})
}

func (r *OrderSanityRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (model.Order, error) {
	return r.findOne(ctx,
		`*[_type == "order" && stripePaymentIntentId == $paymentIntentId][0]`,
		map[string]any{"paymentIntentId": paymentIntentID})
}

func (r *OrderSanityRepository) ListByUserRef(ctx context.Context, userRef string) ([]model.Order, error) {
	var orders []model.Order
	err := r.client.Query(ctx,
		`*[_type == "order" && userRef == $userRef] | order(orderDate desc)`,
		map[string]any{"userRef": userRef}, &orders)
	if err != nil {
		return nil, fmt.Errorf("list orders by userRef: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

func (r *OrderSanityRepository) Create(ctx context.Context, order model.Order) error {
	order.Typ = model.OrderDocType
	if order.ID == "" {
		order.ID = model.DocumentID(order.OrderNumber)
	}
	order.Rev = "" // リビジョンはストアが振る

	if err := r.client.Mutate(ctx, sanity.CreateIfNotExists(order)); err != nil {
		return fmt.Errorf("create order %s: %w", order.OrderNumber, err)
	}
	return nil
}

func (r *OrderSanityRepository) Patch(ctx context.Context, docID string, rev string, fields map[string]any) error {
	err := r.client.Mutate(ctx, sanity.PatchSet(docID, rev, fields))
	if err != nil {
		var apiErr *sanity.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 409 {
			return fmt.Errorf("patch order %s: %w", docID, repo.ErrRevisionMismatch)
		}
		return fmt.Errorf("patch order %s: %w", docID, err)
	}
	return nil
}

// findOne は単一ドキュメント検索。結果がnullなら ErrNotFound。
func (r *OrderSanityRepository) findOne(ctx context.Context, query string, params map[string]any) (model.Order, error) {
	var order model.Order
	if err := r.client.Query(ctx, query, params, &order); err != nil {
		return model.Order{}, err
	}
	if order.ID == "" {
		return model.Order{}, repo.ErrNotFound
	}
	return order, nil
}
