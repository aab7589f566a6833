package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

var (
	ErrNotFound = errors.New("not found")

	// 楽観ロック（ifRevisionID）不一致。プロバイダ再配送で回復する。
	ErrRevisionMismatch = errors.New("revision mismatch")
)

// OrderRepository はコンテンツストア上の注文ドキュメントへの薄いアクセサ。
// 判断ロジックは持たない（全部WebhookUsecase側）。
type OrderRepository interface {
	FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (model.Order, error)
	ListByUserRef(ctx context.Context, userRef string) ([]model.Order, error)

	// Create は createIfNotExists 相当。既存なら何もしないで成功する。
	Create(ctx context.Context, order model.Order) error

	// Patch は部分更新。rev を渡すと ifRevisionID 付き（CAS）。
	Patch(ctx context.Context, docID string, rev string, fields map[string]any) error
}
