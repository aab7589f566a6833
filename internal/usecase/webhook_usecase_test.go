package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"app/internal/domain/model"
	pay "app/internal/payment"
	repo "app/internal/repository"
)

// =====================
// Verifier stub
// =====================

type verifierStub struct {
	ev    pay.Event
	err   error
	calls int
}

func (v *verifierStub) Verify(payload []byte, sigHeader string, secret string) (pay.Event, error) {
	v.calls++
	return v.ev, v.err
}

// =====================
// In-memory repo fake
// コンテンツストアのcreateIfNotExists/CAS patchの意味を再現する
// =====================

type fakeOrderRepo struct {
	docs        map[string]model.Order // docID -> doc
	revCounter  int
	createCalls int
	patchCalls  int
	findCalls   int
	failWith    error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{docs: map[string]model.Order{}}
}

func (f *fakeOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	f.findCalls++
	if f.failWith != nil {
		return model.Order{}, f.failWith
	}
	for _, d := range f.docs {
		if d.OrderNumber == orderNumber {
			return d, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (f *fakeOrderRepo) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (model.Order, error) {
	f.findCalls++
	if f.failWith != nil {
		return model.Order{}, f.failWith
	}
	for _, d := range f.docs {
		if d.StripePaymentIntentID == paymentIntentID {
			return d, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (f *fakeOrderRepo) ListByUserRef(ctx context.Context, userRef string) ([]model.Order, error) {
	var out []model.Order
	for _, d := range f.docs {
		if d.UserRef == userRef {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) Create(ctx context.Context, order model.Order) error {
	f.createCalls++
	if f.failWith != nil {
		return f.failWith
	}
	id := model.DocumentID(order.OrderNumber)
	if _, exists := f.docs[id]; exists {
		return nil // createIfNotExists：既存なら何もしない
	}
	order.ID = id
	f.revCounter++
	order.Rev = fmt.Sprintf("rev-%d", f.revCounter)
	f.docs[id] = order
	return nil
}

func (f *fakeOrderRepo) Patch(ctx context.Context, docID string, rev string, fields map[string]any) error {
	f.patchCalls++
	if f.failWith != nil {
		return f.failWith
	}
	doc, ok := f.docs[docID]
	if !ok {
		return repo.ErrNotFound
	}
	if rev != "" && rev != doc.Rev {
		return repo.ErrRevisionMismatch
	}

	// setの意味をJSON経由で再現（nilはフィールド削除）
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range fields {
		if v == nil {
			delete(m, k)
			continue
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var dec any
		if err := json.Unmarshal(enc, &dec); err != nil {
			return err
		}
		m[k] = dec
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var updated model.Order
	if err := json.Unmarshal(merged, &updated); err != nil {
		return err
	}
	f.revCounter++
	updated.Rev = fmt.Sprintf("rev-%d", f.revCounter)
	f.docs[docID] = updated
	return nil
}

// =====================
// Event fixtures
// =====================

func sessionEvent() pay.Event {
	products, _ := json.Marshal([]map[string]any{
		{"product": "productX-id", "name": "Product X", "price": 19.99, "quantity": 2},
	})
	return pay.Event{
		Type: pay.EventCheckoutSessionCompleted,
		Session: &pay.CheckoutSessionEvent{
			ID:              "cs_1",
			CustomerID:      "cus_1",
			PaymentIntentID: "pi_1",
			AmountTotal:     4998,
			AmountDiscount:  500,
			Currency:        "usd",
			Metadata: map[string]string{
				"orderNumber":   "ORD-1",
				"customerName":  "Test User",
				"customerEmail": "a@b.com",
				"userRef":       "user_1",
				"products":      string(products),
			},
		},
	}
}

func chargeEvent() pay.Event {
	return pay.Event{
		Type: pay.EventChargeSucceeded,
		Charge: &pay.ChargeEvent{
			ID:              "ch_1",
			PaymentIntentID: "pi_1",
			Status:          "succeeded",
			ReceiptURL:      "https://receipt.test/ch_1",
		},
	}
}

func handleOnce(t *testing.T, f *fakeOrderRepo, ev pay.Event) error {
	t.Helper()
	uc := NewWebhookUsecase(&verifierStub{ev: ev}, f, "whsec_test", testLogger())
	return uc.HandleEvent(context.Background(), []byte(`{}`), "t=1,v1=sig")
}

// =====================
// Tests
// =====================

func TestHandleEvent_NoSignature(t *testing.T) {
	v := &verifierStub{}
	uc := NewWebhookUsecase(v, newFakeOrderRepo(), "whsec_test", testLogger())

	err := uc.HandleEvent(context.Background(), []byte(`{}`), "")

	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)
	assert.Equal(t, "No signature", he.Message)
	assert.Zero(t, v.calls)
}

func TestHandleEvent_SecretNotConfigured(t *testing.T) {
	v := &verifierStub{}
	uc := NewWebhookUsecase(v, newFakeOrderRepo(), "", testLogger())

	err := uc.HandleEvent(context.Background(), []byte(`{}`), "t=1,v1=sig")

	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 500, he.Status)
	assert.Equal(t, "Webhook secret not configured", he.Message)
	assert.Zero(t, v.calls)
}

func TestHandleEvent_BadSignature(t *testing.T) {
	v := &verifierStub{err: fmt.Errorf("%w: boom", pay.ErrBadSignature)}
	f := newFakeOrderRepo()
	uc := NewWebhookUsecase(v, f, "whsec_test", testLogger())

	err := uc.HandleEvent(context.Background(), []byte(`{}`), "t=1,v1=bad")

	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)
	assert.Equal(t, "Webhook verification failed", he.Message)
	// ストアには触らない
	assert.Zero(t, f.findCalls+f.createCalls+f.patchCalls)
}

func TestHandleEvent_UnknownEventIsAcknowledged(t *testing.T) {
	f := newFakeOrderRepo()
	err := handleOnce(t, f, pay.Event{Type: "product.created"})

	assert.NoError(t, err)
	assert.Zero(t, f.findCalls+f.createCalls+f.patchCalls)
}

func TestHandleEvent_SessionCompleted_MissingOrderNumber(t *testing.T) {
	ev := sessionEvent()
	delete(ev.Session.Metadata, "orderNumber")

	f := newFakeOrderRepo()
	err := handleOnce(t, f, ev)

	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)
	assert.Equal(t, "Missing orderNumber in metadata", he.Message)
	assert.Zero(t, f.createCalls+f.patchCalls)
}

func TestHandleEvent_SessionCompleted_CreatesPaidOrder(t *testing.T) {
	f := newFakeOrderRepo()
	require.NoError(t, handleOnce(t, f, sessionEvent()))

	doc, ok := f.docs[model.DocumentID("ORD-1")]
	require.True(t, ok)
	assert.Equal(t, model.OrderStatusPaid, doc.Status)
	assert.Equal(t, "Test User", doc.CustomerName)
	assert.Equal(t, "a@b.com", doc.Email)
	assert.Equal(t, "user_1", doc.UserRef)
	assert.Equal(t, "cs_1", doc.StripeCheckoutSessionID)
	assert.Equal(t, "cus_1", doc.StripeCustomerID)
	assert.Equal(t, "pi_1", doc.StripePaymentIntentID)
	// プロバイダ確定額が正（4998セント → 49.98）
	assert.Equal(t, 49.98, doc.TotalPrice)
	assert.Equal(t, 5.0, doc.AmountDiscount)
	assert.Equal(t, "usd", doc.Currency)

	require.Len(t, doc.Items, 1)
	assert.Equal(t, "productX-id", doc.Items[0].ProductID)
	assert.Equal(t, int64(2), doc.Items[0].Quantity)
	assert.Equal(t, 19.99, doc.Items[0].UnitPriceSnapshot)
}

func TestHandleEvent_SessionCompleted_Idempotent(t *testing.T) {
	f := newFakeOrderRepo()

	require.NoError(t, handleOnce(t, f, sessionEvent()))
	after1 := f.docs[model.DocumentID("ORD-1")]

	// 同じイベントをあと2回配送
	require.NoError(t, handleOnce(t, f, sessionEvent()))
	require.NoError(t, handleOnce(t, f, sessionEvent()))

	assert.Len(t, f.docs, 1)
	after3 := f.docs[model.DocumentID("ORD-1")]

	// リビジョン以外は1回配送と同じ状態（明細の重複もない）
	after1.Rev = ""
	after3.Rev = ""
	after1.OrderDate = after3.OrderDate
	assert.Equal(t, after1, after3)
	assert.Len(t, after3.Items, 1)
}

func TestHandleEvent_ChargeBeforeSession_OrderIndependence(t *testing.T) {
	// charge先行：注文が無いのはエラーではない
	f1 := newFakeOrderRepo()
	require.NoError(t, handleOnce(t, f1, chargeEvent()))
	assert.Empty(t, f1.docs)
	require.NoError(t, handleOnce(t, f1, sessionEvent()))
	// プロバイダの再配送でchargeが再度届く
	require.NoError(t, handleOnce(t, f1, chargeEvent()))

	// session先行
	f2 := newFakeOrderRepo()
	require.NoError(t, handleOnce(t, f2, sessionEvent()))
	require.NoError(t, handleOnce(t, f2, chargeEvent()))

	d1 := f1.docs[model.DocumentID("ORD-1")]
	d2 := f2.docs[model.DocumentID("ORD-1")]
	d1.Rev = ""
	d2.Rev = ""
	d1.OrderDate = d2.OrderDate
	assert.Equal(t, d2, d1)

	assert.Equal(t, "succeeded", d1.ChargeStatus)
	assert.Equal(t, "https://receipt.test/ch_1", d1.ReceiptURL)
	assert.Equal(t, model.OrderStatusPaid, d1.Status)
}

func TestHandleEvent_ChargeNeverTouchesStatus(t *testing.T) {
	f := newFakeOrderRepo()
	require.NoError(t, handleOnce(t, f, sessionEvent()))

	// 発送済みまで進んだ注文にchargeの再配送が来ても巻き戻さない
	doc := f.docs[model.DocumentID("ORD-1")]
	doc.Status = model.OrderStatusShipped
	f.docs[doc.ID] = doc

	require.NoError(t, handleOnce(t, f, chargeEvent()))
	assert.Equal(t, model.OrderStatusShipped, f.docs[doc.ID].Status)
	assert.Equal(t, "succeeded", f.docs[doc.ID].ChargeStatus)
}

func TestHandleEvent_SessionCompleted_DoesNotRegressShippedOrder(t *testing.T) {
	f := newFakeOrderRepo()
	require.NoError(t, handleOnce(t, f, sessionEvent()))

	doc := f.docs[model.DocumentID("ORD-1")]
	doc.Status = model.OrderStatusDelivered
	f.docs[doc.ID] = doc

	// 遅れてきた再配送がdeliveredをpaidへ戻してはいけない
	require.NoError(t, handleOnce(t, f, sessionEvent()))
	assert.Equal(t, model.OrderStatusDelivered, f.docs[doc.ID].Status)
}

func TestHandleEvent_ChargeFailureMessageCleared(t *testing.T) {
	f := newFakeOrderRepo()
	require.NoError(t, handleOnce(t, f, sessionEvent()))

	// 一度失敗メッセージが付く
	ev := chargeEvent()
	ev.Charge.Status = "failed"
	ev.Charge.FailureMessage = "card declined"
	require.NoError(t, handleOnce(t, f, ev))
	assert.Equal(t, "card declined", f.docs[model.DocumentID("ORD-1")].FailureMessage)

	// 成功の再通知で消える
	require.NoError(t, handleOnce(t, f, chargeEvent()))
	assert.Empty(t, f.docs[model.DocumentID("ORD-1")].FailureMessage)
	assert.Equal(t, "succeeded", f.docs[model.DocumentID("ORD-1")].ChargeStatus)
}

func TestHandleEvent_PersistenceFailureIsGeneric500(t *testing.T) {
	f := newFakeOrderRepo()
	f.failWith = assert.AnError

	err := handleOnce(t, f, sessionEvent())

	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 500, he.Status)
	// 内部詳細は漏らさない
	assert.Equal(t, "Internal server error", he.Message)
}

func TestParseLineSnapshot_ProductIDFallback(t *testing.T) {
	uc := NewWebhookUsecase(&verifierStub{}, newFakeOrderRepo(), "whsec_test", testLogger())

	raw, _ := json.Marshal([]map[string]any{
		{"product": "id-a", "quantity": 1},
		{"_id": "id-b", "quantity": 2},
		{"id": "id-c"}, // quantity無しは1扱い
		{"name": "idなし"},
	})

	items := uc.parseLineSnapshot("ORD-1", string(raw))

	require.Len(t, items, 3)
	assert.Equal(t, "id-a", items[0].ProductID)
	assert.Equal(t, "id-b", items[1].ProductID)
	assert.Equal(t, "id-c", items[2].ProductID)
	assert.Equal(t, int64(1), items[2].Quantity)
}

func TestParseLineSnapshot_MalformedJSON(t *testing.T) {
	uc := NewWebhookUsecase(&verifierStub{}, newFakeOrderRepo(), "whsec_test", testLogger())
	assert.Nil(t, uc.parseLineSnapshot("ORD-1", "not json"))
	assert.Nil(t, uc.parseLineSnapshot("ORD-1", ""))
}
