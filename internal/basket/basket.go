package basket

import (
	"iter"

	"github.com/shopspring/decimal"

	"app/internal/domain/model"
)

// Line は商品ごとにまとめた明細。
type Line struct {
	Product  model.ProductRef
	Quantity int64
}

// Basket は同一商品を数量でまとめるインメモリのバスケット。
// 永続化（クライアントストレージ等）は呼び出し側の責務。
type Basket struct {
	lines map[string]*Line
	order []string // 初回投入順
}

func New() *Basket {
	return &Basket{lines: map[string]*Line{}}
}

// Add は商品を追加する（既存なら数量加算）。qty < 1 は 1 とみなす。
func (b *Basket) Add(p model.ProductRef, qty int64) {
	if qty < 1 {
		qty = 1
	}
	if l, ok := b.lines[p.ID]; ok {
		l.Quantity += qty
		return
	}
	b.lines[p.ID] = &Line{Product: p, Quantity: qty}
	b.order = append(b.order, p.ID)
}

// Remove は数量を1減らし、0になったら明細ごと外す。
func (b *Basket) Remove(productID string) {
	l, ok := b.lines[productID]
	if !ok {
		return
	}
	l.Quantity--
	if l.Quantity > 0 {
		return
	}
	delete(b.lines, productID)
	for i, id := range b.order {
		if id == productID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// GroupedItems は初回投入順の明細シーケンス。何度でも回せる。
func (b *Basket) GroupedItems() iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for _, id := range b.order {
			l := b.lines[id]
			if !yield(Line{Product: l.Product, Quantity: l.Quantity}) {
				return
			}
		}
	}
}

// Lines はスライスで欲しい時用。
func (b *Basket) Lines() []Line {
	out := make([]Line, 0, len(b.order))
	for l := range b.GroupedItems() {
		out = append(out, l)
	}
	return out
}

// TotalPrice は price × quantity の合計。価格未定は0扱い。
func (b *Basket) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for l := range b.GroupedItems() {
		if l.Product.Price == nil {
			continue
		}
		total = total.Add(l.Product.Price.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return total
}

// ItemCount は総数量（ヘッダーのバッジ用）。
func (b *Basket) ItemCount() int64 {
	var n int64
	for l := range b.GroupedItems() {
		n += l.Quantity
	}
	return n
}

// Clear は決済完了後にバスケットを空にする。
func (b *Basket) Clear() {
	b.lines = map[string]*Line{}
	b.order = nil
}
