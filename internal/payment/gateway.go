package payment

import "context"

// SessionLineItem はプロバイダに渡す1明細。金額は最小通貨単位（セント）。
type SessionLineItem struct {
	ProductID   string
	Name        string
	Description string
	UnitAmount  int64
	Currency    string
	Images      []string
	Quantity    int64
}

// SessionInput はホスト型チェックアウトセッションの作成依頼。
type SessionInput struct {
	CustomerID    string // 既存payer。空なら CustomerEmail でセッション時に作成
	CustomerEmail string
	Metadata      map[string]string
	LineItems     []SessionLineItem
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID  string
	URL string
}

// Gateway は決済プロバイダへのアウトバウンド呼び出し。
type Gateway interface {
	// FindCustomerByEmail は email 一致のpayerを1件探す。無ければ空文字。
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, in SessionInput) (Session, error)
}
