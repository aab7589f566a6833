package model

import "github.com/shopspring/decimal"

// ProductRef はカタログ側の商品参照。
// Price はカタログ同期前は nil（チェックアウト前に必ず検証する）。
type ProductRef struct {
	ID    string
	Name  string
	Price *decimal.Decimal
	Image string
}
